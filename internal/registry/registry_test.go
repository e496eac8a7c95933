package registry

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopTransport struct{}

func (nopTransport) ReadPacket() ([]byte, error)  { return nil, nil }
func (nopTransport) WritePacket(_ []byte) error   { return nil }
func (nopTransport) RemoteAddr() net.Addr         { return &net.TCPAddr{} }
func (nopTransport) Close() error                 { return nil }

// A duplicate login for citizen C evicts exactly one prior connection,
// and GetByCitizenID(C) resolves to the new one afterward.
func TestDuplicateLoginEvictsPriorConnection(t *testing.T) {
	r := New()
	first := r.Insert(nopTransport{})
	second := r.Insert(nopTransport{})

	evicted := r.IndexCitizen(first.ID, 7)
	assert.Nil(t, evicted)

	evicted = r.IndexCitizen(second.ID, 7)
	require.NotNil(t, evicted)
	assert.Equal(t, first.ID, evicted.ID)

	_, stillThere := r.Get(first.ID)
	assert.False(t, stillThere)

	got, ok := r.GetByCitizenID(7)
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)
}

func TestRemoveClearsSecondaryIndices(t *testing.T) {
	r := New()
	conn := r.Insert(nopTransport{})
	r.IndexCitizen(conn.ID, 1)
	r.IndexWorldName(conn.ID, "Alphaworld")

	r.Remove(conn.ID)

	_, ok := r.GetByCitizenID(1)
	assert.False(t, ok)
	_, ok = r.GetByWorldName("Alphaworld")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestIterPlayersOnlySeesPlayerSessions(t *testing.T) {
	r := New()
	player := r.Insert(nopTransport{})
	player.Session.BecomePlayer(0, 1, "P", false)
	world := r.Insert(nopTransport{})
	world.Session.BecomeWorld("Someworld", 1)

	var seen []ConnectionID
	r.IterPlayers(func(c *Connection) { seen = append(seen, c.ID) })

	assert.Equal(t, []ConnectionID{player.ID}, seen)
}

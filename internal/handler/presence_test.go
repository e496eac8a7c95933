package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aworlds/universe/internal/protocol"
)

func afkPacket(afk byte) *protocol.Packet {
	p := protocol.NewPacket(protocol.PacketSetAfk)
	p.AddByte(protocol.VarAFKStatus, afk)
	return p
}

func TestSetAfk_MutualSeesUpdateNonMutualSeesNothing(t *testing.T) {
	ts := newTestServer()
	a := ts.addCitizen("A")
	b := ts.addCitizen("B")
	c := ts.addCitizen("C")

	// A and B are mutual friends; C is unrelated.
	require.NoError(t, ts.dir.ContactSet(bgCtx(), a.ID, b.ID, 0))
	require.NoError(t, ts.dir.ContactSet(bgCtx(), b.ID, a.ID, 0))

	connA, _ := ts.loginCitizen(a.ID, a.Name, false)
	_, ftB := ts.loginCitizen(b.ID, b.Name, false)
	_, ftC := ts.loginCitizen(c.ID, c.Name, false)

	// Prime B's contact tab so the AFK flip arrives as an update, not an
	// initial add.
	ts.deps.Tabs.RegenerateContactList(bgCtx(), b.ID)
	before := len(ftB.all())
	beforeC := len(ftC.all())

	SetAfk(ts.deps, bgCtx(), connA.ID, afkPacket(1))

	deltas := ftB.all()[before:]
	require.NotEmpty(t, deltas)
	var sawAfkUpdate bool
	for _, p := range deltas {
		key, _ := p.GetUint(protocol.VarEntryKey)
		afk, _ := p.GetByte(protocol.VarEntryAfk)
		action, _ := p.GetByte(protocol.VarEntryAction)
		if key == a.ID && afk == 1 && protocol.EntryAction(action) == protocol.EntryUpdate {
			sawAfkUpdate = true
		}
	}
	assert.True(t, sawAfkUpdate, "B should see A's AFK flag flip")

	// Non-mutual C receives nothing.
	assert.Len(t, ftC.all(), beforeC)
}

func TestSetAfk_NoChangeIsQuiet(t *testing.T) {
	ts := newTestServer()
	a := ts.addCitizen("A")
	connA, ftA := ts.loginCitizen(a.ID, a.Name, false)

	SetAfk(ts.deps, bgCtx(), connA.ID, afkPacket(0))
	assert.Empty(t, ftA.all())
}

func TestUserList_PaginatesFromContinuationID(t *testing.T) {
	ts := newTestServer()
	a := ts.addCitizen("A")
	b := ts.addCitizen("B")
	connA, ftA := ts.loginCitizen(a.ID, a.Name, false)
	_, _ = ts.loginCitizen(b.ID, b.Name, false)

	ts.deps.Tabs.RegeneratePlayerList(bgCtx())
	before := len(ftA.all())

	p := protocol.NewPacket(protocol.PacketUserList)
	p.AddUint(protocol.VarUserListContinuationID, uint32(connA.ID)+1)
	UserList(ts.deps, bgCtx(), connA.ID, p)

	// Only entries with key >= continuation id come back.
	entries := ftA.all()[before:]
	require.Len(t, entries, 1)
	key, _ := entries[0].GetUint(protocol.VarEntryKey)
	assert.Greater(t, key, uint32(connA.ID))
}

func TestUserList_DisabledByConfig(t *testing.T) {
	ts := newTestServer()
	ts.deps.Config.Flags.UserList = false
	a := ts.addCitizen("A")
	connA, ftA := ts.loginCitizen(a.ID, a.Name, false)

	UserList(ts.deps, bgCtx(), connA.ID, protocol.NewPacket(protocol.PacketUserList))
	assert.Empty(t, ftA.all())
}

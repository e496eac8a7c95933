package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aworlds/universe/internal/config"
	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/directory/memstore"
	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/transport"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			BindIP:          "127.0.0.1",
			Port:            0,
			ConnectionLimit: 8,
		},
		Flags: config.FlagsConfig{
			UserList:            true,
			AllowCitizenChanges: true,
			AllowImmigration:    true,
		},
	}
}

// startServer runs a server on an ephemeral port, returning its address
// and a stop function.
func startServer(t *testing.T, store directory.Store) (net.Addr, func()) {
	t.Helper()
	srv := New(testConfig(), store, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	var addr net.Addr
	require.Eventually(t, func() bool {
		addr = srv.Addr()
		return addr != nil
	}, 2*time.Second, 10*time.Millisecond)

	return addr, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("server did not stop")
		}
	}
}

// dial opens a client-side transport against addr.
func dial(t *testing.T, addr net.Addr) (transport.Transport, net.Conn) {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return transport.NewTCPTransport(conn, nil), conn
}

func writePacket(t *testing.T, tr transport.Transport, p *protocol.Packet) {
	t.Helper()
	data, err := protocol.Encode(p)
	require.NoError(t, err)
	require.NoError(t, tr.WritePacket(data))
}

// readUntil reads inbound packets until one of type pt arrives.
func readUntil(t *testing.T, tr transport.Transport, pt protocol.PacketType) *protocol.Packet {
	t.Helper()
	for {
		data, err := tr.ReadPacket()
		require.NoError(t, err)
		p, err := protocol.Decode(data)
		require.NoError(t, err)
		if p.Type == pt {
			return p
		}
	}
}

func TestServer_LoginRoundTrip(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.CitizenAdd(context.Background(), &directory.Citizen{
		Name:    "Wanderer",
		Enabled: true,
	}))
	addr, stop := startServer(t, store)
	defer stop()

	tr, conn := dial(t, addr)
	defer conn.Close()

	login := protocol.NewPacket(protocol.PacketLogin)
	login.AddByte(protocol.VarLoginType, byte(protocol.LoginCitizen))
	login.AddString(protocol.VarCitizenName, "Wanderer")
	writePacket(t, tr, login)

	resp := readUntil(t, tr, protocol.PacketLoginResult)
	reason, _ := resp.GetInt(protocol.VarReasonCode)
	assert.Equal(t, int32(protocol.ReasonSuccess), reason)
	name, _ := resp.GetString(protocol.VarCitizenName)
	assert.Equal(t, "Wanderer", name)
}

func TestServer_EjectedAddressRefused(t *testing.T) {
	store := memstore.New()
	// 127.0.0.1 == 0x7f000001; ban it far into the future.
	require.NoError(t, store.EjectionSet(context.Background(), 0x7f000001,
		time.Now().Add(time.Hour).Unix(), time.Now().Unix(), "banned"))
	addr, stop := startServer(t, store)
	defer stop()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// The server closes the socket without handling any packet.
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err)
}

func TestServer_UnknownPacketTypeDropped(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.CitizenAdd(context.Background(), &directory.Citizen{
		Name:    "A",
		Enabled: true,
	}))
	addr, stop := startServer(t, store)
	defer stop()

	tr, conn := dial(t, addr)
	defer conn.Close()

	// An unregistered packet type is logged and dropped; the connection
	// stays usable.
	junk := protocol.NewPacket(protocol.PacketType(0x7fff))
	junk.AddString(protocol.VarCitizenName, "ignored")
	writePacket(t, tr, junk)

	login := protocol.NewPacket(protocol.PacketLogin)
	login.AddByte(protocol.VarLoginType, byte(protocol.LoginCitizen))
	login.AddString(protocol.VarCitizenName, "A")
	writePacket(t, tr, login)

	resp := readUntil(t, tr, protocol.PacketLoginResult)
	reason, _ := resp.GetInt(protocol.VarReasonCode)
	assert.Equal(t, int32(protocol.ReasonSuccess), reason)
}

package handler

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aworlds/universe/internal/config"
	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/directory/memstore"
	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
	"github.com/aworlds/universe/internal/session"
	"github.com/aworlds/universe/internal/tabs"
)

// fakeTransport captures every packet WritePacket is given, decoding it
// immediately so tests can assert on the response without re-deriving
// the wire format.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []*protocol.Packet
	closed  bool
	addr    net.Addr
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{addr: &net.TCPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 6112}}
}

func (f *fakeTransport) ReadPacket() ([]byte, error) { return nil, nil }

func (f *fakeTransport) WritePacket(data []byte) error {
	p, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, p)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) RemoteAddr() net.Addr { return f.addr }
func (f *fakeTransport) Close() error         { f.closed = true; return nil }

func (f *fakeTransport) last() *protocol.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) all() []*protocol.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*protocol.Packet, len(f.sent))
	copy(out, f.sent)
	return out
}

// testServer bundles the dependencies a handler needs, backed by
// memstore, for package-level handler tests.
type testServer struct {
	deps *Deps
	reg  *registry.Registry
	dir  directory.Store
	now  time.Time
}

func newTestServer() *testServer {
	reg := registry.New()
	dir := memstore.New()
	log := zap.NewNop()
	ts := &testServer{reg: reg, dir: dir, now: time.Unix(1_700_000_000, 0)}
	ts.deps = &Deps{
		Registry:  reg,
		Directory: dir,
		Tabs:      tabs.New(reg, dir, log),
		Config:    defaultTestConfig(),
		Log:       log,
		Now:       func() time.Time { return ts.now },
	}
	return ts
}

func defaultTestConfig() *config.Config {
	return &config.Config{
		Flags: config.FlagsConfig{
			UserList:            true,
			AllowCitizenChanges: true,
			AllowImmigration:    true,
		},
	}
}

// connect inserts a fresh connection backed by a fakeTransport.
func (ts *testServer) connect() (*registry.Connection, *fakeTransport) {
	ft := newFakeTransport()
	conn := ts.reg.Insert(ft)
	return conn, ft
}

// loginCitizen connects and logs a connection in as citizenID.
func (ts *testServer) loginCitizen(citizenID uint32, name string, admin bool) (*registry.Connection, *fakeTransport) {
	conn, ft := ts.connect()
	conn.Session.BecomePlayer(session.PlayerCitizen, citizenID, name, admin)
	ts.reg.IndexCitizen(conn.ID, citizenID)
	return conn, ft
}

func (ts *testServer) addCitizen(name string) *directory.Citizen {
	c := &directory.Citizen{Name: name, Enabled: true, Immigration: ts.now.Unix()}
	if err := ts.dir.CitizenAdd(context.Background(), c); err != nil {
		panic(err)
	}
	return c
}

func bgCtx() context.Context { return context.Background() }

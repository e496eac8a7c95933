// Package server owns the event loop: one goroutine accepts
// connections, per-connection reader goroutines do I/O only, and a single
// loop goroutine runs every handler to completion in receive order. The
// connection registry and tab snapshots are touched exclusively from that
// loop, which is what makes the rest of the system lock-free.
package server

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/aworlds/universe/internal/config"
	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/dispatch"
	"github.com/aworlds/universe/internal/handler"
	"github.com/aworlds/universe/internal/registry"
	"github.com/aworlds/universe/internal/session"
	"github.com/aworlds/universe/internal/tabs"
	"github.com/aworlds/universe/internal/transport"
)

// inbound is one decoded-frame payload tagged with its connection, queued
// for the event loop.
type inbound struct {
	cid  registry.ConnectionID
	data []byte
}

// Server wires the registry, directory, dispatcher, and tab engine behind
// a single event loop.
type Server struct {
	cfg  *config.Config
	log  *zap.Logger
	reg  *registry.Registry
	dir  directory.Store
	tabs *tabs.Engine
	disp *dispatch.Dispatcher
	deps *handler.Deps

	// listenerMu guards listener, which Run's caller may poll through
	// Addr from another goroutine.
	listenerMu sync.Mutex
	listener   net.Listener

	accepts chan net.Conn
	packets chan inbound
	closes  chan registry.ConnectionID
}

// New assembles a Server from its collaborators and registers every
// packet handler.
func New(cfg *config.Config, store directory.Store, log *zap.Logger) *Server {
	reg := registry.New()
	engine := tabs.New(reg, store, log)
	deps := &handler.Deps{
		Registry:  reg,
		Directory: store,
		Tabs:      engine,
		Config:    cfg,
		Log:       log,
	}
	disp := dispatch.New(log)
	handler.RegisterAll(disp, deps)

	return &Server{
		cfg:     cfg,
		log:     log,
		reg:     reg,
		dir:     store,
		tabs:    engine,
		disp:    disp,
		deps:    deps,
		accepts: make(chan net.Conn, 16),
		packets: make(chan inbound, 256),
		closes:  make(chan registry.ConnectionID, 16),
	}
}

// Run binds the listener and processes events until ctx is cancelled. A
// bind failure is returned at once; an accept error after binding stops
// the accept loop, while Run keeps serving existing connections.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.BindIP, s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.listenerMu.Lock()
	s.listener = ln
	s.listenerMu.Unlock()
	s.log.Info("universe listening", zap.String("addr", addr))

	go s.acceptLoop(ctx)
	return s.loop(ctx)
}

// Addr returns the bound listener address, or nil before Run binds it.
func (s *Server) Addr() net.Addr {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("accept failed", zap.Error(err))
			return
		}
		select {
		case s.accepts <- conn:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

// loop is the single-threaded cooperative scheduler. Handlers
// run to completion here; the only suspension points are between events.
func (s *Server) loop(ctx context.Context) error {
	defer s.listener.Close()
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case conn := <-s.accepts:
			s.handleAccept(ctx, conn)
		case in := <-s.packets:
			s.disp.Dispatch(ctx, in.cid, in.data)
		case cid := <-s.closes:
			s.handleClose(ctx, cid)
		}
	}
}

func (s *Server) handleAccept(ctx context.Context, netConn net.Conn) {
	if s.cfg.Server.ConnectionLimit > 0 && s.reg.Len() >= s.cfg.Server.ConnectionLimit {
		s.log.Info("connection refused: at capacity", zap.String("peer", netConn.RemoteAddr().String()))
		netConn.Close()
		return
	}
	if s.rejectEjected(ctx, netConn) {
		return
	}

	t := transport.NewTCPTransport(netConn, transport.NullCipher{})
	conn := s.reg.Insert(t)
	s.log.Debug("connection accepted",
		zap.Uint64("connection_id", uint64(conn.ID)),
		zap.String("peer", netConn.RemoteAddr().String()),
	)
	go s.readLoop(conn.ID, t)
}

// rejectEjected drops the connection at accept time if its address has an
// active ejection, reporting whether it did.
func (s *Server) rejectEjected(ctx context.Context, netConn net.Conn) bool {
	addr := peerIPv4(netConn.RemoteAddr())
	if addr == 0 {
		return false
	}
	ejection, err := s.dir.EjectionLookup(ctx, addr, s.deps.Clock().Unix())
	if err != nil {
		// A storage failure here fails open: the login path still gates
		// on credentials, and refusing every connection while the
		// directory hiccups would amplify the outage.
		s.log.Warn("ejection lookup failed", zap.Error(err))
		return false
	}
	if ejection == nil {
		return false
	}
	s.log.Info("connection refused: address ejected",
		zap.String("peer", netConn.RemoteAddr().String()),
		zap.String("comment", ejection.Comment),
	)
	netConn.Close()
	return true
}

// readLoop does socket I/O only; every decoded payload crosses to the
// event loop through the packets channel, and the first read error ends
// the connection.
func (s *Server) readLoop(cid registry.ConnectionID, t transport.Transport) {
	for {
		data, err := t.ReadPacket()
		if err != nil {
			s.closes <- cid
			return
		}
		s.packets <- inbound{cid: cid, data: data}
	}
}

// handleClose tears the session down: registry removal clears every
// secondary index, a departed citizen's accumulated online time is
// banked, and the contact tabs of online mutual friends are regenerated.
// Contact entries carry no online flag, so a departure shows in a
// friend's list only as the AFK flag clearing where it was set.
func (s *Server) handleClose(ctx context.Context, cid registry.ConnectionID) {
	conn := s.reg.Remove(cid)
	if conn == nil {
		return
	}
	_ = conn.Transport.Close()

	sess := conn.Session
	switch sess.Kind {
	case session.KindPlayer:
		if sess.IsCitizen() {
			s.bankOnlineTime(ctx, sess.CitizenID)
			s.tabs.RegenerateContactListAndMutuals(ctx, sess.CitizenID)
		}
		s.tabs.RegeneratePlayerList(ctx)
	case session.KindWorld:
		s.tabs.RegenerateWorldLists(ctx)
	}
	s.log.Debug("connection closed", zap.Uint64("connection_id", uint64(cid)))
}

// bankOnlineTime adds the just-ended session's duration to the citizen's
// total_time, measured from the last_login stamp the login handler wrote.
func (s *Server) bankOnlineTime(ctx context.Context, citizenID uint32) {
	citizen, err := s.dir.CitizenByNumber(ctx, citizenID)
	if err != nil || citizen == nil {
		return
	}
	elapsed := s.deps.Clock().Unix() - citizen.LastLogin
	if elapsed <= 0 {
		return
	}
	citizen.TotalTime += elapsed
	if err := s.dir.CitizenChange(ctx, citizen); err != nil {
		s.log.Warn("total_time update failed", zap.Uint32("citizen_id", citizenID), zap.Error(err))
	}
}

func (s *Server) shutdown() {
	s.reg.IterPlayers(func(c *registry.Connection) {
		_ = c.Transport.Close()
	})
	s.reg.IterWorlds(func(c *registry.Connection) {
		_ = c.Transport.Close()
	})
}

// peerIPv4 renders addr's IPv4 as the uint32 form ejection rows key on.
func peerIPv4(addr net.Addr) uint32 {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok || tcpAddr.IP.To4() == nil {
		return 0
	}
	return binary.BigEndian.Uint32(tcpAddr.IP.To4())
}

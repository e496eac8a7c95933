// Package dispatch maps a decoded packet's PacketType to a handler and
// invokes it. There is no per-state allow-list here: authorization is
// enforced inside each handler, since a single PacketType may be legal
// for some roles and not others (LicenseAdd requires admin, for
// instance). Each call runs under a panic-recovery wrapper so one bad
// handler cannot take down the event loop.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
)

// HandlerFunc processes one inbound packet for a connection. It may
// mutate any part of the server's state, including other connections,
// and is responsible for sending its own response packet(s).
type HandlerFunc func(ctx context.Context, cid registry.ConnectionID, p *protocol.Packet)

// Dispatcher routes decoded packets to registered handlers by PacketType.
type Dispatcher struct {
	handlers map[protocol.PacketType]HandlerFunc
	log      *zap.Logger
}

// New returns an empty Dispatcher.
func New(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[protocol.PacketType]HandlerFunc),
		log:      log,
	}
}

// Register maps pt to fn. Registering the same type twice replaces the
// prior handler.
func (d *Dispatcher) Register(pt protocol.PacketType, fn HandlerFunc) {
	d.handlers[pt] = fn
}

// Dispatch decodes data and runs the matching handler. An unknown
// PacketType is routed to a sink that logs and drops; a handler panic
// is recovered and logged so one malformed request cannot crash the
// event loop (handlers run to completion without yielding, so a panic
// must be contained here, not upstream).
func (d *Dispatcher) Dispatch(ctx context.Context, cid registry.ConnectionID, data []byte) {
	p, err := protocol.Decode(data)
	if err != nil {
		d.log.Debug("dropped malformed packet", zap.Uint64("connection_id", uint64(cid)), zap.Error(err))
		return
	}

	fn, ok := d.handlers[p.Type]
	if !ok {
		d.log.Debug("dropped unknown packet type", zap.Uint64("connection_id", uint64(cid)), zap.Stringer("type", p.Type))
		return
	}

	d.safeCall(ctx, cid, p, fn)
}

func (d *Dispatcher) safeCall(ctx context.Context, cid registry.ConnectionID, p *protocol.Packet, fn HandlerFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("handler panic recovered",
				zap.Uint64("connection_id", uint64(cid)),
				zap.Stringer("type", p.Type),
				zap.Any("panic", fmt.Sprint(rec)),
			)
		}
	}()
	fn(ctx, cid, p)
}

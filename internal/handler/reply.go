package handler

import (
	"go.uber.org/zap"

	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
)

// send encodes and writes p to cid's connection, logging (never failing
// the caller) on error. Outbound delivery to the requester is the one
// response a handler owes, but a write to an already-closing socket must
// not itself become an error the handler has to handle.
func send(deps *Deps, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok {
		return
	}
	data, err := protocol.Encode(p)
	if err != nil {
		deps.Log.Error("encode response failed", zap.Stringer("type", p.Type), zap.Error(err))
		return
	}
	if err := c.Transport.WritePacket(data); err != nil {
		deps.Log.Debug("response delivery dropped", zap.Uint64("connection_id", uint64(cid)), zap.Error(err))
	}
}

// sendTo is send's counterpart for notifying a connection other than the
// one that triggered the handler (best-effort).
func sendTo(deps *Deps, target *registry.Connection, p *protocol.Packet) {
	data, err := protocol.Encode(p)
	if err != nil {
		return
	}
	_ = target.Transport.WritePacket(data)
}

// reply sends a response packet of type pt carrying only a ReasonCode,
// the common shape for handlers whose request either succeeds or fails
// with no further payload.
func reply(deps *Deps, cid registry.ConnectionID, pt protocol.PacketType, reason protocol.ReasonCode) {
	p := protocol.NewPacket(pt)
	p.AddInt(protocol.VarReasonCode, int32(reason))
	send(deps, cid, p)
}

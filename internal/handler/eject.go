package handler

import (
	"context"

	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
)

// EjectAdd bans an IPv4 address until expiration. Admin-only.
func EjectAdd(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok {
		return
	}
	if !c.Session.IsAdmin() {
		reply(deps, cid, protocol.PacketEjectResult, protocol.ReasonUnauthorized)
		return
	}
	address, ok := p.GetUint(protocol.VarEjectionAddress)
	if !ok {
		return
	}
	expiration, ok := p.GetInt(protocol.VarEjectionExpiration)
	if !ok {
		return
	}
	comment, _ := p.GetString(protocol.VarEjectionComment)

	now := deps.Clock().Unix()
	if err := deps.Directory.EjectionSet(ctx, address, int64(expiration), now, comment); err != nil {
		reply(deps, cid, protocol.PacketEjectResult, protocol.ReasonDatabaseError)
		return
	}
	ejectionResult(deps, cid, protocol.ReasonSuccess, &directory.Ejection{
		Address: address, Expiration: int64(expiration), Creation: now, Comment: comment,
	})
}

// EjectLookupByAddress, EjectLookupPrev, and EjectLookupNext answer the
// ejection directory queries. Admin-only.
func EjectLookupByAddress(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	address, ok := p.GetUint(protocol.VarEjectionAddress)
	if !ok {
		return
	}
	ejectLookup(deps, ctx, cid, func() (*directory.Ejection, error) {
		return deps.Directory.EjectionLookup(ctx, address, deps.Clock().Unix())
	})
}

func EjectLookupPrev(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	address, ok := p.GetUint(protocol.VarEjectionAddress)
	if !ok {
		return
	}
	ejectLookup(deps, ctx, cid, func() (*directory.Ejection, error) { return deps.Directory.EjectionPrev(ctx, address) })
}

func EjectLookupNext(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	address, ok := p.GetUint(protocol.VarEjectionAddress)
	if !ok {
		return
	}
	ejectLookup(deps, ctx, cid, func() (*directory.Ejection, error) { return deps.Directory.EjectionNext(ctx, address) })
}

func ejectLookup(deps *Deps, ctx context.Context, cid registry.ConnectionID, fetch func() (*directory.Ejection, error)) {
	c, ok := conn(deps, cid)
	if !ok {
		return
	}
	if !c.Session.IsAdmin() {
		reply(deps, cid, protocol.PacketEjectResult, protocol.ReasonUnauthorized)
		return
	}
	e, err := fetch()
	if err != nil {
		reply(deps, cid, protocol.PacketEjectResult, protocol.ReasonDatabaseError)
		return
	}
	if e == nil {
		reply(deps, cid, protocol.PacketEjectResult, protocol.ReasonNoSuchEjection)
		return
	}
	ejectionResult(deps, cid, protocol.ReasonSuccess, e)
}

func ejectionResult(deps *Deps, cid registry.ConnectionID, reason protocol.ReasonCode, e *directory.Ejection) {
	p := protocol.NewPacket(protocol.PacketEjectResult)
	p.AddInt(protocol.VarReasonCode, int32(reason))
	if e != nil {
		p.AddUint(protocol.VarEjectionAddress, e.Address)
		p.AddInt(protocol.VarEjectionExpiration, int32(e.Expiration))
		p.AddInt(protocol.VarEjectionCreation, int32(e.Creation))
		p.AddString(protocol.VarEjectionComment, e.Comment)
	}
	send(deps, cid, p)
}

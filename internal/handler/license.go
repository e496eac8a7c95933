package handler

import (
	"context"

	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
	"github.com/aworlds/universe/internal/validate"
)

// LicenseAdd registers a new world license. Admin-only.
func LicenseAdd(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok {
		return
	}
	if !c.Session.IsAdmin() {
		reply(deps, cid, protocol.PacketLicenseResult, protocol.ReasonUnauthorized)
		return
	}
	name, ok := p.GetString(protocol.VarWorldName)
	if !ok {
		return
	}
	if reason := validate.WorldName(name); reason != protocol.ReasonSuccess {
		reply(deps, cid, protocol.PacketLicenseResult, reason)
		return
	}
	existing, err := deps.Directory.LicenseByName(ctx, name)
	if err != nil {
		reply(deps, cid, protocol.PacketLicenseResult, protocol.ReasonDatabaseError)
		return
	}
	if existing != nil {
		reply(deps, cid, protocol.PacketLicenseResult, protocol.ReasonWorldAlreadyExists)
		return
	}

	now := deps.Clock().Unix()
	license := &directory.License{
		Name:     name,
		Creation: now,
	}
	applyLicenseFields(p, license)
	if err := deps.Directory.LicenseAdd(ctx, license); err != nil {
		reply(deps, cid, protocol.PacketLicenseResult, protocol.ReasonWorldAlreadyExists)
		return
	}
	licenseResult(deps, cid, protocol.PacketLicenseResult, protocol.ReasonSuccess, license, true)
}

// LicenseChange updates an existing license. Admin-only; preserves
// id/name/creation/last_start/last_address.
func LicenseChange(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok {
		return
	}
	if !c.Session.IsAdmin() {
		reply(deps, cid, protocol.PacketLicenseChangeResult, protocol.ReasonUnauthorized)
		return
	}
	name, ok := p.GetString(protocol.VarWorldName)
	if !ok {
		return
	}
	existing, err := deps.Directory.LicenseByName(ctx, name)
	if err != nil {
		reply(deps, cid, protocol.PacketLicenseChangeResult, protocol.ReasonDatabaseError)
		return
	}
	if existing == nil {
		reply(deps, cid, protocol.PacketLicenseChangeResult, protocol.ReasonNoSuchLicense)
		return
	}

	updated := *existing
	applyLicenseFields(p, &updated)
	if err := deps.Directory.LicenseChange(ctx, &updated); err != nil {
		reply(deps, cid, protocol.PacketLicenseChangeResult, protocol.ReasonDatabaseError)
		return
	}
	licenseResult(deps, cid, protocol.PacketLicenseChangeResult, protocol.ReasonSuccess, &updated, true)
}

// applyLicenseFields copies the writable license fields from p into l.
// id, name, creation, last_start and last_address are never touched here.
func applyLicenseFields(p *protocol.Packet, l *directory.License) {
	if v, ok := p.GetString(protocol.VarLicensePassword); ok {
		l.Password = v
	}
	if v, ok := p.GetString(protocol.VarLicenseEmail); ok {
		l.Email = v
	}
	if v, ok := p.GetString(protocol.VarLicenseComment); ok {
		l.Comment = v
	}
	if v, ok := p.GetInt(protocol.VarLicenseExpiration); ok {
		l.Expiration = int64(v)
	}
	if v, ok := p.GetInt(protocol.VarLicenseUsers); ok {
		l.Users = v
	}
	if v, ok := p.GetInt(protocol.VarLicenseWorldSize); ok {
		l.WorldSize = v
	}
	if v, ok := p.GetByte(protocol.VarLicenseHidden); ok {
		l.Hidden = v != 0
	}
	if v, ok := p.GetByte(protocol.VarLicenseTourists); ok {
		l.Tourists = v != 0
	}
	if v, ok := p.GetByte(protocol.VarLicenseVoip); ok {
		l.Voip = v != 0
	}
	if v, ok := p.GetByte(protocol.VarLicensePlugins); ok {
		l.Plugins = v != 0
	}
}

// LicenseLookupByName, LicenseLookupPrev, and LicenseLookupNext answer the
// license directory queries. Non-admin callers see only the reduced field
// set {name, id, users, world_size} — a security boundary, not a
// convenience trim.
func LicenseLookupByName(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	name, ok := p.GetString(protocol.VarWorldName)
	if !ok {
		return
	}
	licenseLookup(deps, ctx, cid, func() (*directory.License, error) { return deps.Directory.LicenseByName(ctx, name) })
}

func LicenseLookupPrev(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	name, ok := p.GetString(protocol.VarWorldName)
	if !ok {
		return
	}
	licenseLookup(deps, ctx, cid, func() (*directory.License, error) { return deps.Directory.LicensePrev(ctx, name) })
}

func LicenseLookupNext(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	name, ok := p.GetString(protocol.VarWorldName)
	if !ok {
		return
	}
	licenseLookup(deps, ctx, cid, func() (*directory.License, error) { return deps.Directory.LicenseNext(ctx, name) })
}

func licenseLookup(deps *Deps, ctx context.Context, cid registry.ConnectionID, fetch func() (*directory.License, error)) {
	c, ok := conn(deps, cid)
	if !ok {
		return
	}
	l, err := fetch()
	if err != nil {
		reply(deps, cid, protocol.PacketLicenseResult, protocol.ReasonDatabaseError)
		return
	}
	if l == nil {
		reply(deps, cid, protocol.PacketLicenseResult, protocol.ReasonNoSuchLicense)
		return
	}
	licenseResult(deps, cid, protocol.PacketLicenseResult, protocol.ReasonSuccess, l, c.Session.IsAdmin())
}

func licenseResult(deps *Deps, cid registry.ConnectionID, pt protocol.PacketType, reason protocol.ReasonCode, l *directory.License, full bool) {
	p := protocol.NewPacket(pt)
	p.AddInt(protocol.VarReasonCode, int32(reason))
	if l != nil {
		p.AddUint(protocol.VarLicenseID, l.ID)
		p.AddString(protocol.VarWorldName, l.Name)
		p.AddInt(protocol.VarLicenseUsers, l.Users)
		p.AddInt(protocol.VarLicenseWorldSize, l.WorldSize)
		if full {
			p.AddString(protocol.VarLicensePassword, l.Password)
			p.AddString(protocol.VarLicenseEmail, l.Email)
			p.AddString(protocol.VarLicenseComment, l.Comment)
			p.AddInt(protocol.VarLicenseCreation, int32(l.Creation))
			p.AddInt(protocol.VarLicenseExpiration, int32(l.Expiration))
			p.AddInt(protocol.VarLicenseLastStart, int32(l.LastStart))
			p.AddUint(protocol.VarLicenseLastAddress, l.LastAddress)
			p.AddByte(protocol.VarLicenseHidden, boolByte(l.Hidden))
			p.AddByte(protocol.VarLicenseTourists, boolByte(l.Tourists))
			p.AddByte(protocol.VarLicenseVoip, boolByte(l.Voip))
			p.AddByte(protocol.VarLicensePlugins, boolByte(l.Plugins))
		}
	}
	send(deps, cid, p)
}

package handler

import (
	"context"

	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
	"github.com/aworlds/universe/internal/validate"
)

// CitizenChange edits a citizen record: a logged-in citizen
// may edit their own record; an admin session may edit any citizen, and
// may additionally write the admin-only fields.
func CitizenChange(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok {
		return
	}
	targetID, ok := p.GetUint(protocol.VarCitizenNumber)
	if !ok {
		return // malformed request: protocol-level drop
	}

	selfID := c.Session.CitizenID
	admin := c.Session.IsAdmin()
	if targetID != selfID && !admin {
		reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonUnauthorized)
		return
	}

	original, err := deps.Directory.CitizenByNumber(ctx, targetID)
	if err != nil {
		reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonDatabaseError)
		return
	}
	if original == nil {
		reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonNoSuchCitizen)
		return
	}

	if !deps.Config.Flags.AllowCitizenChanges && !admin {
		reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonUnauthorized)
		return
	}

	updated := *original

	if name, ok := p.GetString(protocol.VarCitizenName); ok && name != original.Name {
		existing, err := deps.Directory.CitizenByName(ctx, name)
		if err != nil {
			reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonDatabaseError)
			return
		}
		if existing != nil && existing.ID != targetID {
			reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonNameAlreadyUsed)
			return
		}
		updated.Name = name
	}
	if v, ok := p.GetString(protocol.VarCitizenPassword); ok {
		updated.Password = v
	}
	if v, ok := p.GetString(protocol.VarCitizenEmail); ok {
		updated.Email = v
	}
	if v, ok := p.GetString(protocol.VarCitizenPrivPass); ok {
		updated.PrivPass = v
	}
	if v, ok := p.GetString(protocol.VarCitizenURL); ok {
		updated.URL = v
	}
	if v, ok := p.GetString(protocol.VarCitizenCAVTemplate); ok {
		updated.CAVTemplate = v
	}
	if v, ok := p.GetByte(protocol.VarCitizenCAVEnabled); ok {
		updated.CAVEnabled = v != 0
	}
	if v, ok := p.GetUint(protocol.VarCitizenPrivacy); ok {
		updated.Privacy = v
	}

	if admin {
		if v, ok := p.GetString(protocol.VarCitizenComment); ok {
			updated.Comment = v
		}
		if v, ok := p.GetInt(protocol.VarCitizenExpiration); ok {
			updated.Expiration = int64(v)
		}
		if v, ok := p.GetInt(protocol.VarCitizenBotLimit); ok {
			updated.BotLimit = v
		}
		if v, ok := p.GetByte(protocol.VarCitizenBeta); ok {
			updated.Beta = v != 0
		}
		if v, ok := p.GetByte(protocol.VarCitizenEnabled); ok {
			updated.Enabled = v != 0
		}
		if v, ok := p.GetByte(protocol.VarCitizenTrial); ok {
			updated.Trial = v != 0
		}
	}

	if err := deps.Directory.CitizenChange(ctx, &updated); err != nil {
		reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonUnableToChangeCitizen)
		return
	}

	citizenResult(deps, cid, protocol.ReasonSuccess, &updated)
}

// CitizenAdd registers a new citizen, gated by the allow_immigration
// flag.
func CitizenAdd(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	if !deps.Config.Flags.AllowImmigration {
		reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonUnauthorized)
		return
	}
	name, ok := p.GetString(protocol.VarCitizenName)
	if !ok {
		return
	}
	if reason := validate.CitizenName(name); reason != protocol.ReasonSuccess {
		reply(deps, cid, protocol.PacketCitizenResult, reason)
		return
	}
	existing, err := deps.Directory.CitizenByName(ctx, name)
	if err != nil {
		reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonDatabaseError)
		return
	}
	if existing != nil {
		reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonNameAlreadyUsed)
		return
	}

	password, _ := p.GetString(protocol.VarCitizenPassword)
	email, _ := p.GetString(protocol.VarCitizenEmail)
	now := deps.Clock().Unix()

	citizen := &directory.Citizen{
		Name:        name,
		Password:    password,
		Email:       email,
		Immigration: now,
		Enabled:     true,
	}
	if err := deps.Directory.CitizenAdd(ctx, citizen); err != nil {
		reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonUnableToInsertName)
		return
	}
	citizenResult(deps, cid, protocol.ReasonSuccess, citizen)
}

// CitizenLookupByNumber, CitizenLookupByName, CitizenLookupPrev, and
// CitizenLookupNext answer the by_number/by_name/prev/next directory
// queries over the wire. Non-admin callers get the public field set
// only; email, comment, and last_address are admin-visible, same as the
// license lookup family.

func CitizenLookupByNumber(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	id, ok := p.GetUint(protocol.VarCitizenNumber)
	if !ok {
		return
	}
	citizenLookup(deps, ctx, cid, func() (*directory.Citizen, error) { return deps.Directory.CitizenByNumber(ctx, id) })
}

func CitizenLookupByName(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	name, ok := p.GetString(protocol.VarCitizenName)
	if !ok {
		return
	}
	citizenLookup(deps, ctx, cid, func() (*directory.Citizen, error) { return deps.Directory.CitizenByName(ctx, name) })
}

func CitizenLookupPrev(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	id, ok := p.GetUint(protocol.VarCitizenNumber)
	if !ok {
		return
	}
	citizenLookup(deps, ctx, cid, func() (*directory.Citizen, error) { return deps.Directory.CitizenPrevByNumber(ctx, id) })
}

func CitizenLookupNext(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	id, ok := p.GetUint(protocol.VarCitizenNumber)
	if !ok {
		return
	}
	citizenLookup(deps, ctx, cid, func() (*directory.Citizen, error) { return deps.Directory.CitizenNextByNumber(ctx, id) })
}

func citizenLookup(deps *Deps, ctx context.Context, cid registry.ConnectionID, fetch func() (*directory.Citizen, error)) {
	caller, ok := conn(deps, cid)
	if !ok {
		return
	}
	c, err := fetch()
	if err != nil {
		reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonDatabaseError)
		return
	}
	if c == nil {
		reply(deps, cid, protocol.PacketCitizenResult, protocol.ReasonNoSuchCitizen)
		return
	}
	citizenResultFiltered(deps, cid, protocol.ReasonSuccess, c, caller.Session.IsAdmin())
}

func citizenResult(deps *Deps, cid registry.ConnectionID, reason protocol.ReasonCode, c *directory.Citizen) {
	citizenResultFiltered(deps, cid, reason, c, true)
}

func citizenResultFiltered(deps *Deps, cid registry.ConnectionID, reason protocol.ReasonCode, c *directory.Citizen, full bool) {
	p := protocol.NewPacket(protocol.PacketCitizenResult)
	p.AddInt(protocol.VarReasonCode, int32(reason))
	if c != nil {
		p.AddUint(protocol.VarCitizenNumber, c.ID)
		p.AddString(protocol.VarCitizenName, c.Name)
		p.AddString(protocol.VarCitizenURL, c.URL)
		p.AddInt(protocol.VarCitizenImmigration, int32(c.Immigration))
		p.AddInt(protocol.VarCitizenLastLogin, int32(c.LastLogin))
		p.AddInt(protocol.VarCitizenTotalTime, int32(c.TotalTime))
		p.AddByte(protocol.VarCitizenBeta, boolByte(c.Beta))
		p.AddByte(protocol.VarCitizenCAVEnabled, boolByte(c.CAVEnabled))
		p.AddString(protocol.VarCitizenCAVTemplate, c.CAVTemplate)
		if full {
			p.AddString(protocol.VarCitizenEmail, c.Email)
			p.AddString(protocol.VarCitizenComment, c.Comment)
			p.AddInt(protocol.VarCitizenExpiration, int32(c.Expiration))
			p.AddUint(protocol.VarCitizenLastAddress, c.LastAddress)
			p.AddInt(protocol.VarCitizenBotLimit, c.BotLimit)
			p.AddByte(protocol.VarCitizenTrial, boolByte(c.Trial))
			p.AddByte(protocol.VarCitizenEnabled, boolByte(c.Enabled))
			p.AddUint(protocol.VarCitizenPrivacy, c.Privacy)
		}
	}
	send(deps, cid, p)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

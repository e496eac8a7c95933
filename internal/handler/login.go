package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
	"github.com/aworlds/universe/internal/session"
	"github.com/aworlds/universe/internal/validate"
)

// Login establishes a player, tourist, or bot session on a fresh
// connection. A successful citizen login evicts any prior connection for
// the same citizen id — the evicted side is told why before the new
// session is indexed.
func Login(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok {
		return
	}
	if c.Session.Kind != session.KindUnknown {
		// Re-login on a live session is a protocol violation; drop it.
		return
	}
	lt, ok := p.GetByte(protocol.VarLoginType)
	if !ok {
		return
	}
	name, ok := p.GetString(protocol.VarCitizenName)
	if !ok {
		return
	}

	switch protocol.LoginType(lt) {
	case protocol.LoginCitizen, protocol.LoginTourist:
		if deps.Config.Server.PlayerLimit > 0 && countPlayers(deps) >= deps.Config.Server.PlayerLimit {
			reply(deps, cid, protocol.PacketLoginResult, protocol.ReasonServerFull)
			return
		}
	}

	switch protocol.LoginType(lt) {
	case protocol.LoginCitizen:
		loginCitizen(deps, ctx, cid, c, p, name)
	case protocol.LoginTourist:
		loginTourist(deps, ctx, cid, c, name)
	case protocol.LoginBot:
		loginBot(deps, ctx, cid, c, p, name)
	}
}

func loginCitizen(deps *Deps, ctx context.Context, cid registry.ConnectionID, c *registry.Connection, p *protocol.Packet, name string) {
	citizen, reason := authenticateCitizen(deps, ctx, p, name)
	if reason != protocol.ReasonSuccess {
		reply(deps, cid, protocol.PacketLoginResult, reason)
		return
	}

	if prev, online := deps.Registry.GetByCitizenID(citizen.ID); online && prev.ID != cid {
		disconnect := protocol.NewPacket(protocol.PacketDisconnect)
		disconnect.AddInt(protocol.VarReasonCode, int32(protocol.ReasonLoggedInElsewhere))
		sendTo(deps, prev, disconnect)
		_ = prev.Transport.Close()
	}
	deps.Registry.IndexCitizen(cid, citizen.ID)

	now := deps.Clock().Unix()
	citizen.LastLogin = now
	citizen.LastAddress = remoteAddressUint32(c)
	if err := deps.Directory.CitizenChange(ctx, citizen); err != nil {
		deps.Log.Warn("login bookkeeping failed", zap.Uint32("citizen_id", citizen.ID), zap.Error(err))
	}

	admin := isAdminLogin(deps, ctx, p, citizen)
	c.Session.BecomePlayer(session.PlayerCitizen, citizen.ID, citizen.Name, admin)

	resp := protocol.NewPacket(protocol.PacketLoginResult)
	resp.AddInt(protocol.VarReasonCode, int32(protocol.ReasonSuccess))
	resp.AddUint(protocol.VarCitizenNumber, citizen.ID)
	resp.AddString(protocol.VarCitizenName, citizen.Name)
	send(deps, cid, resp)

	if n, err := deps.Directory.TelegramCountUndelivered(ctx, citizen.ID); err == nil && n > 0 {
		send(deps, cid, protocol.NewPacket(protocol.PacketTelegramUpdateAvailable))
	}

	deps.Tabs.RegenerateContactListAndMutuals(ctx, citizen.ID)
	deps.Tabs.RegeneratePlayerList(ctx)
	deps.Tabs.RegenerateWorldLists(ctx)
}

func loginTourist(deps *Deps, ctx context.Context, cid registry.ConnectionID, c *registry.Connection, name string) {
	if reason := validate.CitizenName(name); reason != protocol.ReasonSuccess {
		reply(deps, cid, protocol.PacketLoginResult, reason)
		return
	}
	// A tourist may not impersonate a registered name.
	existing, err := deps.Directory.CitizenByName(ctx, name)
	if err != nil {
		reply(deps, cid, protocol.PacketLoginResult, protocol.ReasonDatabaseError)
		return
	}
	if existing != nil {
		reply(deps, cid, protocol.PacketLoginResult, protocol.ReasonNameAlreadyUsed)
		return
	}

	c.Session.BecomePlayer(session.PlayerTourist, 0, name, false)

	resp := protocol.NewPacket(protocol.PacketLoginResult)
	resp.AddInt(protocol.VarReasonCode, int32(protocol.ReasonSuccess))
	resp.AddString(protocol.VarCitizenName, name)
	send(deps, cid, resp)

	deps.Tabs.RegeneratePlayerList(ctx)
	deps.Tabs.RegenerateWorldLists(ctx)
}

func loginBot(deps *Deps, ctx context.Context, cid registry.ConnectionID, c *registry.Connection, p *protocol.Packet, name string) {
	citizen, reason := authenticateCitizen(deps, ctx, p, name)
	if reason != protocol.ReasonSuccess {
		reply(deps, cid, protocol.PacketLoginResult, reason)
		return
	}
	if countBots(deps, citizen.ID) >= int(citizen.BotLimit) {
		reply(deps, cid, protocol.PacketLoginResult, protocol.ReasonUnauthorized)
		return
	}

	c.Session.BecomeBot(citizen.ID, citizen.Name)

	resp := protocol.NewPacket(protocol.PacketLoginResult)
	resp.AddInt(protocol.VarReasonCode, int32(protocol.ReasonSuccess))
	resp.AddUint(protocol.VarCitizenNumber, citizen.ID)
	resp.AddString(protocol.VarCitizenName, citizen.Name)
	send(deps, cid, resp)
}

// authenticateCitizen resolves and checks the credentials carried by a
// citizen or bot login request.
func authenticateCitizen(deps *Deps, ctx context.Context, p *protocol.Packet, name string) (*directory.Citizen, protocol.ReasonCode) {
	citizen, err := deps.Directory.CitizenByName(ctx, name)
	if err != nil {
		return nil, protocol.ReasonDatabaseError
	}
	if citizen == nil {
		return nil, protocol.ReasonNoSuchCitizen
	}
	if !citizen.Enabled {
		return nil, protocol.ReasonCitizenDisabled
	}
	password, _ := p.GetString(protocol.VarCitizenPassword)
	if !directory.VerifyPassword(citizen.Password, password) {
		return nil, protocol.ReasonInvalidPassword
	}
	return citizen, protocol.ReasonSuccess
}

// isAdminLogin derives operator privilege: the session is an
// admin if it is the operator citizen itself, or if the login supplied
// the operator citizen's privilege password.
func isAdminLogin(deps *Deps, ctx context.Context, p *protocol.Packet, citizen *directory.Citizen) bool {
	operatorID := deps.Config.Server.OperatorCitizenID
	if operatorID == 0 {
		operatorID = session.DefaultOperatorCitizenID
	}
	if session.IsOperator(citizen.ID, operatorID) {
		return true
	}
	privPass, ok := p.GetString(protocol.VarCitizenPrivPass)
	if !ok || privPass == "" {
		return false
	}
	operator, err := deps.Directory.CitizenByNumber(ctx, operatorID)
	if err != nil || operator == nil || operator.PrivPass == "" {
		return false
	}
	return directory.VerifyPassword(operator.PrivPass, privPass)
}

func countPlayers(deps *Deps) int {
	n := 0
	deps.Registry.IterPlayers(func(*registry.Connection) { n++ })
	return n
}

func countBots(deps *Deps, ownerCitizenID uint32) int {
	n := 0
	deps.Registry.IterBots(func(c *registry.Connection) {
		if c.Session.BotOwnerCitizenID == ownerCitizenID {
			n++
		}
	})
	return n
}

package handler

import (
	"context"

	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
	"github.com/aworlds/universe/internal/tabs"
)

// SetAfk toggles the logged-in player's afk flag and regenerates their
// contact tab plus mutuals so friends' lists reflect the change.
func SetAfk(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok {
		return
	}
	afk, ok := p.GetByte(protocol.VarAFKStatus)
	if !ok {
		return
	}
	changed := c.Session.SetAfk(afk != 0)
	if !changed {
		return
	}
	if c.Session.IsCitizen() {
		deps.Tabs.RegenerateContactListAndMutuals(ctx, c.Session.CitizenID)
	}
}

// UserList paginates the requester's current player-tab snapshot from a
// client-supplied continuation id, gated by the user_list config flag.
func UserList(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	if !deps.Config.Flags.UserList {
		return
	}
	c, ok := conn(deps, cid)
	if !ok {
		return
	}
	from, ok := p.GetUint(protocol.VarUserListContinuationID)
	if !ok {
		from = 0
	}

	entries := tabs.SendListStartingFrom(c.Session.Tabs.Players.Current, from, maxListChunk)
	for _, entry := range entries {
		send(deps, cid, tabs.EntryPacket(protocol.PacketUserList, protocol.EntryAdd, entry))
	}
}

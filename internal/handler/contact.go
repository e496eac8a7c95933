package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
	"github.com/aworlds/universe/internal/tabs"
)

// contactNotifyBody is the wire contract for friend-request rendering
// in the client: a literal two-line telegram body carrying the
// requester's id and name.
func contactNotifyBody(fromID uint32, fromName string) string {
	return fmt.Sprintf("\n\x01(%d)%s\n", fromID, fromName)
}

// ContactAdd sends a friend request from the logged-in citizen to
// another. The requester's edge is stored pending until the target
// confirms via ContactConfirm.
func ContactAdd(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok || !c.Session.IsCitizen() {
		return
	}
	self := c.Session.CitizenID
	other, ok := p.GetUint(protocol.VarContactListCitizenID)
	if !ok {
		return
	}

	blocked, err := deps.Directory.ContactBlocked(ctx, self, other)
	if err != nil {
		reply(deps, cid, protocol.PacketContactAdd, protocol.ReasonDatabaseError)
		return
	}
	rawOptions, _ := p.GetInt(protocol.VarContactListOptions)
	options := directory.ContactOptions(rawOptions)
	if blocked && !options.Has(directory.AllBlocked) {
		reply(deps, cid, protocol.PacketContactAdd, protocol.ReasonContactAddBlocked)
		return
	}

	_, selfHasEdge, err := deps.Directory.ContactGet(ctx, self, other)
	if err != nil {
		reply(deps, cid, protocol.PacketContactAdd, protocol.ReasonDatabaseError)
		return
	}
	reverse, otherHasEdge, err := deps.Directory.ContactGet(ctx, other, self)
	if err != nil {
		reply(deps, cid, protocol.PacketContactAdd, protocol.ReasonDatabaseError)
		return
	}
	if selfHasEdge && otherHasEdge {
		reply(deps, cid, protocol.PacketContactAdd, protocol.ReasonUnableToSetContact)
		return
	}
	// The target of an outstanding request answers with ContactConfirm,
	// never with an add of its own.
	if otherHasEdge && reverse.Has(directory.FriendRequestBlocked) {
		reply(deps, cid, protocol.PacketContactAdd, protocol.ReasonUnableToSetContact)
		return
	}

	// The requested options are kept, minus the acceptance bit and plus
	// the pending-request marker.
	options &^= directory.FriendRequestAllowed
	options |= directory.FriendRequestBlocked
	if err := deps.Directory.ContactSet(ctx, self, other, options); err != nil {
		reply(deps, cid, protocol.PacketContactAdd, protocol.ReasonUnableToSetContact)
		return
	}

	citizen, err := deps.Directory.CitizenByNumber(ctx, self)
	if err == nil && citizen != nil {
		body := contactNotifyBody(self, citizen.Name)
		if _, err := deps.Directory.TelegramAdd(ctx, other, self, deps.Clock().Unix(), body); err != nil {
			deps.Log.Warn("contact request telegram failed", zap.Error(err))
		}
	}
	if target, online := deps.Registry.GetByCitizenID(other); online {
		sendTo(deps, target, protocol.NewPacket(protocol.PacketTelegramUpdateAvailable))
	}

	deps.Tabs.RegenerateContactList(ctx, self)
	reply(deps, cid, protocol.PacketContactAdd, protocol.ReasonSuccess)
}

// ContactConfirm answers a pending friend request. An options value of
// -1 is a silent deny: no edge is created and no error is reported. The
// pending edge's exact bit pattern is otherwise load-bearing only for
// detecting that a request is outstanding, not for the outcome of
// confirming it: any non-(-1) options value confirms.
func ContactConfirm(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok || !c.Session.IsCitizen() {
		return
	}
	self := c.Session.CitizenID
	other, ok := p.GetUint(protocol.VarContactListCitizenID)
	if !ok {
		return
	}
	options, ok := p.GetInt(protocol.VarContactListOptions)
	if !ok {
		return
	}
	if options == -1 {
		reply(deps, cid, protocol.PacketContactConfirm, protocol.ReasonSuccess)
		return
	}

	reverse, exists, err := deps.Directory.ContactGet(ctx, other, self)
	if err != nil {
		reply(deps, cid, protocol.PacketContactConfirm, protocol.ReasonDatabaseError)
		return
	}
	// Confirmable only while other's edge still carries the pending
	// request marker ContactAdd stamped on it.
	if !exists || !reverse.Has(directory.FriendRequestBlocked) {
		reply(deps, cid, protocol.PacketContactConfirm, protocol.ReasonUnableToSetContact)
		return
	}

	if err := deps.Directory.ContactSet(ctx, self, other, 0); err != nil {
		reply(deps, cid, protocol.PacketContactConfirm, protocol.ReasonUnableToSetContact)
		return
	}
	if err := deps.Directory.ContactSet(ctx, other, self, 0); err != nil {
		reply(deps, cid, protocol.PacketContactConfirm, protocol.ReasonUnableToSetContact)
		return
	}

	deps.Tabs.RegenerateContactListAndMutuals(ctx, self)
	reply(deps, cid, protocol.PacketContactConfirm, protocol.ReasonSuccess)
}

// ContactDelete removes self's edge toward other, and the reverse edge
// too unless other has blocked self entirely.
func ContactDelete(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok || !c.Session.IsCitizen() {
		return
	}
	self := c.Session.CitizenID
	other, ok := p.GetUint(protocol.VarContactListCitizenID)
	if !ok {
		return
	}

	if err := deps.Directory.ContactDelete(ctx, self, other); err != nil {
		reply(deps, cid, protocol.PacketContactDelete, protocol.ReasonDatabaseError)
		return
	}

	blocked, err := deps.Directory.ContactBlocked(ctx, self, other)
	if err != nil {
		reply(deps, cid, protocol.PacketContactDelete, protocol.ReasonDatabaseError)
		return
	}
	if !blocked {
		if err := deps.Directory.ContactDelete(ctx, other, self); err != nil {
			reply(deps, cid, protocol.PacketContactDelete, protocol.ReasonDatabaseError)
			return
		}
	}

	deps.Tabs.RegenerateContactList(ctx, self)
	deps.Tabs.RegenerateContactList(ctx, other)
	reply(deps, cid, protocol.PacketContactDelete, protocol.ReasonSuccess)
}

// ContactChange merges option_changes into an existing edge, or — when
// other_id is 0 — rewrites self's default/privacy mask.
func ContactChange(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok || !c.Session.IsCitizen() {
		return
	}
	self := c.Session.CitizenID
	other, ok := p.GetUint(protocol.VarContactListCitizenID)
	if !ok {
		return
	}
	delta, ok := p.GetInt(protocol.VarContactListOptions)
	if !ok {
		return
	}

	if other == 0 {
		current, _, err := deps.Directory.ContactGet(ctx, self, 0)
		if err != nil {
			reply(deps, cid, protocol.PacketContactChange, protocol.ReasonDatabaseError)
			return
		}
		updated := current.ApplyChanges(directory.ContactOptions(delta))
		if err := deps.Directory.ContactSet(ctx, self, 0, updated); err != nil {
			reply(deps, cid, protocol.PacketContactChange, protocol.ReasonUnableToSetContact)
			return
		}
		citizen, err := deps.Directory.CitizenByNumber(ctx, self)
		if err == nil && citizen != nil {
			citizen.Privacy = uint32(updated)
			_ = deps.Directory.CitizenChange(ctx, citizen)
		}
		reply(deps, cid, protocol.PacketContactChange, protocol.ReasonSuccess)
		return
	}

	current, _, err := deps.Directory.ContactGet(ctx, self, other)
	if err != nil {
		reply(deps, cid, protocol.PacketContactChange, protocol.ReasonDatabaseError)
		return
	}
	updated := current.ApplyChanges(directory.ContactOptions(delta))
	if err := deps.Directory.ContactSet(ctx, self, other, updated); err != nil {
		reply(deps, cid, protocol.PacketContactChange, protocol.ReasonUnableToSetContact)
		return
	}
	if updated.Has(directory.AllBlocked) {
		if err := deps.Directory.ContactDelete(ctx, other, self); err != nil {
			reply(deps, cid, protocol.PacketContactChange, protocol.ReasonDatabaseError)
			return
		}
	}

	deps.Tabs.RegenerateContactList(ctx, self)
	deps.Tabs.RegenerateContactList(ctx, other)
	reply(deps, cid, protocol.PacketContactChange, protocol.ReasonSuccess)
}

// ContactList paginates self's current contact-tab snapshot from a
// client-supplied starting citizen id.
func ContactList(deps *Deps, ctx context.Context, cid registry.ConnectionID, p *protocol.Packet) {
	c, ok := conn(deps, cid)
	if !ok || !c.Session.IsCitizen() {
		return
	}
	from, ok := p.GetUint(protocol.VarContactListCitizenID)
	if !ok {
		from = 0
	}

	entries := tabs.SendListStartingFrom(c.Session.Tabs.Contacts.Current, from, maxListChunk)
	for _, entry := range entries {
		send(deps, cid, tabs.EntryPacket(protocol.PacketContactList, protocol.EntryAdd, entry))
	}
}

const maxListChunk = 64

// Package tabs implements the tab engine: diffing the current delivered
// snapshot of a player's list against a freshly rebuilt one and
// streaming the client the add/update/remove packets needed to catch up.
// The pattern is the same one MMO servers use for area-of-interest
// visibility (compute a "next" set, compare against what the client
// already has, emit per-entry deltas, then swap), applied to the
// contact/player/world tabs instead of spatial proximity.
package tabs

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/protocol"
	"github.com/aworlds/universe/internal/registry"
	"github.com/aworlds/universe/internal/session"
)

// Engine regenerates tab snapshots against the registry and directory.
type Engine struct {
	Registry  *registry.Registry
	Directory directory.Store
	Log       *zap.Logger
}

// New returns a tab Engine.
func New(reg *registry.Registry, store directory.Store, log *zap.Logger) *Engine {
	return &Engine{Registry: reg, Directory: store, Log: log}
}

// RegenerateContactList rebuilds cid's contact tab from the directory and
// the current online set, diffs it against the last delivered snapshot,
// and streams the deltas to cid's connection if online. Regeneration
// requests that arrive while one is already in flight are coalesced: at
// most one pending rerun is queued.
func (e *Engine) RegenerateContactList(ctx context.Context, cid uint32) {
	conn, ok := e.Registry.GetByCitizenID(cid)
	if !ok {
		return
	}
	tab := &conn.Session.Tabs.Contacts
	if !tab.BeginRegenerate() {
		return
	}
	e.runContactRegeneration(ctx, conn)
	if rerun := tab.Finish(); rerun {
		e.RegenerateContactList(ctx, cid)
	}
}

func (e *Engine) runContactRegeneration(ctx context.Context, conn *registry.Connection) {
	tab := &conn.Session.Tabs.Contacts
	next := e.buildContactSnapshot(ctx, conn.Session.CitizenID)
	tab.SetNext(next)
	e.sendDiff(conn, tab.Current, next, protocol.PacketContactList)
}

func (e *Engine) buildContactSnapshot(ctx context.Context, cid uint32) session.Snapshot {
	snap := session.Snapshot{Entries: make(map[uint32]session.Entry)}
	contacts, err := e.Directory.ContactGetAll(ctx, cid)
	if err != nil {
		e.Log.Warn("contact snapshot: directory error", zap.Uint32("citizen_id", cid), zap.Error(err))
		return snap
	}
	for otherID, opts := range contacts {
		if otherID == 0 {
			// The special (cid, 0) row is the default/privacy mask, not
			// a list entry.
			continue
		}
		citizen, err := e.Directory.CitizenByNumber(ctx, otherID)
		if err != nil || citizen == nil {
			continue
		}
		reverse, hasReverse, err := e.Directory.ContactGet(ctx, otherID, cid)
		if err != nil {
			continue
		}
		mutual := directory.Mutual(opts, reverse, true, hasReverse)
		afk := false
		if otherConn, online := e.Registry.GetByCitizenID(otherID); online {
			afk = otherConn.Session.IsAfk()
		}
		snap.Entries[otherID] = session.Entry{
			Key:       otherID,
			Name:      citizen.Name,
			CitizenID: otherID,
			Afk:       afk,
			Mutual:    mutual,
		}
	}
	return snap
}

// RegenerateContactListAndMutuals regenerates cid's own contact tab, then
// every online mutual friend's contact tab too, since cid's AFK flag
// appears inside each of those lists (entries carry no online state).
func (e *Engine) RegenerateContactListAndMutuals(ctx context.Context, cid uint32) {
	e.RegenerateContactList(ctx, cid)

	contacts, err := e.Directory.ContactGetAll(ctx, cid)
	if err != nil {
		return
	}
	for otherID, opts := range contacts {
		if otherID == 0 {
			continue
		}
		reverse, hasReverse, err := e.Directory.ContactGet(ctx, otherID, cid)
		if err != nil {
			continue
		}
		if !directory.Mutual(opts, reverse, true, hasReverse) {
			continue
		}
		if _, online := e.Registry.GetByCitizenID(otherID); online {
			e.RegenerateContactList(ctx, otherID)
		}
	}
}

// RegeneratePlayerList rebuilds the player tab for every online player
// connection, reflecting the current online set.
func (e *Engine) RegeneratePlayerList(ctx context.Context) {
	var conns []*registry.Connection
	e.Registry.IterPlayers(func(c *registry.Connection) {
		conns = append(conns, c)
	})

	next := session.Snapshot{Entries: make(map[uint32]session.Entry)}
	for _, c := range conns {
		next.Entries[uint32(c.ID)] = session.Entry{
			Key:       uint32(c.ID),
			Name:      c.Session.DisplayName,
			CitizenID: c.Session.CitizenID,
			Afk:       c.Session.IsAfk(),
		}
	}

	for _, c := range conns {
		tab := &c.Session.Tabs.Players
		if !tab.BeginRegenerate() {
			continue
		}
		tab.SetNext(next)
		e.sendDiff(c, tab.Current, next, protocol.PacketUserList)
		tab.Finish()
	}
}

// RegenerateWorldLists rebuilds the world tab for every online player
// whenever a world server registers or drops. Hidden worlds stay off the
// list; entries are keyed by license id.
func (e *Engine) RegenerateWorldLists(ctx context.Context) {
	next := session.Snapshot{Entries: make(map[uint32]session.Entry)}
	e.Registry.IterWorlds(func(c *registry.Connection) {
		license, err := e.Directory.LicenseByName(ctx, c.Session.WorldName)
		if err != nil || license == nil || license.Hidden {
			return
		}
		next.Entries[license.ID] = session.Entry{
			Key:  license.ID,
			Name: license.Name,
		}
	})

	var conns []*registry.Connection
	e.Registry.IterPlayers(func(c *registry.Connection) {
		conns = append(conns, c)
	})
	for _, c := range conns {
		tab := &c.Session.Tabs.Worlds
		if !tab.BeginRegenerate() {
			continue
		}
		tab.SetNext(next)
		e.sendDiff(c, tab.Current, next, protocol.PacketWorldList)
		tab.Finish()
	}
}

// sendDiff compares cur to next and streams one packet per changed entry
// to conn, best-effort: third-party notifications never affect the
// requester's own outcome, and a closing connection silently drops
// writes.
func (e *Engine) sendDiff(conn *registry.Connection, cur, next session.Snapshot, pt protocol.PacketType) {
	for key, entry := range next.Entries {
		old, existed := cur.Entries[key]
		if !existed {
			e.send(conn, EntryPacket(pt, protocol.EntryAdd, entry))
			continue
		}
		if old != entry {
			e.send(conn, EntryPacket(pt, protocol.EntryUpdate, entry))
		}
	}
	for key, entry := range cur.Entries {
		if _, stillPresent := next.Entries[key]; !stillPresent {
			e.send(conn, EntryPacket(pt, protocol.EntryRemove, entry))
		}
	}
}

func (e *Engine) send(conn *registry.Connection, p *protocol.Packet) {
	data, err := protocol.Encode(p)
	if err != nil {
		e.Log.Debug("tab delivery encode failed", zap.Error(err))
		return
	}
	if err := conn.Transport.WritePacket(data); err != nil {
		e.Log.Debug("tab delivery dropped", zap.Error(err))
	}
}

// EntryPacket builds one tab-diff packet of type pt tagging entry with
// action. Shared by the tab engine's own diffing and the UserList/
// ContactList handlers, which emit a stream of EntryAdd packets when
// paginating the current snapshot rather than diffing against it.
func EntryPacket(pt protocol.PacketType, action protocol.EntryAction, entry session.Entry) *protocol.Packet {
	p := protocol.NewPacket(pt)
	p.AddByte(protocol.VarEntryAction, byte(action))
	p.AddUint(protocol.VarEntryKey, entry.Key)
	p.AddString(protocol.VarEntryName, entry.Name)
	p.AddByte(protocol.VarEntryAfk, boolByte(entry.Afk))
	p.AddByte(protocol.VarEntryMutual, boolByte(entry.Mutual))
	return p
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// SendListStartingFrom emits cur's entries whose Key is >= from, ordered
// ascending, as a single size-limited batch. The UserList/ContactList
// handlers paginate this way against the current snapshot, never next.
func SendListStartingFrom(cur session.Snapshot, from uint32, maxEntries int) []session.Entry {
	var all []session.Entry
	for _, e := range cur.Entries {
		if e.Key >= from {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Key < all[j].Key })
	if len(all) > maxEntries {
		all = all[:maxEntries]
	}
	return all
}

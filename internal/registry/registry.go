// Package registry is the indexed set of live connections. It is owned
// exclusively by the event loop goroutine, so none of its operations
// take a lock.
package registry

import (
	"github.com/aworlds/universe/internal/session"
	"github.com/aworlds/universe/internal/transport"
)

// ConnectionID identifies a connection for the lifetime of the process.
type ConnectionID uint64

// Connection is one live transport plus its session state.
type Connection struct {
	ID        ConnectionID
	Transport transport.Transport
	Session   *session.Session
}

// Registry holds ConnectionId -> Connection plus the citizen_id and
// world_name secondary indices. Only the event-loop
// goroutine may call its methods; it is not safe for concurrent use.
type Registry struct {
	byID        map[ConnectionID]*Connection
	byCitizenID map[uint32]ConnectionID
	byWorldName map[string]ConnectionID
	nextID      ConnectionID
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byID:        make(map[ConnectionID]*Connection),
		byCitizenID: make(map[uint32]ConnectionID),
		byWorldName: make(map[string]ConnectionID),
	}
}

// Insert registers a new connection and returns its id.
func (r *Registry) Insert(t transport.Transport) *Connection {
	r.nextID++
	conn := &Connection{
		ID:        r.nextID,
		Transport: t,
		Session:   session.New(),
	}
	r.byID[conn.ID] = conn
	return conn
}

// Get looks up a connection by id.
func (r *Registry) Get(id ConnectionID) (*Connection, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// GetByCitizenID looks up the connection currently logged in as citizenID.
func (r *Registry) GetByCitizenID(citizenID uint32) (*Connection, bool) {
	id, ok := r.byCitizenID[citizenID]
	if !ok {
		return nil, false
	}
	return r.Get(id)
}

// GetByWorldName looks up the world-server connection serving worldName.
func (r *Registry) GetByWorldName(worldName string) (*Connection, bool) {
	id, ok := r.byWorldName[worldName]
	if !ok {
		return nil, false
	}
	return r.Get(id)
}

// IndexCitizen records that conn is now logged in as citizenID. A
// citizen may be connected only once, so any prior connection under
// that id is removed from the registry first. Returns that removed
// connection, if any; by then conn is already indexed, so a caller that
// must notify the prior connection first looks it up with
// GetByCitizenID before calling IndexCitizen.
func (r *Registry) IndexCitizen(id ConnectionID, citizenID uint32) (evicted *Connection) {
	if prevID, ok := r.byCitizenID[citizenID]; ok && prevID != id {
		evicted = r.Remove(prevID)
	}
	r.byCitizenID[citizenID] = id
	return evicted
}

// IndexWorldName records that conn claims worldName.
func (r *Registry) IndexWorldName(id ConnectionID, worldName string) {
	r.byWorldName[worldName] = id
}

// Remove deletes a connection and clears all of its secondary indices
// atomically (from the caller's perspective — the event loop is
// single-threaded, so "atomic" just means no intervening dispatch can
// observe a partially removed connection).
func (r *Registry) Remove(id ConnectionID) *Connection {
	conn, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	for citizenID, cid := range r.byCitizenID {
		if cid == id {
			delete(r.byCitizenID, citizenID)
		}
	}
	for worldName, cid := range r.byWorldName {
		if cid == id {
			delete(r.byWorldName, worldName)
		}
	}
	return conn
}

// IterPlayers calls fn for every connection whose session is a logged-in
// or tourist player. Iteration order is unspecified.
func (r *Registry) IterPlayers(fn func(*Connection)) {
	for _, conn := range r.byID {
		if conn.Session != nil && conn.Session.Kind == session.KindPlayer {
			fn(conn)
		}
	}
}

// IterBots calls fn for every bot connection.
func (r *Registry) IterBots(fn func(*Connection)) {
	for _, conn := range r.byID {
		if conn.Session != nil && conn.Session.Kind == session.KindBot {
			fn(conn)
		}
	}
}

// IterWorlds calls fn for every registered world-server connection.
func (r *Registry) IterWorlds(fn func(*Connection)) {
	for _, conn := range r.byID {
		if conn.Session != nil && conn.Session.Kind == session.KindWorld {
			fn(conn)
		}
	}
}

// Len reports the number of live connections, used to enforce
// connection_limit.
func (r *Registry) Len() int {
	return len(r.byID)
}

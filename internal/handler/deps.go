// Package handler implements the packet handlers: the citizen/license/
// ejection administrative data plane and the contact/telegram/presence
// subsystem. Every handler follows the same shape: read connection
// state, validate, mutate the directory, enqueue a response.
package handler

import (
	"time"

	"go.uber.org/zap"

	"github.com/aworlds/universe/internal/config"
	"github.com/aworlds/universe/internal/directory"
	"github.com/aworlds/universe/internal/registry"
	"github.com/aworlds/universe/internal/tabs"
)

// Deps holds the shared dependencies injected into every packet
// handler; the registry and directory are fields of a single server
// value, passed by reference.
type Deps struct {
	Registry  *registry.Registry
	Directory directory.Store
	Tabs      *tabs.Engine
	Config    *config.Config
	Log       *zap.Logger

	// Now is overridden in tests; production wiring leaves it nil and
	// Clock() falls back to time.Now.
	Now func() time.Time
}

// Clock returns the current time, using the injected Now if present.
func (d *Deps) Clock() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// conn looks up the connection for cid, returning ok=false if it has
// since disconnected (a handler may run after its connection closed if
// it was triggered by another connection's side effect).
func conn(deps *Deps, cid registry.ConnectionID) (*registry.Connection, bool) {
	return deps.Registry.Get(cid)
}

// Package coordinator owns adapter lifecycle end-to-end: which
// backends are enabled, starting them at boot, and reconciling a
// settings change into register/unregister calls against the bus
// (spec.md §4.5). It is grounded directly on the teacher's
// internal/streams/manager.go Sync() diff-against-desired-state loop,
// applied to adapters instead of stream subprocesses.
package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/open-horizon-labs/hifi-bridge/internal/adapter"
	"github.com/open-horizon-labs/hifi-bridge/internal/settings"
)

// Bus is the subset of *bus.Bus the coordinator drives. Declared as an
// interface so the coordinator can be tested without a real registry.
type Bus interface {
	RegisterBackend(prefix string, a adapter.Adapter) error
	UnregisterBackend(ctx context.Context, prefix string) error
	EnableBackend(ctx context.Context, prefix string, a adapter.Adapter) error
}

// Factory constructs a fresh adapter instance for one prefix. Called
// each time that backend transitions from disabled to enabled, never
// reused across a disable/enable cycle (an adapter that was stopped is
// not restarted — a new one is built).
type Factory func() adapter.Adapter

// Catalog maps a bus prefix to the factory that builds its adapter.
type Catalog map[string]Factory

// Coordinator owns the enabled/disabled lifecycle of every cataloged
// adapter prefix.
type Coordinator struct {
	bus     Bus
	catalog Catalog

	mu      sync.Mutex
	enabled map[string]bool
}

// New creates a Coordinator over bus with the given prefix->factory
// catalog.
func New(bus Bus, catalog Catalog) *Coordinator {
	return &Coordinator{
		bus:     bus,
		catalog: catalog,
		enabled: make(map[string]bool),
	}
}

// enabledPrefixes projects an AdapterToggles value down to the set of
// adapter prefixes the toggle marks true. The catalog is not consulted
// here; callers skip prefixes the catalog has no factory for.
func enabledPrefixes(t settings.AdapterToggles) map[string]bool {
	out := make(map[string]bool, 5)
	if t.Roon {
		out["roon"] = true
	}
	if t.UPnP {
		out["upnp"] = true
	}
	if t.OpenHome {
		out["openhome"] = true
	}
	if t.LMS {
		out["lms"] = true
	}
	if t.HQPlayer {
		out["hqp"] = true
	}
	return out
}

// StartAll enables every adapter whose setting is on, per the
// catalog's declared factories (spec.md §4.5).
func (c *Coordinator) StartAll(ctx context.Context, toggles settings.AdapterToggles) {
	c.mu.Lock()
	defer c.mu.Unlock()
	want := enabledPrefixes(toggles)
	for prefix := range want {
		factory, ok := c.catalog[prefix]
		if !ok {
			continue
		}
		c.enableLocked(ctx, prefix, factory)
	}
}

// OnSettingsChanged diffs new against the currently-enabled set and
// issues unregister/enable calls for whatever changed. Order between
// disables and enables within one call is irrelevant (spec.md §4.5).
func (c *Coordinator) OnSettingsChanged(ctx context.Context, next settings.AdapterToggles) {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := enabledPrefixes(next)
	for prefix := range c.enabled {
		if !want[prefix] {
			c.disableLocked(ctx, prefix)
		}
	}
	for prefix := range want {
		if !c.enabled[prefix] {
			factory, ok := c.catalog[prefix]
			if !ok {
				continue
			}
			c.enableLocked(ctx, prefix, factory)
		}
	}
}

func (c *Coordinator) enableLocked(ctx context.Context, prefix string, factory Factory) {
	a := factory()
	if err := c.bus.EnableBackend(ctx, prefix, a); err != nil {
		slog.Error("coordinator: enable failed", "prefix", prefix, "err", err)
		return
	}
	c.enabled[prefix] = true
}

func (c *Coordinator) disableLocked(ctx context.Context, prefix string) {
	if err := c.bus.UnregisterBackend(ctx, prefix); err != nil {
		slog.Warn("coordinator: unregister failed", "prefix", prefix, "err", err)
	}
	delete(c.enabled, prefix)
}

// Enabled reports which prefixes this coordinator currently considers
// started, for diagnostics.
func (c *Coordinator) Enabled() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.enabled))
	for p := range c.enabled {
		out = append(out, p)
	}
	return out
}

// Package adapter defines the uniform capability set every backend
// must expose to the bus (spec.md §4.2).
package adapter

import (
	"context"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// Status is a diagnostic snapshot of an adapter's connection state.
type Status struct {
	Connected bool   `json:"connected"`
	Host      string `json:"host,omitempty"`
	ZoneCount int    `json:"zone_count"`
	State     string `json:"state"` // "connecting" | "connected" | "degraded" | "stopped"
}

// Adapter is the uniform contract every backend implementation (Roon,
// LMS, OpenHome, UPnP, ...) must satisfy. Every method here speaks in
// fully-prefixed bus zone ids ("roon:zone_123"); each adapter owns the
// prefix discipline internally — it must not leak an unprefixed native
// id into anything it hands back to the bus (spec.md §4.2).
type Adapter interface {
	// Start may perform async discovery; it returns as soon as discovery
	// is armed and may continue to discover zones afterward.
	Start(ctx context.Context) error

	// Stop shuts down cleanly: sockets closed, timers cancelled. Idempotent.
	Stop(ctx context.Context) error

	// GetZones returns the adapter's current cached zones, already
	// carrying this adapter's prefix. Empty is legal.
	GetZones() []models.Zone

	// GetNowPlaying returns now-playing metadata for a zone id, or
	// ok=false if unknown. The LMS and Roon adapters answer from their
	// cache; the UPnP and OpenHome adapters query the device over SOAP
	// on every call, so for them this blocks on the network.
	GetNowPlaying(zoneID string) (np models.NowPlaying, ok bool)

	// Control executes a transport/volume/seek action against a zone id.
	// Adapters missing a capability must return models.ErrUnsupportedOp.
	Control(ctx context.Context, zoneID, action string, value interface{}) error

	// Status returns a diagnostic snapshot.
	Status() Status
}

// ImageCapable is implemented by adapters that can serve album art.
type ImageCapable interface {
	GetImage(ctx context.Context, imageKey string, opts ImageOptions) (ImageResult, error)
}

// ImageOptions parameterizes an image fetch.
type ImageOptions struct {
	Width  int
	Height int
	Format string // "jpeg" | "rgb565"
}

// ImageResult is the raw bytes and content type of a fetched image.
type ImageResult struct {
	ContentType string
	Bytes       []byte
}

// ZoneChangeCallback is invoked by an adapter whenever its zone set
// changes shape (discovery, removal, rename, capability change — not
// track flux). The bus's registered callback calls
// bus.RefreshZones(prefix).
type ZoneChangeCallback func()

// Canonical control actions (spec.md §4.1).
const (
	ActionPlay      = "play"
	ActionPause     = "pause"
	ActionPlayPause = "play_pause"
	ActionStop      = "stop"
	ActionNext      = "next"
	ActionPrevious  = "previous"
	ActionPrev      = "prev" // alias for ActionPrevious
	ActionVolAbs    = "vol_abs"
	ActionVolRel    = "vol_rel"
	ActionSeek      = "seek"
)

// NormalizeAction resolves action aliases to their canonical form.
func NormalizeAction(action string) string {
	if action == ActionPrev {
		return ActionPrevious
	}
	return action
}

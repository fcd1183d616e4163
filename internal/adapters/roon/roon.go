// Package roon adapts a paired Roon Core to the bus's Adapter
// contract. Unlike the poll-driven lms/upnp/openhome adapters, Roon's
// own API is event-driven: a Core is found, paired, and then pushes
// zone state over a persistent connection. The actual pairing
// handshake and transport live behind PairingClient so this package
// can be built, wired, and tested without a concrete Roon SDK
// dependency (none exists in the example pack — see DESIGN.md).
package roon

import (
	"context"
	"sync"

	"github.com/open-horizon-labs/hifi-bridge/internal/adapter"
	"github.com/open-horizon-labs/hifi-bridge/internal/models"
	"github.com/open-horizon-labs/hifi-bridge/internal/zoneid"
)

const prefix = "roon"

// Volume is a Roon zone's volume state in its native units.
type Volume struct {
	Type    string // "db" | "number" | "incremental"
	Min     float64
	Max     float64
	Value   float64
	Step    float64
	IsMuted bool
}

// NowPlaying is the track metadata Roon reports for a zone.
type NowPlaying struct {
	Line1, Line2, Line3 string
	LengthSec           float64
	SeekPositionSec     float64
	ImageKey            string
}

// Zone is a single Roon zone as reported by the Core.
type Zone struct {
	ZoneID            string // Roon's own zone id, unprefixed
	DisplayName       string
	State             string // "playing" | "paused" | "stopped" | "loading"
	NowPlaying        NowPlaying
	Volume            *Volume
	IsNextAllowed     bool
	IsPreviousAllowed bool
	IsSeekAllowed     bool
}

// PairingClient abstracts Roon Core discovery, pairing, zone
// subscription, transport control, and image fetch. A concrete
// implementation talks the real Roon Core API; this package only
// depends on the interface.
type PairingClient interface {
	// Start begins Core discovery/pairing and zone subscription.
	// onZones is invoked with the full zone list every time it
	// changes shape or any zone's state changes.
	Start(ctx context.Context, onZones func([]Zone)) error
	Stop(ctx context.Context) error
	Control(ctx context.Context, zoneID, action string, value interface{}) error
	GetImage(ctx context.Context, imageKey string, opts adapter.ImageOptions) (adapter.ImageResult, error)
	Connected() bool
}

// Adapter bridges a PairingClient's Roon-native zone/control model to
// the bus's prefixed, capability-flagged Adapter contract.
type Adapter struct {
	client       PairingClient
	onZoneChange adapter.ZoneChangeCallback

	mu    sync.RWMutex
	zones map[string]Zone // native zone id -> zone
}

// New creates a Roon adapter over the given pairing client.
func New(client PairingClient, onZoneChange adapter.ZoneChangeCallback) *Adapter {
	return &Adapter{
		client:       client,
		onZoneChange: onZoneChange,
		zones:        make(map[string]Zone),
	}
}

// Start begins Core pairing and zone subscription.
func (a *Adapter) Start(ctx context.Context) error {
	return a.client.Start(ctx, a.handleZones)
}

// Stop tears down the Core connection.
func (a *Adapter) Stop(ctx context.Context) error {
	return a.client.Stop(ctx)
}

func (a *Adapter) handleZones(zones []Zone) {
	next := make(map[string]Zone, len(zones))
	for _, z := range zones {
		next[z.ZoneID] = z
	}

	a.mu.Lock()
	changed := len(next) != len(a.zones)
	if !changed {
		for id := range next {
			if _, ok := a.zones[id]; !ok {
				changed = true
				break
			}
		}
	}
	a.zones = next
	a.mu.Unlock()

	if changed && a.onZoneChange != nil {
		a.onZoneChange()
	}
}

// GetZones translates Roon's native zone list into bus Zones.
func (a *Adapter) GetZones() []models.Zone {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.Zone, 0, len(a.zones))
	for id, z := range a.zones {
		out = append(out, toBusZone(id, z))
	}
	return out
}

// GetNowPlaying returns cached now-playing info for a zone.
func (a *Adapter) GetNowPlaying(zoneID string) (models.NowPlaying, bool) {
	z, ok := a.lookup(zoneID)
	if !ok {
		return models.NowPlaying{}, false
	}
	np := models.NowPlaying{
		Line1:           z.NowPlaying.Line1,
		Line2:           z.NowPlaying.Line2,
		Line3:           z.NowPlaying.Line3,
		IsPlaying:       z.State == "playing",
		LengthSec:       z.NowPlaying.LengthSec,
		SeekPositionSec: z.NowPlaying.SeekPositionSec,
		ImageKey:        z.NowPlaying.ImageKey,
	}
	if z.Volume != nil {
		np.Volume = z.Volume.Value
		np.VolumeType = roonVolumeType(z.Volume.Type)
		np.VolumeStep = z.Volume.Step
	}
	return np, true
}

// Status reports the pairing client's connection state.
func (a *Adapter) Status() adapter.Status {
	a.mu.RLock()
	count := len(a.zones)
	a.mu.RUnlock()

	state := "connected"
	if !a.client.Connected() {
		state = "connecting"
	}
	return adapter.Status{Connected: a.client.Connected(), ZoneCount: count, State: state}
}

// Control dispatches a transport/volume action through the pairing
// client, rejecting actions the zone has reported it does not allow.
func (a *Adapter) Control(ctx context.Context, zoneID, action string, value interface{}) error {
	z, ok := a.lookup(zoneID)
	if !ok {
		return models.ErrZoneNotFoundFor(zoneID)
	}
	action = adapter.NormalizeAction(action)

	switch action {
	case adapter.ActionNext:
		if !z.IsNextAllowed {
			return models.ErrUnsupportedOp("zone does not allow next")
		}
	case adapter.ActionPrevious:
		if !z.IsPreviousAllowed {
			return models.ErrUnsupportedOp("zone does not allow previous")
		}
	case adapter.ActionSeek:
		if !z.IsSeekAllowed {
			return models.ErrUnsupportedOp("zone does not allow seek")
		}
	case adapter.ActionVolAbs, adapter.ActionVolRel:
		if z.Volume == nil {
			return models.ErrUnsupportedOp("zone has no volume control")
		}
		if action == adapter.ActionVolAbs {
			if f, ok := value.(float64); ok && !(&models.VolumeControl{Min: z.Volume.Min, Max: z.Volume.Max}).InRange(f) {
				return models.ErrBadReq("volume value out of range")
			}
		}
	}

	_, nativeID, _ := zoneid.Split(zoneID)
	return a.client.Control(ctx, nativeID, action, value)
}

// GetImage fetches album art via the Core's image-token endpoint.
func (a *Adapter) GetImage(ctx context.Context, imageKey string, opts adapter.ImageOptions) (adapter.ImageResult, error) {
	return a.client.GetImage(ctx, imageKey, opts)
}

func (a *Adapter) lookup(zoneID string) (Zone, bool) {
	_, nativeID, ok := zoneid.Split(zoneID)
	if !ok {
		return Zone{}, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	z, ok := a.zones[nativeID]
	return z, ok
}

func toBusZone(nativeID string, z Zone) models.Zone {
	busZone := models.Zone{
		ZoneID:   zoneid.Join(prefix, nativeID),
		ZoneName: z.DisplayName,
		State:    roonState(z.State),
	}
	if z.Volume != nil {
		busZone.VolumeControl = &models.VolumeControl{
			Type:    roonVolumeType(z.Volume.Type),
			Min:     z.Volume.Min,
			Max:     z.Volume.Max,
			Step:    z.Volume.Step,
			IsMuted: z.Volume.IsMuted,
		}
	}
	var unsupported []string
	if !z.IsNextAllowed {
		unsupported = append(unsupported, models.CapNext)
	}
	if !z.IsPreviousAllowed {
		unsupported = append(unsupported, models.CapPrevious)
	}
	busZone.Unsupported = unsupported
	return busZone
}

func roonState(state string) models.ZoneState {
	switch state {
	case "playing":
		return models.StatePlaying
	case "paused":
		return models.StatePaused
	case "loading":
		return models.StateLoading
	default:
		return models.StateStopped
	}
}

func roonVolumeType(t string) models.VolumeType {
	switch t {
	case "db":
		return models.VolumeDB
	case "incremental":
		return models.VolumeIncremental
	default:
		return models.VolumeNumber
	}
}

var _ adapter.Adapter = (*Adapter)(nil)
var _ adapter.ImageCapable = (*Adapter)(nil)

// Package bus implements the zone-aggregation bus: the registry of
// backend adapters, the coalesced zone cache, prefix-based routing,
// and the activity log every routed operation is recorded into
// (spec.md §4.1). The bus is the serialization point external
// surfaces (HTTP, MQTT, MCP) call into concurrently.
package bus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/open-horizon-labs/hifi-bridge/internal/activity"
	"github.com/open-horizon-labs/hifi-bridge/internal/adapter"
	"github.com/open-horizon-labs/hifi-bridge/internal/eventstream"
	"github.com/open-horizon-labs/hifi-bridge/internal/models"
	"github.com/open-horizon-labs/hifi-bridge/internal/zoneid"
)

// record is the registry entry for one registered backend.
type record struct {
	prefix  string
	adapter adapter.Adapter
}

// cacheEntry pairs a cached zone with the adapter that owns it.
type cacheEntry struct {
	zone    models.Zone
	adapter adapter.Adapter
}

// Bus is the in-process hub that owns the zone cache and routes
// operations by prefix (spec.md §4.1). The zero value is not usable;
// construct with New.
type Bus struct {
	mu        sync.RWMutex
	adapters  map[string]*record
	cache     map[string]cacheEntry // zone_id -> entry
	shaDirty  bool
	shaCached string

	activityLog *activity.Log
	events      *eventstream.Stream
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		adapters:    make(map[string]*record),
		cache:       make(map[string]cacheEntry),
		shaDirty:    true,
		activityLog: activity.New(),
		events:      eventstream.New(),
	}
}

// RegisterBackend registers an adapter under prefix. prefix must be
// unique and nonempty. Does not populate the cache — the adapter may
// still be starting (spec.md §4.1).
func (b *Bus) RegisterBackend(prefix string, a adapter.Adapter) error {
	if prefix == "" {
		return models.ErrBadReq("prefix must not be empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.adapters[prefix]; exists {
		return models.ErrBadReq(fmt.Sprintf("prefix %q already registered", prefix))
	}
	b.adapters[prefix] = &record{prefix: prefix, adapter: a}
	return nil
}

// UnregisterBackend stops the adapter (awaiting shutdown), then
// removes all its cached zones and invalidates zones_sha (spec.md §4.1).
func (b *Bus) UnregisterBackend(ctx context.Context, prefix string) error {
	b.mu.Lock()
	rec, exists := b.adapters[prefix]
	b.mu.Unlock()
	if !exists {
		return nil
	}

	if err := rec.adapter.Stop(ctx); err != nil {
		slog.Warn("bus: adapter stop error during unregister", "prefix", prefix, "err", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.adapters, prefix)
	for id, entry := range b.cache {
		if entry.zone.Prefix() == prefix {
			delete(b.cache, id)
		}
	}
	b.shaDirty = true
	return nil
}

// EnableBackend registers prefix, starts the adapter, then refreshes
// its zones. Start errors are logged but do not undo the registration
// (spec.md §4.1, §4.5 — a configured-but-offline backend stays visible).
func (b *Bus) EnableBackend(ctx context.Context, prefix string, a adapter.Adapter) error {
	if err := b.RegisterBackend(prefix, a); err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		slog.Warn("bus: adapter start failed, keeping registration", "prefix", prefix, "err", err)
	}
	return b.RefreshZones(prefix)
}

// RefreshZones rebuilds the cached zone set for prefix, or for every
// registered adapter if prefix is "". Writers never hold the lock
// across the adapter.GetZones() network call (spec.md §5).
func (b *Bus) RefreshZones(prefix string) error {
	if prefix != "" {
		return b.refreshOne(prefix)
	}
	b.mu.RLock()
	prefixes := make([]string, 0, len(b.adapters))
	for p := range b.adapters {
		prefixes = append(prefixes, p)
	}
	b.mu.RUnlock()

	for _, p := range prefixes {
		if err := b.refreshOne(p); err != nil {
			slog.Warn("bus: refresh failed", "prefix", p, "err", err)
		}
	}
	return nil
}

func (b *Bus) refreshOne(prefix string) error {
	b.mu.RLock()
	rec, exists := b.adapters[prefix]
	b.mu.RUnlock()
	if !exists {
		return nil // no-op per spec.md §4.1 tie-break
	}

	zones := rec.adapter.GetZones()

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, entry := range b.cache {
		if entry.zone.Prefix() == prefix {
			delete(b.cache, id)
		}
	}
	for _, z := range zones {
		if z.Prefix() != prefix {
			slog.Warn("bus: adapter returned zone with mismatched prefix, dropping",
				"expected_prefix", prefix, "zone_id", z.ZoneID)
			continue
		}
		b.cache[z.ZoneID] = cacheEntry{zone: z.DeepCopy(), adapter: rec.adapter}
	}
	b.shaDirty = true
	return nil
}

// GetZones returns every cached zone. If the cache is empty but
// adapters are registered, performs a full refresh first — this
// accommodates late-pairing backends such as Roon (spec.md §4.1).
func (b *Bus) GetZones() []models.Zone {
	b.mu.RLock()
	empty := len(b.cache) == 0
	hasAdapters := len(b.adapters) > 0
	b.mu.RUnlock()

	if empty && hasAdapters {
		b.RefreshZones("")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	zones := make([]models.Zone, 0, len(b.cache))
	for _, entry := range b.cache {
		zones = append(zones, entry.zone)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].ZoneID < zones[j].ZoneID })
	return zones
}

// GetZone looks up a single cached zone.
func (b *Bus) GetZone(zoneID string) (models.Zone, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.cache[zoneID]
	return entry.zone, ok
}

// GetZonesSHA returns the first 8 hex chars of SHA-256 over the sorted
// list of current zone_id keys, lazily recomputed on first read after
// each invalidation (spec.md §3/§8).
func (b *Bus) GetZonesSHA() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.shaDirty {
		return b.shaCached
	}

	ids := make([]string, 0, len(b.cache))
	for id := range b.cache {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	encoded, _ := json.Marshal(ids)
	sum := sha256.Sum256(encoded)
	b.shaCached = hex.EncodeToString(sum[:])[:8]
	b.shaDirty = false
	return b.shaCached
}

// lookupAdapter resolves the adapter for zoneID: prefer the cached
// pairing, fall back to matching on prefix if the zone isn't cached
// yet (spec.md §4.1 routing rules).
func (b *Bus) lookupAdapter(zoneID string) (adapter.Adapter, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if entry, ok := b.cache[zoneID]; ok {
		return entry.adapter, true
	}
	prefix := zoneid.Prefix(zoneID)
	if prefix == "" {
		return nil, false
	}
	if rec, ok := b.adapters[prefix]; ok {
		return rec.adapter, true
	}
	return nil, false
}

// CallOptions carries the calling surface's identity for activity
// logging.
type CallOptions struct {
	Sender string
}

// GetNowPlaying resolves the owning adapter and returns now-playing
// metadata, logging one activity entry regardless of outcome
// (spec.md §4.1).
func (b *Bus) GetNowPlaying(zoneID string, opts CallOptions) (models.NowPlaying, error) {
	a, ok := b.lookupAdapter(zoneID)
	if !ok {
		err := models.ErrZoneNotFoundFor(zoneID)
		b.logActivity(models.KindGetNowPlaying, zoneID, "", nil, opts.Sender, err)
		return models.NowPlaying{}, err
	}

	np, found := a.GetNowPlaying(zoneID)
	var err error
	if !found {
		err = models.ErrZoneNotFoundFor(zoneID)
	}
	b.logActivity(models.KindGetNowPlaying, zoneID, "", nil, opts.Sender, err)
	if err != nil {
		return models.NowPlaying{}, err
	}
	return np, nil
}

// Control dispatches a transport/volume/seek command to the owning
// adapter. Exactly one activity entry is logged, after the adapter's
// Control returns (or after routing/validation fails), carrying the
// error if there was one; nothing is logged before dispatch, so a call
// that never returns leaves no entry.
func (b *Bus) Control(ctx context.Context, zoneID, action string, value interface{}, opts CallOptions) error {
	action = adapter.NormalizeAction(action)

	a, ok := b.lookupAdapter(zoneID)
	if !ok {
		err := models.ErrZoneNotFoundFor(zoneID)
		b.logControlActivity(zoneID, action, value, opts.Sender, err)
		return err
	}

	if zone, cached := b.GetZone(zoneID); cached {
		if err := validateControl(zone, action, value); err != nil {
			b.logControlActivity(zoneID, action, value, opts.Sender, err)
			return err
		}
	}

	err := a.Control(ctx, zoneID, action, value)
	b.logControlActivity(zoneID, action, value, opts.Sender, err)
	return err
}

// validateControl enforces the volume-safety invariant (spec.md §7):
// vol_abs is never clamped as if it were a percentage — out-of-range
// values are rejected as BadRequest, in-range values pass through
// unchanged.
func validateControl(zone models.Zone, action string, value interface{}) error {
	if action != adapter.ActionVolAbs {
		return nil
	}
	vc := zone.VolumeControl
	if vc == nil || vc.Type == models.VolumeNone {
		return models.ErrUnsupportedOp("zone has no volume control")
	}
	num, ok := toFloat(value)
	if !ok {
		return models.ErrBadReq("vol_abs requires a numeric value")
	}
	if !vc.InRange(num) {
		return models.ErrBadReq(fmt.Sprintf("vol_abs %v out of range [%v, %v]", num, vc.Min, vc.Max))
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// GetImage fetches album art for a zone. zone_id is mandatory for
// routing (spec.md §4.1 example 4).
func (b *Bus) GetImage(ctx context.Context, imageKey string, zoneID string, opts adapter.ImageOptions, sender string) (adapter.ImageResult, error) {
	if zoneID == "" {
		err := models.ErrBadReq("zone_id is required for get_image")
		b.logImageActivity(imageKey, "", sender, err)
		return adapter.ImageResult{}, err
	}

	a, ok := b.lookupAdapter(zoneID)
	if !ok {
		err := models.ErrZoneNotFoundFor(zoneID)
		b.logImageActivity(imageKey, zoneID, sender, err)
		return adapter.ImageResult{}, err
	}

	imgAdapter, ok := a.(adapter.ImageCapable)
	if !ok {
		err := models.ErrImagesNotSupported
		b.logImageActivity(imageKey, zoneID, sender, err)
		return adapter.ImageResult{}, err
	}

	result, err := imgAdapter.GetImage(ctx, imageKey, opts)
	b.logImageActivity(imageKey, zoneID, sender, err)
	return result, err
}

// AdapterStatuses is a snapshot of every registered adapter's status.
type AdapterStatuses map[string]adapter.Status

// GetStatus returns a diagnostic snapshot of every registered adapter.
func (b *Bus) GetStatus() AdapterStatuses {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(AdapterStatuses, len(b.adapters))
	for prefix, rec := range b.adapters {
		out[prefix] = rec.adapter.Status()
	}
	return out
}

// Subscribe registers an activity observer. Observer errors never
// propagate to publishers — eventstream already drops on backpressure,
// and any panic recovery is the observer's own responsibility since Go
// channels cannot themselves "raise" to a publisher.
func (b *Bus) Subscribe(id string) (<-chan models.ActivityEntry, func()) {
	ch := b.events.Subscribe(id)
	return ch, func() { b.events.Unsubscribe(id) }
}

// ActivitySnapshot returns the most recent activity log entries.
func (b *Bus) ActivitySnapshot(limit int) []models.ActivityEntry {
	return b.activityLog.Snapshot(limit)
}

func (b *Bus) logActivity(kind models.ActivityKind, zoneID, action string, value interface{}, sender string, err error) {
	entry := models.ActivityEntry{
		Kind:   kind,
		ZoneID: zoneID,
		Prefix: zoneid.Prefix(zoneID),
		Action: action,
		Value:  value,
		Sender: sender,
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.HasData = true
	}
	recorded := b.activityLog.Append(entry)
	b.events.Publish(recorded)
}

func (b *Bus) logControlActivity(zoneID, action string, value interface{}, sender string, err error) {
	b.logActivity(models.KindControl, zoneID, action, value, sender, err)
}

func (b *Bus) logImageActivity(imageKey, zoneID, sender string, err error) {
	entry := models.ActivityEntry{
		Kind:   models.KindGetImage,
		ZoneID: zoneID,
		Prefix: zoneid.Prefix(zoneID),
		Action: imageKey,
		Sender: sender,
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.HasData = true
	}
	recorded := b.activityLog.Append(entry)
	b.events.Publish(recorded)
}

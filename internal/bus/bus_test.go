package bus_test

import (
	"context"
	"testing"

	"github.com/open-horizon-labs/hifi-bridge/internal/adapter"
	"github.com/open-horizon-labs/hifi-bridge/internal/bus"
	"github.com/open-horizon-labs/hifi-bridge/internal/models"
	"github.com/open-horizon-labs/hifi-bridge/internal/zoneid"
)

// fakeAdapter is a minimal in-memory adapter.Adapter for bus tests.
type fakeAdapter struct {
	prefix       string
	zones        []models.Zone
	nowPlaying   map[string]models.NowPlaying
	controls     []controlCall
	unsupported  map[string]bool
	image        *adapter.ImageResult
	started      bool
	stopped      bool
}

type controlCall struct {
	zoneID string
	action string
	value  interface{}
}

func newFakeAdapter(prefix string) *fakeAdapter {
	return &fakeAdapter{
		prefix:      prefix,
		nowPlaying:  make(map[string]models.NowPlaying),
		unsupported: make(map[string]bool),
	}
}

func (f *fakeAdapter) Start(ctx context.Context) error { f.started = true; return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error  { f.stopped = true; return nil }
func (f *fakeAdapter) GetZones() []models.Zone         { return f.zones }

func (f *fakeAdapter) GetNowPlaying(zoneID string) (models.NowPlaying, bool) {
	np, ok := f.nowPlaying[zoneID]
	return np, ok
}

func (f *fakeAdapter) Control(ctx context.Context, zoneID, action string, value interface{}) error {
	if f.unsupported[action] {
		return models.ErrUnsupportedOp(action + " not supported")
	}
	f.controls = append(f.controls, controlCall{zoneID, action, value})
	return nil
}

func (f *fakeAdapter) Status() adapter.Status {
	return adapter.Status{Connected: true, ZoneCount: len(f.zones), State: "connected"}
}

func (f *fakeAdapter) GetImage(ctx context.Context, imageKey string, opts adapter.ImageOptions) (adapter.ImageResult, error) {
	if f.image == nil {
		return adapter.ImageResult{}, models.ErrImagesNotSupported
	}
	return *f.image, nil
}

var _ adapter.Adapter = (*fakeAdapter)(nil)
var _ adapter.ImageCapable = (*fakeAdapter)(nil)

// Scenario 1: prefix routing (spec.md §8).
func TestPrefixRouting(t *testing.T) {
	b := bus.New()
	a := newFakeAdapter("roon")
	a.zones = []models.Zone{{ZoneID: zoneid.Join("roon", "zone_123"), ZoneName: "Living Room"}}

	if err := b.EnableBackend(context.Background(), "roon", a); err != nil {
		t.Fatalf("enable: %v", err)
	}

	zones := b.GetZones()
	if len(zones) != 1 || zones[0].ZoneID != "roon:zone_123" {
		t.Fatalf("unexpected zones: %+v", zones)
	}

	if err := b.Control(context.Background(), "roon:zone_123", "play", nil, bus.CallOptions{}); err != nil {
		t.Fatalf("control: %v", err)
	}
	if len(a.controls) != 1 || a.controls[0].zoneID != "roon:zone_123" || a.controls[0].action != "play" {
		t.Fatalf("unexpected dispatch: %+v", a.controls)
	}

	err := b.Control(context.Background(), "roon:does-not-exist", "play", nil, bus.CallOptions{})
	appErr, ok := err.(*models.Error)
	if !ok || appErr.Kind != models.ErrZoneNotFound {
		t.Fatalf("expected ZoneNotFound, got %v", err)
	}
}

// Scenario 2: volume safety (spec.md §8).
func TestVolumeSafety(t *testing.T) {
	b := bus.New()
	a := newFakeAdapter("roon")
	a.zones = []models.Zone{{
		ZoneID:   "roon:z1",
		ZoneName: "Den",
		VolumeControl: &models.VolumeControl{
			Type: models.VolumeDB, Min: -80, Max: 0,
		},
	}}
	if err := b.EnableBackend(context.Background(), "roon", a); err != nil {
		t.Fatalf("enable: %v", err)
	}

	if err := b.Control(context.Background(), "roon:z1", "vol_abs", -12.0, bus.CallOptions{}); err != nil {
		t.Fatalf("expected -12 to be accepted unchanged, got %v", err)
	}
	if len(a.controls) != 1 || a.controls[0].value != -12.0 {
		t.Fatalf("expected adapter to receive -12 unchanged, got %+v", a.controls)
	}

	err := b.Control(context.Background(), "roon:z1", "vol_abs", 50.0, bus.CallOptions{})
	appErr, ok := err.(*models.Error)
	if !ok || appErr.Kind != models.ErrBadRequest {
		t.Fatalf("expected BadRequest for out-of-range volume, got %v", err)
	}
}

// Scenario 3: disabling an adapter flushes its zones (spec.md §8).
func TestDisableFlushesZones(t *testing.T) {
	b := bus.New()
	a := newFakeAdapter("roon")
	a.zones = []models.Zone{
		{ZoneID: "roon:z1", ZoneName: "A"},
		{ZoneID: "roon:z2", ZoneName: "B"},
	}
	if err := b.EnableBackend(context.Background(), "roon", a); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if len(b.GetZones()) != 2 {
		t.Fatalf("expected 2 zones before disable")
	}
	shaBefore := b.GetZonesSHA()

	if err := b.UnregisterBackend(context.Background(), "roon"); err != nil {
		t.Fatalf("unregister: %v", err)
	}

	zones := b.GetZones()
	if len(zones) != 0 {
		t.Fatalf("expected zones flushed, got %+v", zones)
	}
	if b.GetZonesSHA() == shaBefore {
		t.Fatal("expected zones_sha to change after flush")
	}
	if !a.stopped {
		t.Fatal("expected adapter.Stop to have been awaited")
	}
}

// Scenario 4: image routing requires zone_id (spec.md §8).
func TestImageRoutingRequiresZoneID(t *testing.T) {
	b := bus.New()
	roon := newFakeAdapter("roon")
	roon.zones = []models.Zone{{ZoneID: "roon:y"}}
	roon.image = &adapter.ImageResult{ContentType: "image/jpeg", Bytes: []byte("fakejpeg")}
	if err := b.EnableBackend(context.Background(), "roon", roon); err != nil {
		t.Fatal(err)
	}

	upnp := newFakeAdapter("upnp")
	upnp.zones = []models.Zone{{ZoneID: "upnp:x", Unsupported: []string{"album_art"}}}
	upnp.image = nil
	if err := b.EnableBackend(context.Background(), "upnp", upnp); err != nil {
		t.Fatal(err)
	}

	_, err := b.GetImage(context.Background(), "k", "", adapter.ImageOptions{}, "")
	if appErr, ok := err.(*models.Error); !ok || appErr.Kind != models.ErrBadRequest {
		t.Fatalf("expected BadRequest with no zone_id, got %v", err)
	}

	_, err = b.GetImage(context.Background(), "k", "upnp:x", adapter.ImageOptions{}, "")
	if appErr, ok := err.(*models.Error); !ok || appErr.Kind != models.ErrImagesOff {
		t.Fatalf("expected ImagesNotSupported, got %v", err)
	}

	result, err := b.GetImage(context.Background(), "k", "roon:y", adapter.ImageOptions{Width: 120, Height: 120, Format: "jpeg"}, "")
	if err != nil {
		t.Fatalf("expected image fetch to succeed, got %v", err)
	}
	if result.ContentType != "image/jpeg" {
		t.Fatalf("unexpected content type: %s", result.ContentType)
	}
}

// Registering a duplicate prefix is rejected (spec.md §4.1 tie-breaks).
func TestRegisterDuplicatePrefixRejected(t *testing.T) {
	b := bus.New()
	if err := b.RegisterBackend("roon", newFakeAdapter("roon")); err != nil {
		t.Fatal(err)
	}
	err := b.RegisterBackend("roon", newFakeAdapter("roon"))
	if err == nil {
		t.Fatal("expected duplicate prefix registration to fail")
	}
}

// Refreshing an unregistered prefix is a no-op (spec.md §4.1 tie-breaks).
func TestRefreshUnknownPrefixIsNoOp(t *testing.T) {
	b := bus.New()
	if err := b.RefreshZones("nonexistent"); err != nil {
		t.Fatalf("expected no-op, got error: %v", err)
	}
}

// Every activity-producing call appends exactly one entry (spec.md §8).
func TestActivityLoggedOncePerOperation(t *testing.T) {
	b := bus.New()
	a := newFakeAdapter("roon")
	a.zones = []models.Zone{{ZoneID: "roon:z1"}}
	a.nowPlaying["roon:z1"] = models.NowPlaying{Line1: "Track"}
	if err := b.EnableBackend(context.Background(), "roon", a); err != nil {
		t.Fatal(err)
	}

	if _, err := b.GetNowPlaying("roon:z1", bus.CallOptions{Sender: "knob-1"}); err != nil {
		t.Fatal(err)
	}
	snap := b.ActivitySnapshot(0)
	if len(snap) != 1 {
		t.Fatalf("expected 1 activity entry, got %d", len(snap))
	}
	if snap[0].Kind != models.KindGetNowPlaying || snap[0].ZoneID != "roon:z1" {
		t.Fatalf("unexpected entry: %+v", snap[0])
	}
}

// Adapters that don't support a capability must raise Unsupported, not
// silently accept (spec.md §4.1 control actions).
func TestUnsupportedCapabilityRejected(t *testing.T) {
	b := bus.New()
	a := newFakeAdapter("upnp")
	a.zones = []models.Zone{{ZoneID: "upnp:x", Unsupported: []string{"next"}}}
	a.unsupported["next"] = true
	if err := b.EnableBackend(context.Background(), "upnp", a); err != nil {
		t.Fatal(err)
	}

	err := b.Control(context.Background(), "upnp:x", "next", nil, bus.CallOptions{})
	if appErr, ok := err.(*models.Error); !ok || appErr.Kind != models.ErrUnsupported {
		t.Fatalf("expected Unsupported, got %v", err)
	}
}

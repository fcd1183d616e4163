package roon_test

import (
	"context"
	"testing"

	"github.com/open-horizon-labs/hifi-bridge/internal/adapter"
	"github.com/open-horizon-labs/hifi-bridge/internal/adapters/roon"
	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

type fakeClient struct {
	onZones   func([]roon.Zone)
	connected bool
	controls  []controlCall
}

type controlCall struct {
	zoneID, action string
	value          interface{}
}

func (f *fakeClient) Start(ctx context.Context, onZones func([]roon.Zone)) error {
	f.onZones = onZones
	f.connected = true
	return nil
}
func (f *fakeClient) Stop(ctx context.Context) error { f.connected = false; return nil }
func (f *fakeClient) Control(ctx context.Context, zoneID, action string, value interface{}) error {
	f.controls = append(f.controls, controlCall{zoneID, action, value})
	return nil
}
func (f *fakeClient) GetImage(ctx context.Context, imageKey string, opts adapter.ImageOptions) (adapter.ImageResult, error) {
	return adapter.ImageResult{ContentType: "image/jpeg", Bytes: []byte("art")}, nil
}
func (f *fakeClient) Connected() bool { return f.connected }

func (f *fakeClient) push(zones []roon.Zone) { f.onZones(zones) }

func TestZonesTranslatedWithPrefix(t *testing.T) {
	fc := &fakeClient{}
	a := roon.New(fc, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	fc.push([]roon.Zone{{
		ZoneID:      "zone_abc",
		DisplayName: "Living Room",
		State:       "playing",
		Volume:      &roon.Volume{Type: "db", Min: -80, Max: 0, Value: -20},
	}})

	zones := a.GetZones()
	if len(zones) != 1 || zones[0].ZoneID != "roon:zone_abc" {
		t.Fatalf("unexpected zones: %+v", zones)
	}
	if zones[0].State != models.StatePlaying {
		t.Fatalf("expected playing state, got %s", zones[0].State)
	}
}

func TestControlRejectsDisallowedNext(t *testing.T) {
	fc := &fakeClient{}
	a := roon.New(fc, nil)
	a.Start(context.Background())
	fc.push([]roon.Zone{{ZoneID: "z1", IsNextAllowed: false}})

	err := a.Control(context.Background(), "roon:z1", "next", nil)
	if appErr, ok := err.(*models.Error); !ok || appErr.Kind != models.ErrUnsupported {
		t.Fatalf("expected Unsupported, got %v", err)
	}
}

func TestControlVolumeOutOfRangeRejected(t *testing.T) {
	fc := &fakeClient{}
	a := roon.New(fc, nil)
	a.Start(context.Background())
	fc.push([]roon.Zone{{ZoneID: "z1", Volume: &roon.Volume{Type: "db", Min: -80, Max: 0}}})

	err := a.Control(context.Background(), "roon:z1", "vol_abs", 10.0)
	if appErr, ok := err.(*models.Error); !ok || appErr.Kind != models.ErrBadRequest {
		t.Fatalf("expected BadRequest, got %v", err)
	}
}

func TestControlDispatchesToClientWithNativeID(t *testing.T) {
	fc := &fakeClient{}
	a := roon.New(fc, nil)
	a.Start(context.Background())
	fc.push([]roon.Zone{{ZoneID: "z1", IsNextAllowed: true}})

	if err := a.Control(context.Background(), "roon:z1", "next", nil); err != nil {
		t.Fatal(err)
	}
	if len(fc.controls) != 1 || fc.controls[0].zoneID != "z1" {
		t.Fatalf("expected native zone id dispatched, got %+v", fc.controls)
	}
}

func TestZoneChangeCallbackFiresOnShapeChange(t *testing.T) {
	fc := &fakeClient{}
	fired := 0
	a := roon.New(fc, func() { fired++ })
	a.Start(context.Background())

	fc.push([]roon.Zone{{ZoneID: "z1"}})
	fc.push([]roon.Zone{{ZoneID: "z1"}}) // same shape, no callback
	fc.push([]roon.Zone{{ZoneID: "z1"}, {ZoneID: "z2"}})

	if fired != 2 {
		t.Fatalf("expected 2 shape-change callbacks, got %d", fired)
	}
}

func TestGetImageDelegatesToClient(t *testing.T) {
	fc := &fakeClient{}
	a := roon.New(fc, nil)
	result, err := a.GetImage(context.Background(), "img1", adapter.ImageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.ContentType != "image/jpeg" {
		t.Fatalf("unexpected content type: %s", result.ContentType)
	}
}

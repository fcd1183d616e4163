package knobs_test

import (
	"testing"

	"github.com/open-horizon-labs/hifi-bridge/internal/knobs"
	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	r := knobs.New(t.TempDir())

	first := r.GetOrCreate("knob-1", "Kitchen Knob")
	second := r.GetOrCreate("knob-1", "Kitchen Knob (renamed, ignored)")

	if first.ConfigSHA != second.ConfigSHA {
		t.Fatalf("expected stable config sha across repeated GetOrCreate, got %s vs %s", first.ConfigSHA, second.ConfigSHA)
	}
	if second.Name != "Kitchen Knob" {
		t.Fatalf("expected existing record to win, got name %q", second.Name)
	}
}

func TestUpdateConfigChangesSHA(t *testing.T) {
	r := knobs.New(t.TempDir())
	r.GetOrCreate("knob-1", "Kitchen Knob")
	before, _ := r.GetConfigSHA("knob-1")

	ssid := "new-ssid"
	_, err := r.UpdateConfig("knob-1", models.KnobConfigPatch{WifiSSID: &ssid})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	after, _ := r.GetConfigSHA("knob-1")
	if before == after {
		t.Fatal("expected config sha to change after UpdateConfig")
	}
}

func TestUpdateConfigUnknownKnobErrors(t *testing.T) {
	r := knobs.New(t.TempDir())
	_, err := r.UpdateConfig("does-not-exist", models.KnobConfigPatch{})
	if err == nil {
		t.Fatal("expected error for unknown knob id")
	}
}

func TestUpdateConfigNonOverlappingPatchesConvergeRegardlessOfOrder(t *testing.T) {
	ssid := "new-ssid"
	pollInterval := 30
	patchA := models.KnobConfigPatch{WifiSSID: &ssid}
	patchB := models.KnobConfigPatch{PollIntervalS: &pollInterval}

	r1 := knobs.New(t.TempDir())
	r1.GetOrCreate("knob-1", "Kitchen Knob")
	if _, err := r1.UpdateConfig("knob-1", patchA); err != nil {
		t.Fatalf("UpdateConfig A: %v", err)
	}
	if _, err := r1.UpdateConfig("knob-1", patchB); err != nil {
		t.Fatalf("UpdateConfig B: %v", err)
	}

	r2 := knobs.New(t.TempDir())
	r2.GetOrCreate("knob-1", "Kitchen Knob")
	if _, err := r2.UpdateConfig("knob-1", patchB); err != nil {
		t.Fatalf("UpdateConfig B: %v", err)
	}
	if _, err := r2.UpdateConfig("knob-1", patchA); err != nil {
		t.Fatalf("UpdateConfig A: %v", err)
	}

	rec1, _ := r1.Get("knob-1")
	rec2, _ := r2.Get("knob-1")
	if rec1.Config.WifiSSID != rec2.Config.WifiSSID || rec1.Config.PollIntervalS != rec2.Config.PollIntervalS {
		t.Fatalf("expected order-independent convergence, got %+v vs %+v", rec1.Config, rec2.Config)
	}
	if rec1.Config.WifiSSID != ssid || rec1.Config.PollIntervalS != pollInterval {
		t.Fatalf("expected both patched fields to survive, got %+v", rec1.Config)
	}
	if rec1.ConfigSHA != rec2.ConfigSHA {
		t.Fatalf("expected matching config sha after order-independent merges, got %s vs %s", rec1.ConfigSHA, rec2.ConfigSHA)
	}
}

func TestUpdateStatusBumpsLastSeenWithoutChangingSHA(t *testing.T) {
	r := knobs.New(t.TempDir())
	r.GetOrCreate("knob-1", "Kitchen Knob")
	before, _ := r.GetConfigSHA("knob-1")

	level := 87
	_, err := r.UpdateStatus("knob-1", models.KnobStatus{BatteryLevel: &level}, "1.2.3")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	after, _ := r.GetConfigSHA("knob-1")
	if before != after {
		t.Fatal("expected status updates to leave config sha untouched")
	}
	rec, ok := r.Get("knob-1")
	if !ok || rec.Version != "1.2.3" {
		t.Fatalf("expected version to be recorded, got %+v", rec)
	}
}

func TestListIsSortedByKnobID(t *testing.T) {
	r := knobs.New(t.TempDir())
	r.GetOrCreate("knob-b", "B")
	r.GetOrCreate("knob-a", "A")

	list := r.List()
	if len(list) != 2 || list[0].KnobID != "knob-a" || list[1].KnobID != "knob-b" {
		t.Fatalf("expected sorted list, got %+v", list)
	}
}

func TestRegistryPersistsAcrossLoad(t *testing.T) {
	dir := t.TempDir()
	r1 := knobs.New(dir)
	r1.GetOrCreate("knob-1", "Kitchen Knob")

	r2 := knobs.New(dir)
	if err := r2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	rec, ok := r2.Get("knob-1")
	if !ok || rec.Name != "Kitchen Knob" {
		t.Fatalf("expected knob to survive reload, got %+v ok=%v", rec, ok)
	}
}

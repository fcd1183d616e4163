package settings_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
	"github.com/open-horizon-labs/hifi-bridge/internal/settings"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	store := settings.NewStore(dir)

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Adapters.Roon {
		t.Fatal("expected Roon to default to enabled")
	}
	if cfg.Adapters.LMS || cfg.Adapters.UPnP || cfg.Adapters.OpenHome || cfg.Adapters.HQPlayer {
		t.Fatalf("expected all other adapters to default to disabled, got %+v", cfg.Adapters)
	}
}

func TestSaveFlushAndReload(t *testing.T) {
	dir := t.TempDir()
	store := settings.NewStore(dir)

	cfg := settings.DefaultSettings()
	cfg.Adapters.LMS = true
	cfg.HQP.ZoneLinks = map[string]string{"roon:z1": "main-rig"}

	if err := store.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reloaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reloaded.Adapters.LMS {
		t.Fatal("expected LMS toggle to persist")
	}
	if reloaded.HQP.ZoneLinks["roon:z1"] != "main-rig" {
		t.Fatalf("expected zone link to persist, got %+v", reloaded.HQP.ZoneLinks)
	}
}

func TestLoadCorruptFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	store := settings.NewStore(dir)

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Adapters.Roon {
		t.Fatal("expected fallback to documented defaults")
	}
}

func TestMergeJSONAppliesSuppliedAdapters(t *testing.T) {
	base := settings.DefaultSettings()

	merged, err := base.MergeJSON([]byte(`{"adapters":{"lms":true,"roon":true}}`))
	if err != nil {
		t.Fatalf("MergeJSON: %v", err)
	}
	if !merged.Adapters.LMS {
		t.Fatal("expected patch adapters to win")
	}
}

func TestMergeJSONOmittedAdaptersLeavesExistingToggles(t *testing.T) {
	base := settings.DefaultSettings()
	base.Adapters.LMS = true
	base.Adapters.UPnP = true

	merged, err := base.MergeJSON([]byte(`{"hideKnobsPage":true}`))
	if err != nil {
		t.Fatalf("MergeJSON: %v", err)
	}
	if !merged.HideKnobsPage {
		t.Fatal("expected hideKnobsPage to be applied")
	}
	if !merged.Adapters.LMS || !merged.Adapters.UPnP || !merged.Adapters.Roon {
		t.Fatalf("expected adapter toggles untouched by a body that omits \"adapters\", got %+v", merged.Adapters)
	}
}

func TestHQPConfigMigratesLegacySingleObject(t *testing.T) {
	dir := t.TempDir()
	legacy := models.HQPInstanceConfig{Name: "living-room", Host: "192.168.1.50", WebPort: 8088}
	data, _ := json.Marshal(legacy)
	if err := os.WriteFile(filepath.Join(dir, "hqp-config.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	store := settings.NewHQPConfigStore(dir)
	instances, err := store.LoadInstances()
	if err != nil {
		t.Fatalf("LoadInstances: %v", err)
	}
	if len(instances) != 1 || instances[0].Name != "living-room" {
		t.Fatalf("expected migrated single instance, got %+v", instances)
	}
}

func TestHQPConfigRoundTripsArray(t *testing.T) {
	dir := t.TempDir()
	store := settings.NewHQPConfigStore(dir)

	want := []models.HQPInstanceConfig{
		{Name: "a", Host: "10.0.0.1", WebPort: 8088},
		{Name: "b", Host: "10.0.0.2", WebPort: 8088},
	}
	if err := store.SaveInstances(want); err != nil {
		t.Fatalf("SaveInstances: %v", err)
	}

	got, err := store.LoadInstances()
	if err != nil {
		t.Fatalf("LoadInstances: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}

func TestLMSConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := settings.NewLMSConfigStore(dir)

	want := settings.LMSConfig{Host: "192.168.1.20", Port: 9000, PollIntervalS: 2}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestWatchAndReloadFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	store := settings.NewStore(dir)
	if err := store.Save(settings.DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	if err := store.Flush(); err != nil {
		t.Fatal(err)
	}

	received := make(chan settings.Settings, 1)
	w, err := settings.WatchAndReload(store, func(cfg settings.Settings) {
		received <- cfg
	})
	if err != nil {
		t.Fatalf("WatchAndReload: %v", err)
	}
	defer w.Close()

	updated := settings.DefaultSettings()
	updated.Adapters.UPnP = true
	data, _ := json.MarshalIndent(updated, "", "  ")
	if err := os.WriteFile(store.Path(), data, 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if !cfg.Adapters.UPnP {
			t.Fatalf("expected reloaded settings to reflect external write, got %+v", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}

// Package settings owns the three persisted JSON files that hold user
// choices: settings.json (adapters enabled, zone-links, UI prefs),
// hqp-config.json (HQPlayer instances), and lms-config.json
// (spec.md §6). All writes are atomic; settings.json writes are also
// debounced, while hqp-config.json and lms-config.json are written
// immediately. Grounded directly on the teacher's
// internal/config/json_store.go.
package settings

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const debounceDelay = 500 * time.Millisecond

// AdapterToggles records which backends the user has enabled.
// Roon defaults to enabled; everything else defaults to disabled
// (spec.md §4.5).
type AdapterToggles struct {
	Roon     bool `json:"roon"`
	UPnP     bool `json:"upnp"`
	OpenHome bool `json:"openhome"`
	LMS      bool `json:"lms"`
	HQPlayer bool `json:"hqplayer"`
}

// DefaultAdapterToggles returns the documented defaults.
func DefaultAdapterToggles() AdapterToggles {
	return AdapterToggles{Roon: true}
}

// HQPSettings is the hqp section of settings.json — zone links live
// here, not in hqp-config.json (spec.md §4.4/§6).
type HQPSettings struct {
	ZoneLinks map[string]string `json:"zoneLinks,omitempty"` // primary_zone_id -> instance name
}

// Settings is the full contents of settings.json.
type Settings struct {
	Adapters      AdapterToggles `json:"adapters"`
	HQP           HQPSettings    `json:"hqp"`
	HideKnobsPage bool           `json:"hideKnobsPage,omitempty"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{Adapters: DefaultAdapterToggles()}
}

// patchEnvelope mirrors Settings but with pointer-typed top-level
// sections, so a partial POST /api/settings body can be told apart from
// one that supplies the zero value: {"hideKnobsPage":true} must not be
// decoded as an explicit "adapters: all false" (spec.md §6).
type patchEnvelope struct {
	Adapters      *AdapterToggles `json:"adapters"`
	HQP           *HQPSettings    `json:"hqp"`
	HideKnobsPage *bool           `json:"hideKnobsPage"`
}

// MergeJSON decodes a partial settings.json body and merges only the
// top-level sections it actually contains onto s, field by field,
// matching the teacher's "/api/settings partial merge" contract
// (spec.md §6). A section omitted from the body is left untouched
// rather than reset to its zero value.
func (s Settings) MergeJSON(data []byte) (Settings, error) {
	var patch patchEnvelope
	if err := json.Unmarshal(data, &patch); err != nil {
		return Settings{}, err
	}
	next := s
	if patch.Adapters != nil {
		next.Adapters = *patch.Adapters
	}
	if patch.HQP != nil && patch.HQP.ZoneLinks != nil {
		next.HQP.ZoneLinks = patch.HQP.ZoneLinks
	}
	if patch.HideKnobsPage != nil {
		next.HideKnobsPage = *patch.HideKnobsPage
	}
	return next, nil
}

// Store is an atomic, debounced JSON file store for Settings.
type Store struct {
	mu      sync.Mutex
	path    string
	timer   *time.Timer
	pending *Settings
}

// NewStore creates a settings store rooted at configDir/settings.json.
func NewStore(configDir string) *Store {
	return &Store{path: filepath.Join(configDir, "settings.json")}
}

// Path returns the file path used by this store.
func (s *Store) Path() string { return s.path }

// Load reads settings.json, returning DefaultSettings on ENOENT or a
// corrupt file.
func (s *Store) Load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return Settings{}, err
	}
	var cfg Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Warn("settings: corrupt settings.json, using defaults", "path", s.path, "err", err)
		return DefaultSettings(), nil
	}
	return cfg, nil
}

// Save schedules a debounced atomic write.
func (s *Store) Save(cfg Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cfg
	s.pending = &cp
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(debounceDelay, func() {
		s.mu.Lock()
		pending := s.pending
		s.mu.Unlock()
		if pending != nil {
			if err := writeAtomic(s.path, pending); err != nil {
				slog.Error("settings: failed to write settings.json", "path", s.path, "err", err)
			}
		}
	})
	return nil
}

// Flush forces an immediate write of any pending settings.
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	pending := s.pending
	s.mu.Unlock()
	if pending == nil {
		return nil
	}
	return writeAtomic(s.path, pending)
}

func writeAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

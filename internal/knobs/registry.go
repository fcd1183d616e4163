// Package knobs tracks physical knob devices: their declared config,
// a change-detection fingerprint of that config, and the last status
// report each device sent in (spec.md §4.6).
package knobs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// Clock is the time source, overridable in tests.
type Clock func() time.Time

// Registry is the in-memory, persisted-on-write set of known knobs.
type Registry struct {
	mu      sync.RWMutex
	records map[string]models.KnobRecord
	store   *jsonStore
	now     Clock
}

// New creates a registry persisted at configDir/knobs.json.
func New(configDir string) *Registry {
	return &Registry{
		records: make(map[string]models.KnobRecord),
		store:   newJSONStore(configDir),
		now:     time.Now,
	}
}

// Load reads the persisted knob records from disk, replacing the
// in-memory set. Call once at startup.
func (r *Registry) Load() error {
	records, err := r.store.load()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = records
	return nil
}

// GetOrCreate returns the record for knobID, creating a default one
// (and persisting it) the first time a knob is seen.
func (r *Registry) GetOrCreate(knobID, name string) models.KnobRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[knobID]; ok {
		return rec.DeepCopy()
	}
	rec := models.KnobRecord{
		KnobID:   knobID,
		Name:     name,
		LastSeen: r.now(),
	}
	rec.ConfigSHA = configSHA(rec.Config, rec.Name)
	r.records[knobID] = rec
	r.persistLocked()
	return rec.DeepCopy()
}

// UpdateConfig merges patch onto a knob's existing config (only fields
// the patch actually supplies are overwritten, spec.md §4.6) and
// recomputes its fingerprint.
func (r *Registry) UpdateConfig(knobID string, patch models.KnobConfigPatch) (models.KnobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[knobID]
	if !ok {
		return models.KnobRecord{}, models.ErrNotFoundFor("knob", knobID)
	}
	rec.Config = rec.Config.Merge(patch)
	rec.ConfigSHA = configSHA(rec.Config, rec.Name)
	r.records[knobID] = rec
	r.persistLocked()
	return rec.DeepCopy(), nil
}

// UpdateStatus records a knob's self-reported runtime status and bumps
// LastSeen. Unlike UpdateConfig this is not persisted on every call —
// it is high frequency telemetry, not durable configuration.
func (r *Registry) UpdateStatus(knobID string, status models.KnobStatus, version string) (models.KnobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[knobID]
	if !ok {
		return models.KnobRecord{}, models.ErrNotFoundFor("knob", knobID)
	}
	rec.Status = status
	rec.LastSeen = r.now()
	if version != "" {
		rec.Version = version
	}
	r.records[knobID] = rec
	return rec.DeepCopy(), nil
}

// GetConfigSHA returns the current fingerprint for a knob, used by the
// device to decide whether to re-fetch its full config (spec.md §4.6).
func (r *Registry) GetConfigSHA(knobID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[knobID]
	if !ok {
		return "", false
	}
	return rec.ConfigSHA, true
}

// Get returns a single knob record.
func (r *Registry) Get(knobID string) (models.KnobRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[knobID]
	if !ok {
		return models.KnobRecord{}, false
	}
	return rec.DeepCopy(), true
}

// List returns summaries of every known knob, sorted by knob id.
func (r *Registry) List() []models.KnobSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.KnobSummary, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KnobID < out[j].KnobID })
	return out
}

func (r *Registry) persistLocked() {
	if err := r.store.save(r.records); err != nil {
		// Persistence failures never block a knob's runtime behavior;
		// the in-memory state stays authoritative until the next
		// successful write.
		_ = err
	}
}

// configSHA computes the first 8 hex characters of the SHA-256 digest
// over the JSON encoding of {config fields..., name}, matching the
// fingerprint knob firmware compares against to decide whether to
// re-pull its configuration (spec.md §4.6).
func configSHA(cfg models.KnobConfig, name string) string {
	payload := struct {
		models.KnobConfig
		Name string `json:"name"`
	}{cfg, name}
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:8]
}

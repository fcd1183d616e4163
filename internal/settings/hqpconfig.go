package settings

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// HQPConfigStore persists the list of configured HQPlayer instances to
// hqp-config.json. Earlier deployments wrote a single instance object
// rather than an array; LoadInstances transparently migrates that shape
// forward (spec.md §6).
type HQPConfigStore struct {
	mu   sync.Mutex
	path string
}

// NewHQPConfigStore creates a store rooted at configDir/hqp-config.json.
func NewHQPConfigStore(configDir string) *HQPConfigStore {
	return &HQPConfigStore{path: filepath.Join(configDir, "hqp-config.json")}
}

// LoadInstances reads the configured HQPlayer instances, migrating a
// legacy single-object file to the array form in memory (the on-disk
// file is rewritten in array form on the next Save).
func (s *HQPConfigStore) LoadInstances() ([]models.HQPInstanceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var list []models.HQPInstanceConfig
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var single models.HQPInstanceConfig
	if err := json.Unmarshal(data, &single); err != nil {
		slog.Warn("settings: corrupt hqp-config.json, ignoring", "path", s.path, "err", err)
		return nil, nil
	}
	slog.Info("settings: migrated legacy single-instance hqp-config.json", "name", single.Name)
	return []models.HQPInstanceConfig{single}, nil
}

// SaveInstances atomically rewrites hqp-config.json in array form.
func (s *HQPConfigStore) SaveInstances(instances []models.HQPInstanceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if instances == nil {
		instances = []models.HQPInstanceConfig{}
	}
	return writeAtomic(s.path, instances)
}

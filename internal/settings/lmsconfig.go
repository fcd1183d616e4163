package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// LMSConfig is the persisted connection info for the LMS adapter
// (spec.md §6).
type LMSConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	PollIntervalS int    `json:"poll_interval_s,omitempty"`
}

// LMSConfigStore persists LMSConfig to lms-config.json.
type LMSConfigStore struct {
	mu   sync.Mutex
	path string
}

// NewLMSConfigStore creates a store rooted at configDir/lms-config.json.
func NewLMSConfigStore(configDir string) *LMSConfigStore {
	return &LMSConfigStore{path: filepath.Join(configDir, "lms-config.json")}
}

// Load reads lms-config.json, returning the zero value if absent.
func (s *LMSConfigStore) Load() (LMSConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return LMSConfig{}, nil
		}
		return LMSConfig{}, err
	}
	var cfg LMSConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return LMSConfig{}, nil
	}
	return cfg, nil
}

// Save atomically rewrites lms-config.json.
func (s *LMSConfigStore) Save(cfg LMSConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path, cfg)
}

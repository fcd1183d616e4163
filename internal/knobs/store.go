package knobs

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

const knobsFileName = "knobs.json"

// jsonStore is an atomic JSON file store for the knob registry, grounded
// on internal/config/json_store.go's load/writeAtomic shape. Knob
// mutations are infrequent enough (pairing, config pushes) to write
// immediately rather than debounce.
type jsonStore struct {
	path string
}

func newJSONStore(configDir string) *jsonStore {
	return &jsonStore{path: filepath.Join(configDir, knobsFileName)}
}

func (s *jsonStore) load() (map[string]models.KnobRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]models.KnobRecord), nil
		}
		return nil, err
	}
	var records map[string]models.KnobRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return make(map[string]models.KnobRecord), nil
	}
	if records == nil {
		records = make(map[string]models.KnobRecord)
	}
	return records, nil
}

func (s *jsonStore) save(records map[string]models.KnobRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

package bridgeapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// handleGetKnobConfig implements GET /config/{knob_id} (spec.md §6).
func (s *Server) handleGetKnobConfig(w http.ResponseWriter, r *http.Request) {
	knobID := chi.URLParam(r, "knob_id")
	rec, ok := s.knobs.Get(knobID)
	if !ok {
		writeError(w, models.ErrNotFoundFor("knob", knobID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"config":     withKnobID(rec),
		"config_sha": rec.ConfigSHA,
	})
}

func withKnobID(rec models.KnobRecord) map[string]interface{} {
	return map[string]interface{}{
		"knob_id":     rec.KnobID,
		"rotations":   rec.Config.Rotations,
		"powerTimers": rec.Config.PowerTimers,
		"wifiSsid":    rec.Config.WifiSSID,
		"cpuFast":     rec.Config.CPUFast,
		"pollInterval": rec.Config.PollIntervalS,
		"extra":        rec.Config.Extra,
	}
}

// handlePutKnobConfig implements PUT /config/{knob_id} (spec.md §6).
func (s *Server) handlePutKnobConfig(w http.ResponseWriter, r *http.Request) {
	knobID := chi.URLParam(r, "knob_id")
	var patch models.KnobConfigPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	if _, ok := s.knobs.Get(knobID); !ok {
		s.knobs.GetOrCreate(knobID, "")
	}
	rec, err := s.knobs.UpdateConfig(knobID, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"config":     withKnobID(rec),
		"config_sha": rec.ConfigSHA,
	})
}

// handleListKnobs implements GET /api/knobs (spec.md §6).
func (s *Server) handleListKnobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"knobs": s.knobs.List()})
}

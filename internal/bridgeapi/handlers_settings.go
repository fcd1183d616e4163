package bridgeapi

import (
	"io"
	"net/http"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// handleGetSettings implements GET /api/settings (spec.md §6).
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.settingsStore.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handlePostSettings implements POST /api/settings: a partial merge
// persisted and immediately handed to the adapter coordinator so
// enable/disable takes effect without a restart (spec.md §4.5, §6).
func (s *Server) handlePostSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.settingsStore.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, models.ErrBadReq("invalid request body: "+err.Error()))
		return
	}
	merged, err := current.MergeJSON(body)
	if err != nil {
		writeError(w, models.ErrBadReq("invalid JSON body: "+err.Error()))
		return
	}
	if err := s.settingsStore.Save(merged); err != nil {
		writeError(w, err)
		return
	}
	if s.coordinator != nil {
		s.coordinator.OnSettingsChanged(r.Context(), merged.Adapters)
	}
	if s.hqplink != nil {
		s.hqplink.LoadLinks(merged.HQP.ZoneLinks)
	}
	writeJSON(w, http.StatusOK, merged)
}

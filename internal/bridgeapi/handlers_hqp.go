package bridgeapi

import (
	"net/http"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// handleHQPInstances implements GET /hqp/instances (spec.md §6).
func (s *Server) handleHQPInstances(w http.ResponseWriter, r *http.Request) {
	names := s.hqp.Names()
	out := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		client, ok := s.hqp.Get(name)
		if !ok {
			continue
		}
		out = append(out, map[string]interface{}{
			"name":                 name,
			"configured":           client.IsConfigured(),
			"has_web_credentials": client.HasWebCredentials(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"instances": out})
}

// handleHQPStatus implements GET /hqp/status (spec.md §6).
func (s *Server) handleHQPStatus(w http.ResponseWriter, r *http.Request) {
	instance := r.URL.Query().Get("instance")
	if instance == "" {
		writeError(w, models.ErrBadReq("instance is required"))
		return
	}
	client, ok := s.hqp.Get(instance)
	if !ok {
		writeError(w, models.ErrNotFoundFor("hqp instance", instance))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"instance":            instance,
		"configured":          client.IsConfigured(),
		"has_web_credentials": client.HasWebCredentials(),
	})
}

// handleHQPProfiles implements GET /hqp/profiles (spec.md §6).
func (s *Server) handleHQPProfiles(w http.ResponseWriter, r *http.Request) {
	instance := r.URL.Query().Get("instance")
	client, ok := s.hqp.Get(instance)
	if !ok {
		writeError(w, models.ErrNotFoundFor("hqp instance", instance))
		return
	}
	profiles, err := client.ListProfiles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles})
}

// handleHQPLoadProfile implements POST /hqp/profiles/load (spec.md §6).
func (s *Server) handleHQPLoadProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Instance string `json:"instance"`
		Value    string `json:"value"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	client, ok := s.hqp.Get(body.Instance)
	if !ok {
		writeError(w, models.ErrNotFoundFor("hqp instance", body.Instance))
		return
	}
	if err := client.LoadProfile(r.Context(), body.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHQPPipelineGet implements GET /hqp/pipeline (spec.md §6).
func (s *Server) handleHQPPipelineGet(w http.ResponseWriter, r *http.Request) {
	instance := r.URL.Query().Get("instance")
	client, ok := s.hqp.Get(instance)
	if !ok {
		writeError(w, models.ErrNotFoundFor("hqp instance", instance))
		return
	}
	pipeline, err := client.GetPipeline(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline)
}

// handleHQPPipelineSet implements POST /hqp/pipeline (spec.md §6): a
// UI-originated value, translated to a native index before dispatch
// (spec.md §4.3), except samplerate which already arrives as an index.
func (s *Server) handleHQPPipelineSet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Instance string `json:"instance"`
		Setting  string `json:"setting"`
		Value    string `json:"value"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	client, ok := s.hqp.Get(body.Instance)
	if !ok {
		writeError(w, models.ErrNotFoundFor("hqp instance", body.Instance))
		return
	}
	if err := client.ApplyPipelineValue(r.Context(), body.Setting, body.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHQPConfigure implements POST /hqp/configure: persists the
// instance list and reloads the in-memory client manager (spec.md §6).
func (s *Server) handleHQPConfigure(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Instances []models.HQPInstanceConfig `json:"instances"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.hqpConfig.SaveInstances(body.Instances); err != nil {
		writeError(w, err)
		return
	}
	s.hqp.LoadInstances(body.Instances)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHQPZoneLinks implements GET /hqp/zones/links (spec.md §6).
func (s *Server) handleHQPZoneLinks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"links": s.hqplink.Links()})
}

// handleHQPZoneLink implements POST /hqp/zones/link (spec.md §6).
func (s *Server) handleHQPZoneLink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ZoneID   string `json:"zone_id"`
		Instance string `json:"instance"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := s.hqplink.Link(body.ZoneID, body.Instance); err != nil {
		writeError(w, err)
		return
	}
	s.persistZoneLinks()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHQPZoneUnlink implements POST /hqp/zones/unlink (spec.md §6).
func (s *Server) handleHQPZoneUnlink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ZoneID string `json:"zone_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	existed := s.hqplink.Unlink(body.ZoneID)
	s.persistZoneLinks()
	writeJSON(w, http.StatusOK, map[string]bool{"existed": existed})
}

// persistZoneLinks writes the current hqplink mapping back into
// settings.json so it survives a restart (spec.md §4.4 persistence).
func (s *Server) persistZoneLinks() {
	cfg, err := s.settingsStore.Load()
	if err != nil {
		return
	}
	cfg.HQP.ZoneLinks = s.hqplink.Links()
	_ = s.settingsStore.Save(cfg)
}

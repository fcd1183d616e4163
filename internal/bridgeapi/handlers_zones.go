package bridgeapi

import (
	"net"
	"net/http"
	"strconv"

	"github.com/open-horizon-labs/hifi-bridge/internal/bus"
	"github.com/open-horizon-labs/hifi-bridge/internal/identity"
	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// handleZones implements GET /zones (spec.md §6).
func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"zones": s.bus.GetZones()})
}

// handleControl implements POST /control (spec.md §6).
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ZoneID string      `json:"zone_id"`
		Action string      `json:"action"`
		Value  interface{} `json:"value,omitempty"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.ZoneID == "" || body.Action == "" {
		writeError(w, models.ErrBadReq("zone_id and action are required"))
		return
	}

	opts := s.callOptions(r)
	if err := s.bus.Control(r.Context(), body.ZoneID, body.Action, body.Value, opts); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleNowPlaying implements GET /now_playing (spec.md §6): fetches
// now-playing for a zone, embeds the knob's config_sha if the caller
// identifies itself as a knob, and enriches via the hqplink service
// when one is wired.
func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	zoneID := r.URL.Query().Get("zone_id")
	if zoneID == "" {
		writeError(w, models.ErrBadReq("zone_id is required"))
		return
	}

	opts := s.callOptions(r)
	np, err := s.bus.GetNowPlaying(zoneID, opts)
	if err != nil {
		writeJSON(w, models.Status(err), map[string]interface{}{
			"error": err.Error(),
			"zones": s.bus.GetZones(),
		})
		return
	}

	resp := map[string]interface{}{
		"line1":             np.Line1,
		"line2":             np.Line2,
		"line3":             np.Line3,
		"is_playing":        np.IsPlaying,
		"volume":            np.Volume,
		"volume_type":       np.VolumeType,
		"volume_step":       np.VolumeStep,
		"length_sec":        np.LengthSec,
		"seek_position_sec": np.SeekPositionSec,
		"zones":             s.bus.GetZones(),
	}
	if np.ImageKey != "" {
		resp["image_url"] = "/now_playing/image?zone_id=" + zoneID + "&image_key=" + np.ImageKey
	}

	s.trackKnob(r, zoneID, resp)
	s.enrichHQP(r, zoneID, resp)
	writeJSON(w, http.StatusOK, resp)
}

// trackKnob records the calling knob (if identified) in the registry
// and embeds the current config_sha so the device can detect config
// drift (spec.md §4.6).
func (s *Server) trackKnob(r *http.Request, zoneID string, resp map[string]interface{}) {
	if s.knobs == nil {
		return
	}
	knob := identity.FromRequest(r, "")
	if knob.ID == "" {
		return
	}
	s.knobs.GetOrCreate(knob.ID, "")
	status := identity.StatusFromQuery(r.URL.Query())
	mergedStatus := models.KnobStatus{
		BatteryLevel:    status.BatteryLevel,
		BatteryCharging: status.BatteryCharging,
		ZoneID:          zoneID,
		IP:              clientIP(r),
	}
	rec, err := s.knobs.UpdateStatus(knob.ID, mergedStatus, knob.Version)
	if err != nil {
		return
	}
	resp["config_sha"] = rec.ConfigSHA
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// enrichHQP attaches backend_data.hqp to the response when zoneID is
// linked to a configured HQPlayer instance (spec.md §4.4). This is
// policy the layer above the bus applies; the bus itself only exposes
// get_now_playing.
func (s *Server) enrichHQP(r *http.Request, zoneID string, resp map[string]interface{}) {
	if s.hqplink == nil {
		return
	}
	pipeline, ok := s.hqplink.GetPipelineForZone(r.Context(), zoneID)
	if !ok {
		return
	}
	resp["backend_data"] = map[string]interface{}{"hqp": pipeline}
}

func (s *Server) callOptions(r *http.Request) bus.CallOptions {
	knob := identity.FromRequest(r, "")
	sender := knob.ID
	if sender == "" {
		sender = "http"
	}
	return bus.CallOptions{Sender: sender}
}

// parseDim parses an optional width/height query parameter, returning
// 0 on empty or invalid input (the adapter decides the default).
func parseDim(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

package bridgeapi

import (
	"net/http"
	"runtime"

	"github.com/open-horizon-labs/hifi-bridge/internal/bus"
	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// handleAdminStatus implements GET /admin/status.json (spec.md §6): a
// one-shot diagnostic snapshot of everything the bus and its
// surrounding services currently know.
func (s *Server) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	zones := s.bus.GetZones()

	nowPlaying := make(map[string]models.NowPlaying, len(zones))
	for _, z := range zones {
		if np, err := s.bus.GetNowPlaying(z.ZoneID, bus.CallOptions{Sender: "admin"}); err == nil {
			nowPlaying[z.ZoneID] = np
		}
	}

	var knobSummaries interface{}
	if s.knobs != nil {
		knobSummaries = s.knobs.List()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"zones":       zones,
		"now_playing": nowPlaying,
		"backends":    s.bus.GetStatus(),
		"bus": map[string]interface{}{
			"zones_sha": s.bus.GetZonesSHA(),
			"activity":  s.bus.ActivitySnapshot(100),
		},
		"knobs": knobSummaries,
		"debug": map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"go_version": runtime.Version(),
		},
	})
}

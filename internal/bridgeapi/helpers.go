// Package bridgeapi implements the HTTP surface the bus requires the
// web layer to expose (spec.md §6): zones, now-playing, image fetch,
// control, knob config, settings, and HQPlayer operations. Grounded on
// the teacher's internal/api/{router,helpers,sse}.go shape (chi
// routing, writeJSON/writeError helpers, SSE subscriber loop).
package bridgeapi

import (
	"encoding/json"
	"net/http"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a bus error to its HTTP status (spec.md §7) and
// writes {error, message}.
func writeError(w http.ResponseWriter, err error) {
	status := models.Status(err)
	kind := "Internal"
	if e, ok := err.(*models.Error); ok {
		kind = string(e.Kind)
	}
	writeJSON(w, status, map[string]string{"error": kind, "message": err.Error()})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return models.ErrBadReq("invalid JSON body: " + err.Error())
	}
	return nil
}

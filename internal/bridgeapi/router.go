package bridgeapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP surface the bus requires the web layer to
// expose (spec.md §6), grounded on the teacher's chi-based
// internal/api/router.go.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/zones", s.handleZones)
	r.Get("/now_playing", s.handleNowPlaying)
	r.Get("/now_playing/image", s.handleImage)
	r.Post("/control", s.handleControl)

	r.Route("/config/{knob_id}", func(r chi.Router) {
		r.Get("/", s.handleGetKnobConfig)
		r.Put("/", s.handlePutKnobConfig)
	})
	r.Get("/api/knobs", s.handleListKnobs)

	r.Get("/admin/status.json", s.handleAdminStatus)

	r.Get("/api/settings", s.handleGetSettings)
	r.Post("/api/settings", s.handlePostSettings)

	r.Route("/hqp", func(r chi.Router) {
		r.Get("/status", s.handleHQPStatus)
		r.Get("/profiles", s.handleHQPProfiles)
		r.Post("/profiles/load", s.handleHQPLoadProfile)
		r.Get("/pipeline", s.handleHQPPipelineGet)
		r.Post("/pipeline", s.handleHQPPipelineSet)
		r.Get("/instances", s.handleHQPInstances)
		r.Post("/configure", s.handleHQPConfigure)
		r.Get("/zones/links", s.handleHQPZoneLinks)
		r.Post("/zones/link", s.handleHQPZoneLink)
		r.Post("/zones/unlink", s.handleHQPZoneUnlink)
	})

	r.Get("/events", s.handleEvents)

	return r
}

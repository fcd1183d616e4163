// Package hqplink maintains the primary-zone -> HQPlayer-instance
// mapping and the pipeline lookup used to enrich a primary zone's
// now-playing payload (spec.md §4.4). It is separate from bus adapter
// registration: a zone can be "linked" to an HQPlayer instance without
// that instance ever appearing as a bus zone itself.
package hqplink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// InstanceResolver looks up a configured HQPlayer instance and fetches
// its live pipeline snapshot. Implemented by the hqplayer client
// manager so hqplink never imports net/http directly.
type InstanceResolver interface {
	IsConfigured(instance string) bool
	GetPipeline(ctx context.Context, instance string) (models.HQPPipeline, error)
}

// Service owns the persisted primary_zone_id -> instance_name mapping.
type Service struct {
	resolver InstanceResolver

	mu    sync.RWMutex
	links map[string]string // primary zone id -> instance name
}

// New creates a link service over resolver.
func New(resolver InstanceResolver) *Service {
	return &Service{resolver: resolver, links: make(map[string]string)}
}

// Link associates zoneID with instance, rejecting instances that
// aren't currently configured (spec.md §4.4).
func (s *Service) Link(zoneID, instance string) error {
	if zoneID == "" || instance == "" {
		return models.ErrBadReq("zone_id and instance are required")
	}
	if !s.resolver.IsConfigured(instance) {
		return models.ErrBadReq("hqp instance not configured: " + instance)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[zoneID] = instance
	return nil
}

// Unlink removes a zone's link, reporting whether one existed.
func (s *Service) Unlink(zoneID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.links[zoneID]
	delete(s.links, zoneID)
	return existed
}

// GetPipelineForZone looks up zoneID's linked instance and returns its
// live pipeline. It never returns an error to the caller — any failure
// (no link, instance no longer configured, fetch error) is logged and
// reported as "no pipeline" (spec.md §4.4).
func (s *Service) GetPipelineForZone(ctx context.Context, zoneID string) (models.HQPPipeline, bool) {
	s.mu.RLock()
	instance, ok := s.links[zoneID]
	s.mu.RUnlock()
	if !ok {
		return models.HQPPipeline{}, false
	}
	if !s.resolver.IsConfigured(instance) {
		slog.Warn("hqplink: linked instance no longer configured", "zone_id", zoneID, "instance", instance)
		return models.HQPPipeline{}, false
	}
	pipeline, err := s.resolver.GetPipeline(ctx, instance)
	if err != nil {
		slog.Warn("hqplink: pipeline fetch failed", "zone_id", zoneID, "instance", instance, "err", err)
		return models.HQPPipeline{}, false
	}
	return pipeline, true
}

// Links returns a snapshot copy of the current mapping, for persistence.
func (s *Service) Links() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.links))
	for k, v := range s.links {
		out[k] = v
	}
	return out
}

// LoadLinks replaces the current mapping from persisted settings,
// dropping (and logging) any link whose instance is no longer
// configured (spec.md §4.4 persistence).
func (s *Service) LoadLinks(links map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = make(map[string]string, len(links))
	for zoneID, instance := range links {
		if !s.resolver.IsConfigured(instance) {
			slog.Warn("hqplink: dropping invalid link on load", "zone_id", zoneID, "instance", instance)
			continue
		}
		s.links[zoneID] = instance
	}
}

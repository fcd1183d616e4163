package bridgeapi

import (
	"github.com/open-horizon-labs/hifi-bridge/internal/bus"
	"github.com/open-horizon-labs/hifi-bridge/internal/coordinator"
	"github.com/open-horizon-labs/hifi-bridge/internal/hqplayer"
	"github.com/open-horizon-labs/hifi-bridge/internal/hqplink"
	"github.com/open-horizon-labs/hifi-bridge/internal/knobs"
	"github.com/open-horizon-labs/hifi-bridge/internal/settings"
)

// Server bundles the services bridgeapi's handlers dispatch into. It
// carries no state of its own — every field is a shared, independently
// lockable component constructed at startup (spec.md §9 "application
// state bundle").
type Server struct {
	bus           *bus.Bus
	knobs         *knobs.Registry
	settingsStore *settings.Store
	coordinator   *coordinator.Coordinator
	hqp           *hqplayer.Manager
	hqpConfig     *settings.HQPConfigStore
	hqplink       *hqplink.Service
}

// Deps is the set of services a Server is constructed from.
type Deps struct {
	Bus           *bus.Bus
	Knobs         *knobs.Registry
	SettingsStore *settings.Store
	Coordinator   *coordinator.Coordinator
	HQP           *hqplayer.Manager
	HQPConfig     *settings.HQPConfigStore
	HQPLink       *hqplink.Service
}

// New creates a Server over the given dependencies.
func New(d Deps) *Server {
	return &Server{
		bus:           d.Bus,
		knobs:         d.Knobs,
		settingsStore: d.SettingsStore,
		coordinator:   d.Coordinator,
		hqp:           d.HQP,
		hqpConfig:     d.HQPConfig,
		hqplink:       d.HQPLink,
	}
}

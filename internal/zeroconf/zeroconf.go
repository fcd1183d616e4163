// Package zeroconf advertises the bridge's own HTTP API over mDNS and
// browses the LAN for backend services adapters need to find on their
// own (Roon Cores). Grounded on the teacher's
// zeroconf.Service registrar; Browse is new, added for adapter
// discovery (spec.md §5, §4.2).
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grandcat/zeroconf"
)

// Service manages mDNS service registration for this bridge's own API.
type Service struct {
	name   string
	port   int
	server *zeroconf.Server
}

// New creates a new zeroconf Service that will advertise on the given port.
func New(name string, port int) *Service {
	return &Service{
		name: name,
		port: port,
	}
}

// Start registers the mDNS service and blocks until ctx is cancelled, at which
// point it shuts down the server cleanly.
func (s *Service) Start(ctx context.Context) error {
	txt := []string{"version=0.1.0-go", "role=hifi-bridge"}

	server, err := zeroconf.Register(
		s.name,
		"_http._tcp",
		"local.",
		s.port,
		txt,
		nil,
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	s.server = server
	slog.Info("zeroconf: registered mDNS service", "name", s.name, "port", s.port, "txt", txt)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}

// UpdateTXT updates the TXT records for the registered service.
// grandcat/zeroconf v1.0.0 has no live TXT update API; this is
// best-effort and requires a restart to actually apply.
func (s *Service) UpdateTXT(records []string) error {
	if s.server == nil {
		return fmt.Errorf("zeroconf: server not started")
	}
	slog.Info("zeroconf: TXT update requested (requires service restart to apply)", "records", records)
	return nil
}

// Found is a single discovered service instance.
type Found struct {
	Instance string
	Host     string
	Port     int
	Text     []string
}

// Browse scans the LAN for instances of serviceType (e.g. "_slimdevices-lms._tcp")
// until ctx is done and returns whatever it found. Used by the Roon
// adapter's DiscoveryClient to locate a Roon Core on the LAN
// (spec.md §4.2 discovery).
func Browse(ctx context.Context, serviceType string) ([]Found, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("zeroconf resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 8)
	var found []Found
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			f := Found{Instance: entry.Instance, Port: entry.Port, Text: entry.Text}
			if len(entry.AddrIPv4) > 0 {
				f.Host = entry.AddrIPv4[0].String()
			}
			found = append(found, f)
		}
	}()

	if err := resolver.Browse(ctx, serviceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("zeroconf browse: %w", err)
	}
	<-ctx.Done()
	<-done
	return found, nil
}

package roon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/open-horizon-labs/hifi-bridge/internal/adapter"
	"github.com/open-horizon-labs/hifi-bridge/internal/models"
	"github.com/open-horizon-labs/hifi-bridge/internal/zeroconf"
)

// errUnpaired is returned by Control/GetImage until a Core pairing
// transport is wired in place of this discovery-only client.
var errUnpaired = models.ErrBackendUnreachable("roon core not paired")

// serviceType is the mDNS service type Roon Cores advertise
// themselves under on the LAN.
const serviceType = "_roon-advertisement._tcp"

// discoverInterval is how often DiscoveryClient re-browses for a Core
// while unpaired.
const discoverInterval = 15 * time.Second

// DiscoveryClient is a PairingClient that finds a Roon Core via mDNS
// (the extension API itself requires a full registration handshake no
// public Go binding exists for anywhere in the retrieval pack — see
// DESIGN.md). It stays in "connecting" until a Core is found, exposing
// zero zones the whole time, matching spec.md §4.2's "must remain
// functional through pairing delays."
type DiscoveryClient struct {
	mu        sync.RWMutex
	connected bool
	core      zeroconf.Found

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDiscoveryClient creates a Roon Core discovery client.
func NewDiscoveryClient() *DiscoveryClient {
	return &DiscoveryClient{}
}

// Start begins periodic mDNS browsing for a Roon Core. onZones is not
// called until a Core is found; from then on each successful browse
// calls it with an empty list, since this discovery-only client does
// not pair, so it reports zero zones for the adapter's whole lifetime
// unless replaced by a full client.
func (d *DiscoveryClient) Start(ctx context.Context, onZones func([]Zone)) error {
	discoverCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	go d.loop(discoverCtx, onZones)
	return nil
}

func (d *DiscoveryClient) loop(ctx context.Context, onZones func([]Zone)) {
	defer d.wg.Done()
	ticker := time.NewTicker(discoverInterval)
	defer ticker.Stop()

	d.browse(ctx, onZones)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.browse(ctx, onZones)
		}
	}
}

func (d *DiscoveryClient) browse(ctx context.Context, onZones func([]Zone)) {
	browseCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	found, err := zeroconf.Browse(browseCtx, serviceType)
	if err != nil {
		slog.Debug("roon: mDNS browse failed", "err", err)
		return
	}
	if len(found) == 0 {
		return
	}

	d.mu.Lock()
	d.connected = true
	d.core = found[0]
	d.mu.Unlock()
	slog.Info("roon: core found", "host", found[0].Host, "port", found[0].Port)
	// Zone subscription requires the extension pairing handshake this
	// discovery-only client does not implement; onZones reports an
	// empty zone list.
	onZones(nil)
}

// Stop cancels the discovery loop and awaits its exit.
func (d *DiscoveryClient) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	return nil
}

// Control is unreachable until a real Core pairing transport replaces
// this discovery-only client.
func (d *DiscoveryClient) Control(ctx context.Context, zoneID, action string, value interface{}) error {
	return errUnpaired
}

// GetImage is unreachable for the same reason as Control.
func (d *DiscoveryClient) GetImage(ctx context.Context, imageKey string, opts adapter.ImageOptions) (adapter.ImageResult, error) {
	return adapter.ImageResult{}, errUnpaired
}

// Connected reports whether a Core has been found on the LAN.
func (d *DiscoveryClient) Connected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

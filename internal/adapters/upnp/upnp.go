// Package upnp adapts bare UPnP/DLNA MediaRenderer devices (no
// OpenHome extension) to the bus's Adapter contract. Devices are found
// via SSDP and controlled through their AVTransport/RenderingControl
// SOAP services. Because plain UPnP AVTransport has no concept of
// "next/previous within a queue managed elsewhere" or track artwork
// URIs guaranteed to resolve, those capabilities are declared
// unsupported (spec.md §4.2, §5).
package upnp

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/open-horizon-labs/hifi-bridge/internal/adapter"
	"github.com/open-horizon-labs/hifi-bridge/internal/models"
	"github.com/open-horizon-labs/hifi-bridge/internal/soap"
	"github.com/open-horizon-labs/hifi-bridge/internal/ssdp"
	"github.com/open-horizon-labs/hifi-bridge/internal/zoneid"
)

const prefix = "upnp"
const mediaRendererST = "urn:schemas-upnp-org:device:MediaRenderer:1"

const avTransportType = "urn:schemas-upnp-org:service:AVTransport:1"
const renderingControlType = "urn:schemas-upnp-org:service:RenderingControl:1"

var unsupportedCaps = []string{models.CapNext, models.CapPrevious, models.CapTrackMetadata, models.CapAlbumArt}

// Config configures discovery behavior.
type Config struct {
	DiscoveryInterval time.Duration
	SearchWait        time.Duration
}

// DefaultConfig returns the documented discovery cadence.
func DefaultConfig() Config {
	return Config{DiscoveryInterval: 60 * time.Second, SearchWait: 3 * time.Second}
}

type device struct {
	udn          string
	name         string
	avControlURL string
	rcControlURL string
}

// Adapter discovers and controls plain UPnP MediaRenderers.
type Adapter struct {
	cfg          Config
	onZoneChange adapter.ZoneChangeCallback

	mu      sync.RWMutex
	devices map[string]device // udn -> device
	status  adapter.Status

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a UPnP adapter.
func New(cfg Config, onZoneChange adapter.ZoneChangeCallback) *Adapter {
	if cfg.DiscoveryInterval <= 0 {
		cfg = DefaultConfig()
	}
	return &Adapter{
		cfg:          cfg,
		onZoneChange: onZoneChange,
		devices:      make(map[string]device),
		status:       adapter.Status{State: "connecting"},
	}
}

// Start begins periodic SSDP discovery.
func (a *Adapter) Start(ctx context.Context) error {
	discCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wg.Add(1)
	go a.discoveryLoop(discCtx)
	return nil
}

// Stop cancels discovery and waits for it to exit.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	return nil
}

func (a *Adapter) discoveryLoop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.cfg.DiscoveryInterval)
	defer ticker.Stop()

	a.discoverOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.discoverOnce(ctx)
		}
	}
}

func (a *Adapter) discoverOnce(ctx context.Context) {
	found, err := ssdp.Search(ctx, mediaRendererST, a.cfg.SearchWait)
	if err != nil {
		slog.Debug("upnp: discovery failed", "err", err)
		return
	}

	next := make(map[string]device, len(found))
	for _, f := range found {
		desc, err := fetchDescription(ctx, f.Location)
		if err != nil {
			slog.Debug("upnp: description fetch failed", "location", f.Location, "err", err)
			continue
		}
		next[desc.udn] = desc
	}

	a.mu.Lock()
	changed := len(next) != len(a.devices)
	if !changed {
		for udn := range next {
			if _, ok := a.devices[udn]; !ok {
				changed = true
				break
			}
		}
	}
	a.devices = next
	a.status = adapter.Status{Connected: len(next) > 0, ZoneCount: len(next), State: "connected"}
	a.mu.Unlock()

	if changed && a.onZoneChange != nil {
		a.onZoneChange()
	}
}

// GetZones returns one zone per discovered device.
func (a *Adapter) GetZones() []models.Zone {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.Zone, 0, len(a.devices))
	for udn, d := range a.devices {
		out = append(out, models.Zone{
			ZoneID:   zoneid.Join(prefix, udn),
			ZoneName: d.name,
			VolumeControl: &models.VolumeControl{
				Type: models.VolumeNumber, Min: 0, Max: 100, Step: 1,
			},
			Unsupported: append([]string(nil), unsupportedCaps...),
		})
	}
	return out
}

// GetNowPlaying polls the device's AVTransport+RenderingControl state
// live — UPnP renderers don't push metadata, so there is no cache to
// read from.
func (a *Adapter) GetNowPlaying(zoneID string) (models.NowPlaying, bool) {
	d, ok := a.lookup(zoneID)
	if !ok {
		return models.NowPlaying{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	transportInfo, err := getTransportInfo(ctx, d.avControlURL)
	if err != nil {
		return models.NowPlaying{}, false
	}
	volume, _ := getVolume(ctx, d.rcControlURL)

	return models.NowPlaying{
		IsPlaying:  transportInfo == "PLAYING",
		Volume:     float64(volume),
		VolumeType: models.VolumeNumber,
	}, true
}

// Status reports the adapter's connection state.
func (a *Adapter) Status() adapter.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Control dispatches transport/volume actions over SOAP.
func (a *Adapter) Control(ctx context.Context, zoneID, action string, value interface{}) error {
	d, ok := a.lookup(zoneID)
	if !ok {
		return models.ErrZoneNotFoundFor(zoneID)
	}

	action = adapter.NormalizeAction(action)
	switch action {
	case adapter.ActionPlay, adapter.ActionPlayPause:
		return avTransportCall(ctx, d.avControlURL, "Play", `<InstanceID>0</InstanceID><Speed>1</Speed>`)
	case adapter.ActionPause:
		return avTransportCall(ctx, d.avControlURL, "Pause", `<InstanceID>0</InstanceID>`)
	case adapter.ActionStop:
		return avTransportCall(ctx, d.avControlURL, "Stop", `<InstanceID>0</InstanceID>`)
	case adapter.ActionVolAbs:
		f, ok := value.(float64)
		if !ok {
			return models.ErrBadReq("vol_abs requires a numeric value")
		}
		body := fmt.Sprintf(`<InstanceID>0</InstanceID><Channel>Master</Channel><DesiredVolume>%d</DesiredVolume>`, int(f))
		return renderingControlCall(ctx, d.rcControlURL, "SetVolume", body)
	case adapter.ActionSeek:
		f, ok := value.(float64)
		if !ok {
			return models.ErrBadReq("seek requires a numeric value")
		}
		body := fmt.Sprintf(`<InstanceID>0</InstanceID><Unit>ABS_TIME</Unit><Target>%s</Target>`, secondsToHMS(f))
		return avTransportCall(ctx, d.avControlURL, "Seek", body)
	case adapter.ActionNext, adapter.ActionPrevious:
		return models.ErrUnsupportedOp("upnp adapter does not support " + action)
	default:
		return models.ErrUnsupportedOp("upnp adapter does not support action " + action)
	}
}

func (a *Adapter) lookup(zoneID string) (device, bool) {
	_, udn, ok := zoneid.Split(zoneID)
	if !ok {
		return device{}, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.devices[udn]
	return d, ok
}

func avTransportCall(ctx context.Context, controlURL, action, body string) error {
	client := soap.NewClient(controlURL)
	full := fmt.Sprintf(`<u:%s xmlns:u="%s">%s</u:%s>`, action, avTransportType, body, action)
	return client.Call(ctx, avTransportType, action, full, nil)
}

func renderingControlCall(ctx context.Context, controlURL, action, body string) error {
	client := soap.NewClient(controlURL)
	full := fmt.Sprintf(`<u:%s xmlns:u="%s">%s</u:%s>`, action, renderingControlType, body, action)
	return client.Call(ctx, renderingControlType, action, full, nil)
}

func getTransportInfo(ctx context.Context, controlURL string) (string, error) {
	client := soap.NewClient(controlURL)
	full := fmt.Sprintf(`<u:GetTransportInfo xmlns:u="%s"><InstanceID>0</InstanceID></u:GetTransportInfo>`, avTransportType)
	var out struct {
		CurrentTransportState string `xml:"CurrentTransportState"`
	}
	if err := client.Call(ctx, avTransportType, "GetTransportInfo", full, &out); err != nil {
		return "", err
	}
	return out.CurrentTransportState, nil
}

func getVolume(ctx context.Context, controlURL string) (int, error) {
	client := soap.NewClient(controlURL)
	full := fmt.Sprintf(`<u:GetVolume xmlns:u="%s"><InstanceID>0</InstanceID><Channel>Master</Channel></u:GetVolume>`, renderingControlType)
	var out struct {
		CurrentVolume int `xml:"CurrentVolume"`
	}
	if err := client.Call(ctx, renderingControlType, "GetVolume", full, &out); err != nil {
		return 0, err
	}
	return out.CurrentVolume, nil
}

func secondsToHMS(total float64) string {
	s := int(total)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

func fetchDescription(ctx context.Context, location string) (device, error) {
	desc, err := fetchDeviceDescription(ctx, location)
	if err != nil {
		return device{}, err
	}
	base, err := url.Parse(location)
	if err != nil {
		return device{}, err
	}
	return device{
		udn:          strings.TrimPrefix(desc.UDN, "uuid:"),
		name:         desc.FriendlyName,
		avControlURL: resolveURL(base, desc.avControlURL()),
		rcControlURL: resolveURL(base, desc.rcControlURL()),
	}, nil
}

func resolveURL(base *url.URL, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}

// Package openhome adapts OpenHome-capable renderers (openhome.org's
// extension to UPnP, as used by Linn, Chord, and many DLNA-class
// streamers) to the bus's Adapter contract. Unlike the bare upnp
// adapter, OpenHome's Transport/Volume/Info services expose full
// transport control, track metadata, and volume in one coherent set —
// so this adapter declares no unsupported capabilities (spec.md §4.2).
package openhome

import (
	"context"
	"encoding/xml"
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

const prefix = "openhome"
const productST = "urn:av-openhome-org:service:Product:1"

const transportType = "urn:av-openhome-org:service:Transport:1"
const volumeType = "urn:av-openhome-org:service:Volume:1"
const infoType = "urn:av-openhome-org:service:Info:1"

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
	udn              string
	name             string
	transportControl string
	volumeControl    string
	infoControl      string
	hasVolume        bool
}

// Adapter discovers and controls OpenHome renderers.
type Adapter struct {
	cfg          Config
	onZoneChange adapter.ZoneChangeCallback

	mu      sync.RWMutex
	devices map[string]device
	status  adapter.Status

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an OpenHome adapter.
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

// Start begins periodic SSDP discovery of OpenHome Product devices.
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
	found, err := ssdp.Search(ctx, productST, a.cfg.SearchWait)
	if err != nil {
		slog.Debug("openhome: discovery failed", "err", err)
		return
	}

	next := make(map[string]device, len(found))
	for _, f := range found {
		desc, err := fetchDescription(ctx, f.Location)
		if err != nil {
			slog.Debug("openhome: description fetch failed", "location", f.Location, "err", err)
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

// GetZones returns one zone per discovered device, all fully supported.
func (a *Adapter) GetZones() []models.Zone {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.Zone, 0, len(a.devices))
	for udn, d := range a.devices {
		var vc *models.VolumeControl
		if d.hasVolume {
			vc = &models.VolumeControl{Type: models.VolumeNumber, Min: 0, Max: 100, Step: 1}
		}
		out = append(out, models.Zone{
			ZoneID:        zoneid.Join(prefix, udn),
			ZoneName:      d.name,
			VolumeControl: vc,
		})
	}
	return out
}

// GetNowPlaying polls the device's Info service for current track data.
func (a *Adapter) GetNowPlaying(zoneID string) (models.NowPlaying, bool) {
	d, ok := a.lookup(zoneID)
	if !ok {
		return models.NowPlaying{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	state, err := getTransportState(ctx, d.transportControl)
	if err != nil {
		return models.NowPlaying{}, false
	}
	meta, _ := getTrackMetadata(ctx, d.infoControl)

	np := models.NowPlaying{
		Line1:     meta.title,
		Line2:     meta.artist,
		Line3:     meta.album,
		IsPlaying: state == "Playing",
	}
	if d.hasVolume {
		if vol, err := getVolume(ctx, d.volumeControl); err == nil {
			np.Volume = float64(vol)
			np.VolumeType = models.VolumeNumber
		}
	}
	return np, true
}

// Status reports the adapter's connection state.
func (a *Adapter) Status() adapter.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Control dispatches a transport/volume action over SOAP.
func (a *Adapter) Control(ctx context.Context, zoneID, action string, value interface{}) error {
	d, ok := a.lookup(zoneID)
	if !ok {
		return models.ErrZoneNotFoundFor(zoneID)
	}

	action = adapter.NormalizeAction(action)
	switch action {
	case adapter.ActionPlay, adapter.ActionPlayPause:
		return transportCall(ctx, d.transportControl, "Play", "")
	case adapter.ActionPause:
		return transportCall(ctx, d.transportControl, "Pause", "")
	case adapter.ActionStop:
		return transportCall(ctx, d.transportControl, "Stop", "")
	case adapter.ActionNext:
		return transportCall(ctx, d.transportControl, "Next", "")
	case adapter.ActionPrevious:
		return transportCall(ctx, d.transportControl, "Previous", "")
	case adapter.ActionVolAbs:
		if !d.hasVolume {
			return models.ErrUnsupportedOp("device has no Volume service")
		}
		f, ok := value.(float64)
		if !ok {
			return models.ErrBadReq("vol_abs requires a numeric value")
		}
		body := fmt.Sprintf(`<Value>%d</Value>`, int(f))
		return volumeCall(ctx, d.volumeControl, "SetVolume", body)
	case adapter.ActionVolRel:
		if !d.hasVolume {
			return models.ErrUnsupportedOp("device has no Volume service")
		}
		f, ok := value.(float64)
		if !ok {
			return models.ErrBadReq("vol_rel requires a numeric value")
		}
		if f >= 0 {
			return volumeCall(ctx, d.volumeControl, "VolumeInc", "")
		}
		return volumeCall(ctx, d.volumeControl, "VolumeDec", "")
	default:
		return models.ErrUnsupportedOp("openhome adapter does not support action " + action)
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

func transportCall(ctx context.Context, controlURL, action, body string) error {
	client := soap.NewClient(controlURL)
	full := fmt.Sprintf(`<u:%s xmlns:u="%s">%s</u:%s>`, action, transportType, body, action)
	return client.Call(ctx, transportType, action, full, nil)
}

func volumeCall(ctx context.Context, controlURL, action, body string) error {
	client := soap.NewClient(controlURL)
	full := fmt.Sprintf(`<u:%s xmlns:u="%s">%s</u:%s>`, action, volumeType, body, action)
	return client.Call(ctx, volumeType, action, full, nil)
}

func getTransportState(ctx context.Context, controlURL string) (string, error) {
	client := soap.NewClient(controlURL)
	full := fmt.Sprintf(`<u:TransportState xmlns:u="%s"></u:TransportState>`, transportType)
	var out struct {
		Value string `xml:"Value"`
	}
	if err := client.Call(ctx, transportType, "TransportState", full, &out); err != nil {
		return "", err
	}
	return out.Value, nil
}

func getVolume(ctx context.Context, controlURL string) (int, error) {
	client := soap.NewClient(controlURL)
	full := fmt.Sprintf(`<u:Volume xmlns:u="%s"></u:Volume>`, volumeType)
	var out struct {
		Value int `xml:"Value"`
	}
	if err := client.Call(ctx, volumeType, "Volume", full, &out); err != nil {
		return 0, err
	}
	return out.Value, nil
}

type trackMeta struct {
	title, artist, album string
}

func getTrackMetadata(ctx context.Context, controlURL string) (trackMeta, error) {
	client := soap.NewClient(controlURL)
	full := fmt.Sprintf(`<u:Metatext xmlns:u="%s"></u:Metatext>`, infoType)
	var out struct {
		Value string `xml:"Value"`
	}
	if err := client.Call(ctx, infoType, "Metatext", full, &out); err != nil {
		return trackMeta{}, err
	}
	return parseDIDLLite(out.Value), nil
}

// parseDIDLLite extracts title/artist/album from an OpenHome Info
// service's DIDL-Lite metadata string. Best-effort: malformed or
// empty metadata simply yields a zero value.
func parseDIDLLite(didl string) trackMeta {
	if didl == "" {
		return trackMeta{}
	}
	var doc struct {
		Item struct {
			Title   string `xml:"title"`
			Creator string `xml:"creator"`
			Album   string `xml:"album"`
		} `xml:"item"`
	}
	if err := xml.Unmarshal([]byte(didl), &doc); err != nil {
		return trackMeta{}
	}
	return trackMeta{title: doc.Item.Title, artist: doc.Item.Creator, album: doc.Item.Album}
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
	volumeURL := desc.serviceControlURL(volumeType)
	return device{
		udn:              strings.TrimPrefix(desc.UDN, "uuid:"),
		name:             desc.FriendlyName,
		transportControl: resolveURL(base, desc.serviceControlURL(transportType)),
		volumeControl:    resolveURL(base, volumeURL),
		infoControl:      resolveURL(base, desc.serviceControlURL(infoType)),
		hasVolume:        volumeURL != "",
	}, nil
}

func resolveURL(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}

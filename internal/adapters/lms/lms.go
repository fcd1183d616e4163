// Package lms adapts a Logitech Media Server (LMS/Lyrion) install to
// the bus's Adapter contract. It polls the server's JSON-RPC endpoint
// on an interval, generalizing the teacher's single-player
// fetchLMSStatus/pollMetadata HTTP-polling shape (internal/streams/lms.go)
// into a player-list poll that produces one bus zone per LMS player
// (spec.md §4.7).
package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/open-horizon-labs/hifi-bridge/internal/adapter"
	"github.com/open-horizon-labs/hifi-bridge/internal/models"
	"github.com/open-horizon-labs/hifi-bridge/internal/zoneid"
)

const prefix = "lms"

// Config configures a single LMS connection.
type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	PollInterval  time.Duration
}

// DefaultPollInterval matches the spec's documented 2s default.
const DefaultPollInterval = 2 * time.Second

// Adapter polls an LMS server's player list and exposes each player as
// a bus zone under the "lms:" prefix.
type Adapter struct {
	cfg    Config
	client *http.Client
	limit  *rate.Limiter
	onZoneChange adapter.ZoneChangeCallback

	mu         sync.RWMutex
	zones      map[string]models.Zone // native player id -> zone
	nowPlaying map[string]models.NowPlaying
	status     adapter.Status

	stop   context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an LMS adapter. onZoneChange is invoked whenever the
// player list's shape changes (player added/removed/renamed).
func New(cfg Config, onZoneChange adapter.ZoneChangeCallback) *Adapter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Adapter{
		cfg:          cfg,
		client:       &http.Client{Timeout: 3 * time.Second},
		limit:        rate.NewLimiter(rate.Every(cfg.PollInterval), 1),
		onZoneChange: onZoneChange,
		zones:        make(map[string]models.Zone),
		nowPlaying:   make(map[string]models.NowPlaying),
		status:       adapter.Status{State: "connecting"},
	}
}

// Start begins polling. It returns immediately; polling runs in the
// background until Stop is called.
func (a *Adapter) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	a.stop = cancel
	a.wg.Add(1)
	go a.pollLoop(pollCtx)
	return nil
}

// Stop cancels the poll loop and waits for it to exit.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.stop != nil {
		a.stop()
	}
	a.wg.Wait()
	return nil
}

func (a *Adapter) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	a.pollOnce(ctx)
	// A tick that fired while a poll was still in flight is dropped
	// here rather than queued — backpressure, not queuing (spec.md §5).
	select {
	case <-ticker.C:
	default:
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The limiter also caps polling at one per PollInterval.
			if !a.limit.Allow() {
				continue
			}
			a.pollOnce(ctx)
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

func (a *Adapter) pollOnce(ctx context.Context) {
	players, err := a.fetchPlayers(ctx)
	if err != nil {
		slog.Debug("lms: poll failed", "host", a.cfg.Host, "err", err)
		a.mu.Lock()
		a.status = adapter.Status{Connected: false, Host: a.cfg.Host, State: "degraded", ZoneCount: len(a.zones)}
		a.mu.Unlock()
		return
	}

	shapeChanged := false
	nextZones := make(map[string]models.Zone, len(players))
	nextNP := make(map[string]models.NowPlaying, len(players))

	a.mu.RLock()
	prevCount := len(a.zones)
	a.mu.RUnlock()

	for _, p := range players {
		zoneID := zoneid.Join(prefix, p.PlayerID)
		zone := models.Zone{
			ZoneID:   zoneID,
			ZoneName: p.Name,
			State:    modeToState(p.Mode),
			VolumeControl: &models.VolumeControl{
				Type: models.VolumeNumber,
				Min:  0,
				Max:  100,
				Step: 1,
			},
		}
		nextZones[p.PlayerID] = zone
		nextNP[zoneID] = models.NowPlaying{
			Line1:     p.Title,
			Line2:     p.Artist,
			Line3:     p.Album,
			IsPlaying: p.Mode == "play",
			Volume:    float64(p.Volume),
			VolumeType: models.VolumeNumber,
		}
	}

	a.mu.Lock()
	if len(nextZones) != prevCount {
		shapeChanged = true
	} else {
		for id := range nextZones {
			if _, ok := a.zones[id]; !ok {
				shapeChanged = true
				break
			}
		}
	}
	a.zones = nextZones
	a.nowPlaying = nextNP
	a.status = adapter.Status{Connected: true, Host: a.cfg.Host, ZoneCount: len(nextZones), State: "connected"}
	a.mu.Unlock()

	if shapeChanged && a.onZoneChange != nil {
		a.onZoneChange()
	}
}

// GetZones returns the current cached players as bus zones.
func (a *Adapter) GetZones() []models.Zone {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.Zone, 0, len(a.zones))
	for _, z := range a.zones {
		out = append(out, z.DeepCopy())
	}
	return out
}

// GetNowPlaying returns cached now-playing info for a zone.
func (a *Adapter) GetNowPlaying(zoneID string) (models.NowPlaying, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	np, ok := a.nowPlaying[zoneID]
	return np, ok
}

// Status reports the adapter's current connection state.
func (a *Adapter) Status() adapter.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Control dispatches a transport/volume action to the LMS JSON-RPC
// endpoint for the player behind zoneID.
func (a *Adapter) Control(ctx context.Context, zoneID, action string, value interface{}) error {
	_, nativeID, ok := zoneid.Split(zoneID)
	if !ok {
		return models.ErrZoneNotFoundFor(zoneID)
	}

	action = adapter.NormalizeAction(action)
	var params []interface{}
	switch action {
	case adapter.ActionPlay, adapter.ActionPlayPause:
		params = []interface{}{"play"}
	case adapter.ActionPause:
		params = []interface{}{"pause", 1}
	case adapter.ActionStop:
		params = []interface{}{"stop"}
	case adapter.ActionNext:
		params = []interface{}{"playlist", "index", "+1"}
	case adapter.ActionPrevious:
		params = []interface{}{"playlist", "index", "-1"}
	case adapter.ActionVolAbs:
		f, ok := value.(float64)
		if !ok {
			return models.ErrBadReq("vol_abs requires a numeric value")
		}
		params = []interface{}{"mixer", "volume", int(f)}
	case adapter.ActionVolRel:
		f, ok := value.(float64)
		if !ok {
			return models.ErrBadReq("vol_rel requires a numeric value")
		}
		sign := "+"
		if f < 0 {
			sign = ""
		}
		params = []interface{}{"mixer", "volume", fmt.Sprintf("%s%d", sign, int(f))}
	case adapter.ActionSeek:
		f, ok := value.(float64)
		if !ok {
			return models.ErrBadReq("seek requires a numeric value")
		}
		params = []interface{}{"time", f}
	default:
		return models.ErrUnsupportedOp("lms adapter does not support action " + action)
	}

	return a.rpcCommand(ctx, nativeID, params)
}

// rpcPlayer is the adapter's internal, assembled view of one LMS
// player — it is populated by hand from several JSON-RPC calls, not
// unmarshaled directly.
type rpcPlayer struct {
	PlayerID string
	Name     string
	Mode     string
	Volume   int
	Title    string
	Artist   string
	Album    string
}

func (a *Adapter) baseURL() string {
	return fmt.Sprintf("http://%s:%d/jsonrpc.js", a.cfg.Host, a.cfg.Port)
}

func (a *Adapter) rpc(ctx context.Context, req interface{}, out interface{}) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL(), bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.cfg.Username != "" {
		httpReq.SetBasicAuth(a.cfg.Username, a.cfg.Password)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return models.ErrBackendUnreachable(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return models.ErrBackendUnauthorized
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (a *Adapter) rpcCommand(ctx context.Context, nativeID string, params []interface{}) error {
	req := map[string]interface{}{
		"id":     1,
		"method": "slim.request",
		"params": []interface{}{nativeID, params},
	}
	return a.rpc(ctx, req, nil)
}

// fetchPlayers retrieves the LMS server's current player roster with
// one serverstatus call, then each player's playback status with one
// status call per player.
func (a *Adapter) fetchPlayers(ctx context.Context) ([]rpcPlayer, error) {
	req := map[string]interface{}{
		"id":     1,
		"method": "slim.request",
		"params": []interface{}{"-", []interface{}{"serverstatus", 0, 999}},
	}
	var resp struct {
		Result struct {
			PlayersLoop []struct {
				PlayerID string `json:"playerid"`
				Name     string `json:"name"`
			} `json:"players_loop"`
		} `json:"result"`
	}
	if err := a.rpc(ctx, req, &resp); err != nil {
		return nil, err
	}

	players := make([]rpcPlayer, 0, len(resp.Result.PlayersLoop))
	for _, p := range resp.Result.PlayersLoop {
		status, err := a.fetchPlayerStatus(ctx, p.PlayerID)
		if err != nil {
			slog.Debug("lms: player status fetch failed", "player", p.PlayerID, "err", err)
			players = append(players, rpcPlayer{PlayerID: p.PlayerID, Name: p.Name, Mode: "stop"})
			continue
		}
		status.PlayerID = p.PlayerID
		status.Name = p.Name
		players = append(players, status)
	}
	return players, nil
}

func (a *Adapter) fetchPlayerStatus(ctx context.Context, playerID string) (rpcPlayer, error) {
	req := map[string]interface{}{
		"id":     1,
		"method": "slim.request",
		"params": []interface{}{playerID, []interface{}{"status", "-", 1, "tags:al"}},
	}
	var resp struct {
		Result struct {
			Mode        string `json:"mode"`
			MixerVolume int    `json:"mixer volume"`
			PlaylistLoop []struct {
				Title  string `json:"title"`
				Artist string `json:"artist"`
				Album  string `json:"album"`
			} `json:"playlist_loop"`
		} `json:"result"`
	}
	if err := a.rpc(ctx, req, &resp); err != nil {
		return rpcPlayer{}, err
	}
	p := rpcPlayer{Mode: resp.Result.Mode, Volume: resp.Result.MixerVolume}
	if len(resp.Result.PlaylistLoop) > 0 {
		track := resp.Result.PlaylistLoop[0]
		p.Title = track.Title
		p.Artist = track.Artist
		p.Album = track.Album
	}
	return p, nil
}

func modeToState(mode string) models.ZoneState {
	switch mode {
	case "play":
		return models.StatePlaying
	case "pause":
		return models.StatePaused
	default:
		return models.StateStopped
	}
}

var _ adapter.Adapter = (*Adapter)(nil)

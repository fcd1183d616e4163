// Package hqplayer implements the dual-transport HQPlayer client:
// HTTP-digest web-UI scraping for profile switching, and a native
// binary protocol for all pipeline control (spec.md §4.3). Both
// transports target the same host; Client merges them behind one
// per-instance API and owns the UI-value -> native-index translation
// the web form and the native protocol disagree on.
package hqplayer

import (
	"context"
	"strconv"
	"sync"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// Client is one configured HQPlayer instance's merged web+native
// control surface.
type Client struct {
	cfg models.HQPInstanceConfig

	web    *WebClient
	native *NativeClient

	mu       sync.Mutex
	lastSnap WebSnapshot
	stale    bool
}

// New creates a merged client for one instance. Safe to construct even
// when cfg has no credentials — capability is gated at call time.
func New(cfg models.HQPInstanceConfig) *Client {
	c := &Client{cfg: cfg, native: NewNativeClient(cfg.Host, cfg.NativePort)}
	if cfg.HasWebCredentials() {
		c.web = NewWebClient(cfg.Host, cfg.WebPort, cfg.Username, cfg.Password)
	}
	return c
}

// IsConfigured reports whether enough information is present to reach
// the instance at all (spec.md §4.3: "needs only host").
func (c *Client) IsConfigured() bool { return c.cfg.IsConfigured() }

// HasWebCredentials reports whether profile switching is reachable.
func (c *Client) HasWebCredentials() bool { return c.cfg.HasWebCredentials() }

// ProfileSwitchingAvailable is true only when the instance identifies
// as the embedded HQPlayer flavor and web credentials are present
// (spec.md §4.3).
func (c *Client) ProfileSwitchingAvailable(ctx context.Context) (bool, error) {
	if !c.HasWebCredentials() {
		return false, nil
	}
	info, err := c.native.GetProductInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.IsEmbedded(), nil
}

// ListProfiles returns the sanitized profile list: empty values and
// the literal "default" dropped (spec.md §4.3).
func (c *Client) ListProfiles(ctx context.Context) ([]string, error) {
	if c.web == nil {
		return nil, models.ErrBadReq("hqp instance has no web credentials configured")
	}
	snap, err := c.web.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	c.cacheSnapshot(snap, false)
	return sanitizeProfiles(snap.ProfileSel), nil
}

func sanitizeProfiles(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p == "" || p == "default" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// LoadProfile switches the active profile. HQPlayer restarts after a
// successful POST; the caller gets ok immediately and actual state
// converges after restart (spec.md §4.3) — this client marks its
// cached snapshot stale for that window rather than blocking.
func (c *Client) LoadProfile(ctx context.Context, value string) error {
	if c.web == nil {
		return models.ErrBadReq("hqp instance has no web credentials configured")
	}
	snap, err := c.web.ListProfiles(ctx)
	if err != nil {
		return err
	}
	if err := c.web.LoadProfile(ctx, snap, value); err != nil {
		return err
	}
	c.markStale()
	return nil
}

// PipelineSnapshot returns the last-good scraped snapshot, marking
// whether it is known-stale from an in-flight profile restart (open
// question resolved in DESIGN.md: serve last-good, flagged stale,
// rather than block the caller).
func (c *Client) PipelineSnapshot() (WebSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSnap, c.stale
}

func (c *Client) cacheSnapshot(snap WebSnapshot, stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSnap = snap
	c.stale = stale
}

func (c *Client) markStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale = true
}

// GetPipeline returns the live native pipeline snapshot, used by
// hqplink to enrich a primary zone's now-playing payload.
func (c *Client) GetPipeline(ctx context.Context) (models.HQPPipeline, error) {
	p, err := c.native.GetPipeline(ctx)
	if err != nil {
		return models.HQPPipeline{}, err
	}
	p.Instance = c.cfg.Name
	return p, nil
}

// ApplyPipelineValue translates a UI-originated pipeline change (a
// human-facing option *value*, not an index) into the native index the
// binary protocol expects, then issues it. samplerate is the one
// setting the UI already sends as an index (spec.md §4.3).
func (c *Client) ApplyPipelineValue(ctx context.Context, setting, value string) error {
	if setting == SettingSampleRate {
		idx, err := strconv.Atoi(value)
		if err != nil {
			return models.ErrBadReq("samplerate value must be a native index")
		}
		return c.native.SetPipeline(ctx, setting, idx)
	}

	if c.web == nil {
		return models.ErrBadReq("hqp instance has no web credentials configured")
	}
	snap, err := c.web.FetchSnapshot(ctx)
	if err != nil {
		return err
	}
	c.cacheSnapshot(snap, false)

	options, ok := snap.Options[setting]
	if !ok {
		return models.ErrBadReq("unknown pipeline setting: " + setting)
	}
	for _, opt := range options {
		if opt.Value == value {
			return c.native.SetPipeline(ctx, setting, opt.Index)
		}
	}
	return models.ErrBadReq("unrecognized value for " + setting + ": " + value)
}

// SetVolume issues a native volume command.
func (c *Client) SetVolume(ctx context.Context, db float64) error {
	return c.native.SetVolume(ctx, db)
}

// Close releases the native connection.
func (c *Client) Close() error { return c.native.Close() }

// Manager owns one Client per configured HQPlayer instance, keyed by
// instance name, and is the InstanceResolver the hqplink service calls
// into (spec.md §4.4).
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewManager creates an empty instance manager.
func NewManager() *Manager {
	return &Manager{clients: make(map[string]*Client)}
}

// LoadInstances replaces the managed client set from persisted config.
func (m *Manager) LoadInstances(configs []models.HQPInstanceConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		c.Close()
	}
	m.clients = make(map[string]*Client, len(configs))
	for _, cfg := range configs {
		m.clients[cfg.Name] = New(cfg)
	}
}

// IsConfigured implements hqplink.InstanceResolver.
func (m *Manager) IsConfigured(instance string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[instance]
	return ok && c.IsConfigured()
}

// GetPipeline implements hqplink.InstanceResolver.
func (m *Manager) GetPipeline(ctx context.Context, instance string) (models.HQPPipeline, error) {
	m.mu.RLock()
	c, ok := m.clients[instance]
	m.mu.RUnlock()
	if !ok {
		return models.HQPPipeline{}, models.ErrNotFoundFor("hqp instance", instance)
	}
	return c.GetPipeline(ctx)
}

// Get returns the named instance's client.
func (m *Manager) Get(instance string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[instance]
	return c, ok
}

// Names returns every configured instance name.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.clients))
	for name := range m.clients {
		out = append(out, name)
	}
	return out
}

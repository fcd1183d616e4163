package hqplayer

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// NativeClient speaks HQPlayer's native line-oriented binary control
// protocol (default port 4321): pipeline control (mode/filter/shaper/
// rate/volume), matrix profile selection, and product/version
// discovery (spec.md §4.3). Unlike the web transport this carries no
// auth — reachability alone gates it.
type NativeClient struct {
	host string
	port int

	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// NewNativeClient creates a client against one HQPlayer instance's
// native port. The connection is established lazily on first command.
func NewNativeClient(host string, port int) *NativeClient {
	if port == 0 {
		port = models.DefaultNativePort
	}
	return &NativeClient{host: host, port: port, timeout: 5 * time.Second}
}

func (c *NativeClient) ensureConn(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", c.host, c.port))
	if err != nil {
		return models.ErrBackendUnreachable(err.Error())
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Close tears down the native connection, if one is open.
func (c *NativeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// command sends a single request line and reads one response line,
// applying the request's deadline to the whole round trip.
func (c *NativeClient) command(ctx context.Context, line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConn(ctx); err != nil {
		return "", err
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)

	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.invalidateLocked()
		return "", models.ErrBackendUnreachable(err.Error())
	}
	resp, err := c.reader.ReadString('\n')
	if err != nil {
		c.invalidateLocked()
		return "", models.ErrBackendUnreachable(err.Error())
	}
	return strings.TrimSpace(resp), nil
}

func (c *NativeClient) invalidateLocked() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.reader = nil
}

// Pipeline setting names recognized by SetPipeline (spec.md §4.3).
const (
	SettingMode       = "mode"
	SettingSampleRate = "samplerate"
	SettingFilter1x   = "filter1x"
	SettingFilterNx   = "filterNx"
	SettingShaper     = "shaper"
	SettingDither     = "dither"
)

var pipelineCommands = map[string]string{
	SettingMode:       "setMode",
	SettingSampleRate: "setRate",
	SettingFilter1x:   "setFilter1x",
	SettingFilterNx:   "setFilterNx",
	SettingShaper:     "setShaper",
	SettingDither:     "setDither",
}

// SetPipeline issues a native pipeline command for setting, which must
// already be an index (not a UI value — see Client.ApplyPipelineValue
// for the value-to-index translation step). Returns BadSetting for an
// unrecognized setting name.
func (c *NativeClient) SetPipeline(ctx context.Context, setting string, index int) error {
	cmd, ok := pipelineCommands[setting]
	if !ok {
		return models.ErrBadReq("unknown pipeline setting: " + setting)
	}
	_, err := c.command(ctx, fmt.Sprintf("%s(%d)", cmd, index))
	return err
}

// SetVolume issues the native volume command with a raw dB value.
func (c *NativeClient) SetVolume(ctx context.Context, db float64) error {
	_, err := c.command(ctx, fmt.Sprintf("setVolume(%.2f)", db))
	return err
}

// SetMatrixProfile selects a native matrix profile by name.
func (c *NativeClient) SetMatrixProfile(ctx context.Context, name string) error {
	_, err := c.command(ctx, fmt.Sprintf("setProfile(%s)", name))
	return err
}

// ProductInfo is the product/version pair HQPlayer reports natively.
type ProductInfo struct {
	Product string
	Version string
}

// IsEmbedded reports whether this instance identifies as the embedded
// HQPlayer flavor — profile switching is only offered for that flavor
// (spec.md §4.3).
func (p ProductInfo) IsEmbedded() bool {
	return strings.Contains(strings.ToLower(p.Product), "embedded")
}

// GetProductInfo queries product name and version over the native
// protocol.
func (c *NativeClient) GetProductInfo(ctx context.Context) (ProductInfo, error) {
	resp, err := c.command(ctx, "getProductInfo()")
	if err != nil {
		return ProductInfo{}, err
	}
	parts := strings.SplitN(resp, ",", 2)
	info := ProductInfo{Product: strings.TrimSpace(parts[0])}
	if len(parts) == 2 {
		info.Version = strings.TrimSpace(parts[1])
	}
	return info, nil
}

// GetPipeline queries the live pipeline state natively, used to build
// the HQPPipeline snapshot exposed via hqplink.
func (c *NativeClient) GetPipeline(ctx context.Context) (models.HQPPipeline, error) {
	resp, err := c.command(ctx, "getPipeline()")
	if err != nil {
		return models.HQPPipeline{}, err
	}
	return parsePipelineResponse(resp), nil
}

// parsePipelineResponse parses a "key=value,key=value" native
// response line into a pipeline snapshot. Unknown keys are ignored.
func parsePipelineResponse(resp string) models.HQPPipeline {
	var p models.HQPPipeline
	for _, field := range strings.Split(resp, ",") {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		switch key {
		case "mode":
			p.Mode = val
		case "samplerate":
			p.SampleRate = val
		case "filter1x":
			p.Filter1x = val
		case "filterNx":
			p.FilterNx = val
		case "shaper":
			p.Shaper = val
		case "dither":
			p.Dither = val
		case "profile":
			p.Profile = val
		case "volume":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				p.Volume = f
			}
		}
	}
	return p
}

package models

// HQPPipeline is a live snapshot of an HQPlayer instance's DSP
// pipeline, attached to a primary zone's now-playing payload as
// backend_data.hqp by the layer above the bus (spec.md §4.4).
type HQPPipeline struct {
	Instance   string  `json:"instance"`
	Mode       string  `json:"mode,omitempty"`
	SampleRate string  `json:"samplerate,omitempty"`
	Filter1x   string  `json:"filter1x,omitempty"`
	FilterNx   string  `json:"filterNx,omitempty"`
	Shaper     string  `json:"shaper,omitempty"`
	Dither     string  `json:"dither,omitempty"`
	Volume     float64 `json:"volume,omitempty"`
	Profile    string  `json:"profile,omitempty"`
}

// HQPInstanceConfig is one configured HQPlayer instance, persisted in
// hqp-config.json (spec.md §6, array-or-legacy-single-object form).
type HQPInstanceConfig struct {
	Name       string `json:"name"`
	Host       string `json:"host"`
	WebPort    int    `json:"port"`
	NativePort int    `json:"native_port,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
}

// DefaultNativePort is HQPlayer's documented native protocol port.
const DefaultNativePort = 4321

// IsConfigured reports whether enough information is present to reach
// the instance at all (spec.md §4.3: "is_configured() needs only host").
func (c HQPInstanceConfig) IsConfigured() bool { return c.Host != "" }

// HasWebCredentials reports whether profile switching (which requires
// HTTP Digest auth) is possible for this instance.
func (c HQPInstanceConfig) HasWebCredentials() bool {
	return c.Username != "" && c.Password != ""
}

package models

import "time"

// KnobConfig is the fixed-schema configuration pushed to a knob device
// (spec.md §3).
type KnobConfig struct {
	Rotations     []string          `json:"rotations,omitempty"`
	PowerTimers   map[string]int    `json:"power_timers,omitempty"` // power-state name -> seconds
	WifiSSID      string            `json:"wifi_ssid,omitempty"`
	CPUFast       bool              `json:"cpu_fast,omitempty"`
	PollIntervalS int               `json:"poll_interval_s,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// KnobConfigPatch mirrors KnobConfig with pointer-typed scalar fields,
// so a PUT /config/{knob_id} body that only touches e.g. "rotations"
// can be told apart from one that explicitly zeroes "cpu_fast" or
// "poll_interval_s" (spec.md §4.6 "merges allowed fields").
type KnobConfigPatch struct {
	Rotations     []string          `json:"rotations,omitempty"`
	PowerTimers   map[string]int    `json:"power_timers,omitempty"`
	WifiSSID      *string           `json:"wifi_ssid,omitempty"`
	CPUFast       *bool             `json:"cpu_fast,omitempty"`
	PollIntervalS *int              `json:"poll_interval_s,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Merge applies patch onto c, field by field: a field absent from the
// patch (nil pointer, nil slice/map) leaves c's existing value alone,
// so two non-overlapping patches applied in either order converge to
// the same final config (spec.md §8 round-trip law).
func (c KnobConfig) Merge(patch KnobConfigPatch) KnobConfig {
	next := c
	if patch.Rotations != nil {
		next.Rotations = patch.Rotations
	}
	if patch.PowerTimers != nil {
		next.PowerTimers = patch.PowerTimers
	}
	if patch.WifiSSID != nil {
		next.WifiSSID = *patch.WifiSSID
	}
	if patch.CPUFast != nil {
		next.CPUFast = *patch.CPUFast
	}
	if patch.PollIntervalS != nil {
		next.PollIntervalS = *patch.PollIntervalS
	}
	if patch.Extra != nil {
		next.Extra = patch.Extra
	}
	return next
}

// KnobStatus is the last-reported runtime status of a knob device.
type KnobStatus struct {
	BatteryLevel    *int    `json:"battery_level,omitempty"`
	BatteryCharging *bool   `json:"battery_charging,omitempty"`
	ZoneID          string  `json:"zone_id,omitempty"`
	IP              string  `json:"ip,omitempty"`
}

// KnobRecord is the persisted per-device record (spec.md §3/§4.6).
type KnobRecord struct {
	KnobID     string     `json:"knob_id"`
	Name       string     `json:"name"`
	Version    string     `json:"version,omitempty"`
	Config     KnobConfig `json:"config"`
	ConfigSHA  string     `json:"config_sha"`
	LastSeen   time.Time  `json:"last_seen"`
	Status     KnobStatus `json:"status"`
}

// KnobSummary is the subset of a KnobRecord exposed by the knob list
// endpoint (spec.md §6 /api/knobs).
type KnobSummary struct {
	KnobID    string     `json:"knob_id"`
	Name      string     `json:"name"`
	ConfigSHA string     `json:"config_sha"`
	LastSeen  time.Time  `json:"last_seen"`
	Status    KnobStatus `json:"status"`
}

// Summary projects a KnobRecord down to its KnobSummary.
func (k KnobRecord) Summary() KnobSummary {
	return KnobSummary{
		KnobID:    k.KnobID,
		Name:      k.Name,
		ConfigSHA: k.ConfigSHA,
		LastSeen:  k.LastSeen,
		Status:    k.Status,
	}
}

// DeepCopy returns an independent copy of the record.
func (k KnobRecord) DeepCopy() KnobRecord {
	next := k
	if k.Config.Rotations != nil {
		next.Config.Rotations = append([]string(nil), k.Config.Rotations...)
	}
	if k.Config.PowerTimers != nil {
		next.Config.PowerTimers = make(map[string]int, len(k.Config.PowerTimers))
		for kk, vv := range k.Config.PowerTimers {
			next.Config.PowerTimers[kk] = vv
		}
	}
	if k.Config.Extra != nil {
		next.Config.Extra = make(map[string]string, len(k.Config.Extra))
		for kk, vv := range k.Config.Extra {
			next.Config.Extra[kk] = vv
		}
	}
	if k.Status.BatteryLevel != nil {
		v := *k.Status.BatteryLevel
		next.Status.BatteryLevel = &v
	}
	if k.Status.BatteryCharging != nil {
		v := *k.Status.BatteryCharging
		next.Status.BatteryCharging = &v
	}
	return next
}

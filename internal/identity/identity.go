// Package identity resolves a knob device's identity and self-reported
// status off an inbound HTTP request, per the header/query/body
// fallback order the wire contract declares (spec.md §6).
package identity

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Knob is a request's resolved knob identity.
type Knob struct {
	ID      string
	Version string
}

// FromRequest resolves a knob's id and version from, in order: the
// X-Knob-Id/X-Device-Id header, the knob_id query parameter, or a
// caller-supplied body value (for POST/PUT bodies already decoded
// elsewhere — this package does not read the body itself). Version is
// read only from the X-Knob-Version/X-Device-Version header.
func FromRequest(r *http.Request, bodyKnobID string) Knob {
	id := firstNonEmpty(
		r.Header.Get("X-Knob-Id"),
		r.Header.Get("X-Device-Id"),
		r.URL.Query().Get("knob_id"),
		bodyKnobID,
	)
	version := firstNonEmpty(
		r.Header.Get("X-Knob-Version"),
		r.Header.Get("X-Device-Version"),
	)
	return Knob{ID: strings.TrimSpace(id), Version: strings.TrimSpace(version)}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Status is a knob's self-reported runtime status parsed off query
// parameters on /now_playing (spec.md §6): battery_level (0-100
// integer) and battery_charging (1/0/true/false).
type Status struct {
	BatteryLevel    *int
	BatteryCharging *bool
}

// StatusFromQuery parses the optional battery_level/battery_charging
// query parameters. Malformed values are ignored, not rejected — a
// knob's status reporting should never break its now-playing poll.
func StatusFromQuery(values url.Values) Status {
	var st Status
	if raw := values.Get("battery_level"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 && v <= 100 {
			st.BatteryLevel = &v
		}
	}
	if raw := values.Get("battery_charging"); raw != "" {
		if v, ok := parseBool(raw); ok {
			st.BatteryCharging = &v
		}
	}
	return st
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return true, true
	case "0", "false":
		return false, true
	default:
		return false, false
	}
}

package identity_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/open-horizon-labs/hifi-bridge/internal/identity"
)

func TestFromRequestPrefersHeaderOverQuery(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/now_playing?knob_id=from-query", nil)
	r.Header.Set("X-Knob-Id", "from-header")
	got := identity.FromRequest(r, "")
	if got.ID != "from-header" {
		t.Fatalf("expected header to win, got %q", got.ID)
	}
}

func TestFromRequestFallsBackToQueryThenBody(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/now_playing?knob_id=from-query", nil)
	got := identity.FromRequest(r, "")
	if got.ID != "from-query" {
		t.Fatalf("expected query fallback, got %q", got.ID)
	}

	r2, _ := http.NewRequest(http.MethodGet, "/now_playing", nil)
	got2 := identity.FromRequest(r2, "from-body")
	if got2.ID != "from-body" {
		t.Fatalf("expected body fallback, got %q", got2.ID)
	}
}

func TestFromRequestAcceptsXDeviceAliases(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/now_playing", nil)
	r.Header.Set("X-Device-Id", "dev-1")
	r.Header.Set("X-Device-Version", "2.0")
	got := identity.FromRequest(r, "")
	if got.ID != "dev-1" || got.Version != "2.0" {
		t.Fatalf("unexpected knob identity: %+v", got)
	}
}

func TestStatusFromQueryParsesBatteryFields(t *testing.T) {
	values := url.Values{"battery_level": {"42"}, "battery_charging": {"true"}}
	st := identity.StatusFromQuery(values)
	if st.BatteryLevel == nil || *st.BatteryLevel != 42 {
		t.Fatalf("unexpected battery level: %+v", st.BatteryLevel)
	}
	if st.BatteryCharging == nil || !*st.BatteryCharging {
		t.Fatalf("unexpected battery charging: %+v", st.BatteryCharging)
	}
}

func TestStatusFromQueryIgnoresOutOfRangeOrMalformed(t *testing.T) {
	values := url.Values{"battery_level": {"150"}, "battery_charging": {"maybe"}}
	st := identity.StatusFromQuery(values)
	if st.BatteryLevel != nil {
		t.Fatalf("expected out-of-range battery level ignored, got %v", *st.BatteryLevel)
	}
	if st.BatteryCharging != nil {
		t.Fatalf("expected malformed battery_charging ignored, got %v", *st.BatteryCharging)
	}
}

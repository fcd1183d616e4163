package lms_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/open-horizon-labs/hifi-bridge/internal/adapters/lms"
)

// fakeLMSServer emulates enough of the LMS JSON-RPC surface for the
// adapter's poll loop and Control dispatch.
func fakeLMSServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Params []interface{} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Params) < 2 {
			t.Fatalf("unexpected params: %+v", req.Params)
		}
		cmds, _ := req.Params[1].([]interface{})
		first, _ := cmds[0].(string)

		w.Header().Set("Content-Type", "application/json")
		switch first {
		case "serverstatus":
			w.Write([]byte(`{"result":{"players_loop":[{"playerid":"aa:bb:cc:dd:ee:ff","name":"Kitchen"}]}}`))
		case "status":
			w.Write([]byte(`{"result":{"mode":"play","mixer volume":55,"playlist_loop":[{"title":"Song","artist":"Artist","album":"Album"}]}}`))
		default:
			w.Write([]byte(`{"result":{}}`))
		}
	}))
}

func parseHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u := strings.TrimPrefix(rawURL, "http://")
	parts := strings.SplitN(u, ":", 2)
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		t.Fatal(err)
	}
	return parts[0], port
}

func TestAdapterDiscoversPlayerAsZone(t *testing.T) {
	srv := fakeLMSServer(t)
	defer srv.Close()
	host, port := parseHostPort(t, srv.URL)

	changed := make(chan struct{}, 4)
	a := lms.New(lms.Config{Host: host, Port: port, PollInterval: 20 * time.Millisecond}, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(context.Background())

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for zone discovery")
	}

	zones := a.GetZones()
	if len(zones) != 1 {
		t.Fatalf("expected 1 zone, got %d: %+v", len(zones), zones)
	}
	if zones[0].ZoneID != "lms:aa:bb:cc:dd:ee:ff" {
		t.Fatalf("expected prefixed zone id, got %q", zones[0].ZoneID)
	}
	if zones[0].ZoneName != "Kitchen" {
		t.Fatalf("expected zone name Kitchen, got %q", zones[0].ZoneName)
	}

	deadline := time.Now().Add(time.Second)
	var np = struct{ ok bool }{}
	for time.Now().Before(deadline) {
		if got, ok := a.GetNowPlaying(zones[0].ZoneID); ok && got.Line1 == "Song" {
			np.ok = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !np.ok {
		t.Fatal("expected now-playing metadata to be populated from poll")
	}
}

func TestControlDispatchesJSONRPC(t *testing.T) {
	srv := fakeLMSServer(t)
	defer srv.Close()
	host, port := parseHostPort(t, srv.URL)

	a := lms.New(lms.Config{Host: host, Port: port, PollInterval: time.Hour}, nil)
	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer a.Stop(context.Background())

	if err := a.Control(ctx, "lms:aa:bb:cc:dd:ee:ff", "play", nil); err != nil {
		t.Fatalf("Control(play): %v", err)
	}
	if err := a.Control(ctx, "lms:aa:bb:cc:dd:ee:ff", "vol_abs", 40.0); err != nil {
		t.Fatalf("Control(vol_abs): %v", err)
	}
}

func TestControlUnknownZoneFails(t *testing.T) {
	a := lms.New(lms.Config{Host: "127.0.0.1", Port: 1}, nil)
	err := a.Control(context.Background(), "not-an-lms-zone", "play", nil)
	if err == nil {
		t.Fatal("expected error for malformed zone id")
	}
}

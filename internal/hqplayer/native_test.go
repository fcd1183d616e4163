package hqplayer

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
)

// startFakeNative runs a fake native-protocol server that answers each
// request line with whatever handle returns for it, closing after the
// test ends.
func startFakeNative(t *testing.T, handle func(line string) string) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				r := bufio.NewReader(c)
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					resp := handle(strings.TrimSpace(line))
					if _, err := c.Write([]byte(resp + "\n")); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestNativeClientSetPipelineUnknownSetting(t *testing.T) {
	host, port := startFakeNative(t, func(line string) string { return "ok" })
	c := NewNativeClient(host, port)
	err := c.SetPipeline(context.Background(), "bogus", 1)
	if err == nil {
		t.Fatal("expected error for unknown setting")
	}
}

func TestNativeClientSetPipelineIssuesIndex(t *testing.T) {
	var got string
	host, port := startFakeNative(t, func(line string) string {
		got = line
		return "ok"
	})
	c := NewNativeClient(host, port)
	if err := c.SetPipeline(context.Background(), SettingMode, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "setMode(2)" {
		t.Fatalf("unexpected command sent: %q", got)
	}
}

func TestNativeClientGetPipelineParsesFields(t *testing.T) {
	host, port := startFakeNative(t, func(line string) string {
		return "mode=upsample,samplerate=2,filter1x=apodizing,volume=-6.5"
	})
	c := NewNativeClient(host, port)
	p, err := c.GetPipeline(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Mode != "upsample" || p.SampleRate != "2" || p.Filter1x != "apodizing" || p.Volume != -6.5 {
		t.Fatalf("unexpected pipeline: %+v", p)
	}
}

func TestNativeClientIsEmbedded(t *testing.T) {
	host, port := startFakeNative(t, func(line string) string {
		return "HQPlayer Embedded, 4.2.1"
	})
	c := NewNativeClient(host, port)
	info, err := c.GetProductInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.IsEmbedded() {
		t.Fatalf("expected embedded product, got %+v", info)
	}
}

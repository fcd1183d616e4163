// Package ssdp discovers UPnP/DLNA and OpenHome media renderers on the
// LAN via SSDP M-SEARCH, the discovery half of the protocol whose
// NOTIFY/M-SEARCH header shape is referenced in the example pack's
// packet-capture test fixtures (paskozdilar-packet's dns-ssdp_test.go).
// stdlib net only — no SSDP library exists in the example pack.
package ssdp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const multicastAddr = "239.255.255.250:1900"

// Device is a discovered SSDP device advertisement.
type Device struct {
	Location string // descriptor XML URL
	USN      string
	Server   string
	ST       string
}

// Search sends an M-SEARCH for searchTarget (e.g.
// "urn:schemas-upnp-org:device:MediaRenderer:1") and collects
// responses for the given duration.
func Search(ctx context.Context, searchTarget string, wait time.Duration) ([]Device, error) {
	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := fmt.Sprintf(searchTemplate, multicastAddr, searchTarget, int(wait.Seconds()))
	if _, err := conn.WriteTo([]byte(req), addr); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(wait)
	conn.SetReadDeadline(deadline)

	var found []Device
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return found, nil
		default:
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			break
		}
		dev, err := parseResponse(buf[:n])
		if err == nil {
			found = append(found, dev)
		}
	}
	return found, nil
}

func parseResponse(data []byte) (Device, error) {
	resp, err := http.ReadResponse(bufio.NewReader(strings.NewReader(string(data))), nil)
	if err != nil {
		return Device{}, err
	}
	defer resp.Body.Close()
	return Device{
		Location: resp.Header.Get("Location"),
		USN:      resp.Header.Get("Usn"),
		Server:   resp.Header.Get("Server"),
		ST:       resp.Header.Get("St"),
	}, nil
}

const searchTemplate = "M-SEARCH * HTTP/1.1\r\n" +
	"HOST: %s\r\n" +
	"MAN: \"ssdp:discover\"\r\n" +
	"ST: %s\r\n" +
	"MX: %d\r\n\r\n"

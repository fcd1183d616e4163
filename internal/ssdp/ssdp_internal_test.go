package ssdp

import "testing"

func TestParseResponse(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"LOCATION: http://192.168.1.50:1400/xml/device_description.xml\r\n" +
		"SERVER: Linux UPnP/1.0 Sonos/57.3 (ZPS1)\r\n" +
		"ST: urn:schemas-upnp-org:device:MediaRenderer:1\r\n" +
		"USN: uuid:RINCON_000E58D5A4B401400::urn:schemas-upnp-org:device:MediaRenderer:1\r\n\r\n"

	dev, err := parseResponse([]byte(raw))
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if dev.Location != "http://192.168.1.50:1400/xml/device_description.xml" {
		t.Fatalf("unexpected location: %q", dev.Location)
	}
	if dev.ST != "urn:schemas-upnp-org:device:MediaRenderer:1" {
		t.Fatalf("unexpected st: %q", dev.ST)
	}
	if !containsUUID(dev.USN) {
		t.Fatalf("expected usn to carry a uuid, got %q", dev.USN)
	}
}

func containsUUID(s string) bool {
	return len(s) > 5 && s[:5] == "uuid:"
}

func TestParseResponseRejectsGarbage(t *testing.T) {
	_, err := parseResponse([]byte("not an http response"))
	if err == nil {
		t.Fatal("expected parse error for malformed response")
	}
}

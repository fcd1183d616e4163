package openhome

import "testing"

func TestParseDIDLLiteExtractsFields(t *testing.T) {
	didl := `<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/">
<item id="0" parentID="-1" restricted="1">
<dc:title xmlns:dc="http://purl.org/dc/elements/1.1/">title</dc:title>
<upnp:creator xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/">artist</upnp:creator>
<upnp:album xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/">album</upnp:album>
</item>
</DIDL-Lite>`

	meta := parseDIDLLite(didl)
	if meta.title != "title" || meta.artist != "artist" || meta.album != "album" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestParseDIDLLiteEmptyStringYieldsZeroValue(t *testing.T) {
	meta := parseDIDLLite("")
	if meta != (trackMeta{}) {
		t.Fatalf("expected zero value for empty metadata, got %+v", meta)
	}
}

func TestParseDIDLLiteMalformedYieldsZeroValue(t *testing.T) {
	meta := parseDIDLLite("not xml at all <<<")
	if meta != (trackMeta{}) {
		t.Fatalf("expected zero value for malformed metadata, got %+v", meta)
	}
}

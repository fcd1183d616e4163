// Package zoneid implements the single canonical zone identifier
// namespace shared by the bus and every adapter: "{prefix}:{native-id}"
// (spec.md §3).
package zoneid

import "strings"

// Join builds a bus-facing zone id from an adapter's prefix and its
// own native id.
func Join(prefix, nativeID string) string {
	return prefix + ":" + nativeID
}

// Split divides a zone id into its prefix and native id. ok is false
// if zoneID contains no ':'.
func Split(zoneID string) (prefix, nativeID string, ok bool) {
	i := strings.IndexByte(zoneID, ':')
	if i < 0 {
		return "", "", false
	}
	return zoneID[:i], zoneID[i+1:], true
}

// Prefix returns the adapter-identifying portion of a zone id, or ""
// if zoneID contains no ':'.
func Prefix(zoneID string) string {
	prefix, _, ok := Split(zoneID)
	if !ok {
		return ""
	}
	return prefix
}

// HasPrefix reports whether zoneID belongs to the given adapter prefix.
func HasPrefix(zoneID, prefix string) bool {
	return strings.HasPrefix(zoneID, prefix+":")
}

package models

import "time"

// ActivityKind names the three operations the bus routes and records.
type ActivityKind string

const (
	KindGetNowPlaying ActivityKind = "getNowPlaying"
	KindControl       ActivityKind = "control"
	KindGetImage      ActivityKind = "getImage"
)

// ActivityEntry is one record in the bus's bounded activity log
// (spec.md §3/§4.7).
type ActivityEntry struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Kind      ActivityKind `json:"kind"`
	ZoneID    string       `json:"zone_id,omitempty"`
	Prefix    string       `json:"prefix,omitempty"`
	Action    string       `json:"action,omitempty"`
	Value     interface{}  `json:"value,omitempty"`
	HasData   bool         `json:"has_data,omitempty"`
	Error     string       `json:"error,omitempty"`
	Sender    string       `json:"sender,omitempty"`
}

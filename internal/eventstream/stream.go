// Package eventstream provides a simple, non-blocking publish-subscribe
// stream of activity entries for external surfaces (SSE, MQTT bridge,
// MCP server) to watch, generalized from the teacher's per-state event
// bus to per-entry notification (spec.md §4.1 subscribe, §9).
package eventstream

import (
	"sync"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

const subBufferSize = 16

// Stream is a non-blocking publish-subscribe event stream. Subscribers
// slow to consume events have events dropped rather than blocking
// publishers — spec.md §9 notes this delivery guarantee is
// best-effort by design, not an oversight.
type Stream struct {
	mu   sync.Mutex
	subs map[string]chan models.ActivityEntry
}

// New creates a new event stream.
func New() *Stream {
	return &Stream{subs: make(map[string]chan models.ActivityEntry)}
}

// Subscribe creates a new subscription with the given id. Call
// Unsubscribe when done to release it.
func (s *Stream) Subscribe(id string) <-chan models.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan models.ActivityEntry, subBufferSize)
	s.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Stream) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Publish fans an entry out to all subscribers. Drops on a full
// channel instead of blocking.
func (s *Stream) Publish(entry models.ActivityEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (s *Stream) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

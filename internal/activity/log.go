// Package activity implements the bus's bounded, time-windowed
// activity log (spec.md §3, §4.7). Pruning happens on every insert and
// read so the log never grows past the retention window; a prune that
// drops entries copies the remaining ones into a new slice.
package activity

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-horizon-labs/hifi-bridge/internal/models"
)

// Retention is the fixed window entries are kept for (spec.md §3).
const Retention = 5 * time.Minute

// Log is a mutex-guarded, insertion-ordered bounded sequence of
// activity entries. Guarded separately from the bus's zone cache so
// inserts never block on cache operations (spec.md §5).
type Log struct {
	mu      sync.Mutex
	entries []models.ActivityEntry
	now     func() time.Time // overridable for tests
}

// New creates an empty activity log.
func New() *Log {
	return &Log{now: time.Now}
}

// Append records a new activity entry, assigning it an id and
// timestamp, then prunes anything older than Retention.
func (l *Log) Append(entry models.ActivityEntry) models.ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.Timestamp = l.now()
	l.entries = append(l.entries, entry)
	l.pruneLocked()
	return entry
}

// pruneLocked drops entries older than now-Retention. Caller must hold mu.
func (l *Log) pruneLocked() {
	cutoff := l.now().Add(-Retention)
	i := 0
	for i < len(l.entries) && l.entries[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.entries = append([]models.ActivityEntry(nil), l.entries[i:]...)
	}
}

// Snapshot returns the most recent entries, newest last, capped at
// limit (spec.md §4.7: "last N≤100 entries"). limit<=0 returns
// everything currently retained.
func (l *Log) Snapshot(limit int) []models.ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()

	if limit <= 0 || limit >= len(l.entries) {
		return append([]models.ActivityEntry(nil), l.entries...)
	}
	start := len(l.entries) - limit
	return append([]models.ActivityEntry(nil), l.entries[start:]...)
}

// Len returns the number of entries currently retained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	return len(l.entries)
}

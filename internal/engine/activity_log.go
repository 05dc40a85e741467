package engine

import (
	"time"

	"github.com/google/uuid"
)

// Activity entry status values.
const (
	ActivityNormal  = "normal"
	ActivityAnomaly = "anomaly"
)

// ActivityEntry is one human-readable operational event.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Status    string    `json:"status"`
}

// ActivityLog is a bounded, newest-first record of operational events.
// Entries past the capacity are evicted from the tail.
type ActivityLog struct {
	capacity int
	entries  []ActivityEntry
}

// NewActivityLog creates a log keeping at most capacity entries.
func NewActivityLog(capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = 10
	}
	return &ActivityLog{capacity: capacity}
}

// Append inserts an entry at the head, evicting the oldest if full.
func (l *ActivityLog) Append(now time.Time, text, status string) ActivityEntry {
	e := ActivityEntry{
		ID:        uuid.NewString(),
		Timestamp: now,
		Text:      text,
		Status:    status,
	}
	l.entries = append([]ActivityEntry{e}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
	return e
}

// Entries returns a copy of the log, newest first.
func (l *ActivityLog) Entries() []ActivityEntry {
	out := make([]ActivityEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of retained entries.
func (l *ActivityLog) Len() int {
	return len(l.entries)
}

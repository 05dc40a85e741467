package engine

import (
	"fmt"
	"testing"
	"time"
)

func TestActivityLogBounded(t *testing.T) {
	l := NewActivityLog(10)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 13; i++ {
		l.Append(base.Add(time.Duration(i)*time.Second), fmt.Sprintf("event %d", i), ActivityNormal)
	}

	entries := l.Entries()
	if len(entries) != 10 {
		t.Fatalf("expected 10 retained entries, got %d", len(entries))
	}
	// Newest first: head is event 12, tail is event 3.
	if entries[0].Text != "event 12" {
		t.Errorf("head = %q, want event 12", entries[0].Text)
	}
	if entries[9].Text != "event 3" {
		t.Errorf("tail = %q, want event 3", entries[9].Text)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.After(entries[i-1].Timestamp) {
			t.Fatalf("entries not in reverse-chronological order at %d", i)
		}
	}
}

func TestActivityLogDefaultCapacity(t *testing.T) {
	l := NewActivityLog(0)
	for i := 0; i < 25; i++ {
		l.Append(time.Now(), "x", ActivityNormal)
	}
	if l.Len() != 10 {
		t.Errorf("expected default capacity 10, got %d retained", l.Len())
	}
}

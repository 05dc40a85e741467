package sim

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"outletops-sim/internal/telemetry"
)

func TestFileWriterWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	telePath := filepath.Join(dir, "telemetry.jsonl")
	eventPath := filepath.Join(dir, "events.jsonl")

	fw, err := NewFileWriter(telePath, eventPath)
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}

	rows := []telemetry.TelemetryRow{
		{OutletID: "o1", AssetID: "a1", Kind: telemetry.KindFuel, LevelPercent: 50, Timestamp: time.Now().UTC()},
		{OutletID: "o1", AssetID: "a2", Kind: telemetry.KindPower, LevelPercent: 60, Timestamp: time.Now().UTC()},
	}
	if err := fw.WriteBatch(rows); err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}
	ev := telemetry.EventRow{OutletID: "o1", AssetID: "a1", EventType: telemetry.EventAnomaly, Message: "drop", Timestamp: time.Now().UTC()}
	if err := fw.WriteEvent(ev); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(telePath)
	if err != nil {
		t.Fatalf("open telemetry log: %v", err)
	}
	defer f.Close()

	var count int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var row telemetry.TelemetryRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", count, err)
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 telemetry lines, got %d", count)
	}

	evData, err := os.ReadFile(eventPath)
	if err != nil {
		t.Fatalf("read event log: %v", err)
	}
	var got telemetry.EventRow
	if err := json.Unmarshal(evData, &got); err != nil {
		t.Fatalf("event line not valid JSON: %v", err)
	}
	if got.EventType != telemetry.EventAnomaly {
		t.Errorf("event type = %s, want %s", got.EventType, telemetry.EventAnomaly)
	}
}

func TestFileWriterEventsOptional(t *testing.T) {
	fw, err := NewFileWriter(filepath.Join(t.TempDir(), "t.jsonl"), "")
	if err != nil {
		t.Fatalf("NewFileWriter failed: %v", err)
	}
	defer fw.Close()
	if err := fw.WriteEvent(telemetry.EventRow{}); err != nil {
		t.Errorf("WriteEvent with no event file should be a no-op, got %v", err)
	}
}

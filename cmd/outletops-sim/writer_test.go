package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"outletops-sim/internal/sim"
	"outletops-sim/internal/telemetry"
)

func TestNewWritersPrintOnly(t *testing.T) {
	tw, ew, cleanup, err := newWriters(true, "", false)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	cleanup()
	if _, ok := tw.(*sim.StdoutWriter); !ok {
		t.Fatalf("expected *sim.StdoutWriter, got %T", tw)
	}
	if _, ok := ew.(*sim.StdoutWriter); !ok {
		t.Fatalf("expected *sim.StdoutWriter, got %T", ew)
	}
}

func TestNewWritersGreptimeFallback(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	tw, _, cleanup, err := newWriters(false, "", false)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	cleanup()
	if _, ok := tw.(*sim.StdoutWriter); !ok {
		t.Fatalf("expected *sim.StdoutWriter, got %T", tw)
	}
}

func TestNewWritersLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telemetry.log")
	tw, ew, cleanup, err := newWriters(true, path, false)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	defer cleanup()
	if _, ok := tw.(*sim.MultiWriter); !ok {
		t.Fatalf("expected *sim.MultiWriter, got %T", tw)
	}
	row := telemetry.TelemetryRow{OutletID: "o1", AssetID: "a1", Timestamp: time.Now()}
	if err := tw.Write(row); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	ev := telemetry.EventRow{OutletID: "o1", AssetID: "a1", EventType: telemetry.EventAnomaly, Timestamp: time.Now()}
	if err := ew.WriteEvent(ev); err != nil {
		t.Fatalf("write event failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected log file to be non-empty")
	}
	eventInfo, err := os.Stat(path + ".events")
	if err != nil {
		t.Fatalf("stat events failed: %v", err)
	}
	if eventInfo.Size() == 0 {
		t.Fatalf("expected event file to be non-empty")
	}
}

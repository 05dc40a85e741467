package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"outletops-sim/internal/config"
	"outletops-sim/internal/telemetry"
)

// MockWriter collects telemetry rows for validation.
type MockWriter struct {
	Rows []telemetry.TelemetryRow
}

func (w *MockWriter) Write(row telemetry.TelemetryRow) error {
	w.Rows = append(w.Rows, row)
	return nil
}

type MockEventWriter struct {
	Events []telemetry.EventRow
}

func (w *MockEventWriter) WriteEvent(ev telemetry.EventRow) error {
	w.Events = append(w.Events, ev)
	return nil
}

func f64(v float64) *float64 { return &v }

func testConfig() *config.SimulationConfig {
	return &config.SimulationConfig{
		Outlets: []config.Outlet{
			{
				ID:   "outlet-x",
				Name: "Test Outlet",
				Assets: []config.Asset{
					{ID: "genset-1", Kind: "fuel", CapacityLiters: 800, ConsumptionRateLPH: f64(5)},
					{ID: "feed-1", Kind: "power", MaxLoadKW: 100},
				},
			},
		},
	}
}

func TestSimulator_StepGeneratesTelemetry(t *testing.T) {
	writer := &MockWriter{}
	ew := &MockEventWriter{}
	s := NewSimulator(testConfig(), writer, ew, 0)
	s.StartAll()

	ctx := context.Background()
	for _, key := range s.order {
		s.step(ctx, s.engines[key])
	}

	if len(writer.Rows) != 2 {
		t.Fatalf("expected telemetry for 2 assets, got %d", len(writer.Rows))
	}
	for _, row := range writer.Rows {
		if row.OutletID == "" || row.AssetID == "" {
			t.Errorf("telemetry row has missing IDs: %+v", row)
		}
		if !row.Running {
			t.Errorf("asset %s should be running after StartAll", row.AssetID)
		}
	}
}

func TestSimulator_CommandRouting(t *testing.T) {
	s := NewSimulator(testConfig(), &MockWriter{}, nil, 0)

	e, err := s.Engine("outlet-x", "genset-1")
	if err != nil {
		t.Fatalf("expected to find asset: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	snap, err := s.Snapshot("outlet-x", "genset-1")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if !snap.Running {
		t.Error("expected running after start")
	}

	if _, err := s.Engine("outlet-x", "nope"); !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("expected ErrUnknownAsset, got %v", err)
	}
}

func TestSimulator_Health(t *testing.T) {
	s := NewSimulator(testConfig(), &MockWriter{}, nil, 0)
	s.StartAll()

	health := s.Health()
	if len(health) != 1 {
		t.Fatalf("expected 1 outlet, got %d", len(health))
	}
	if health[0].Total != 2 || health[0].Running != 2 {
		t.Errorf("unexpected health: %+v", health[0])
	}
}

func TestSimulator_RunStopsOnCancel(t *testing.T) {
	writer := &MockWriter{}
	s := NewSimulator(testConfig(), writer, nil, 10*time.Millisecond)
	s.StartAll()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("simulator did not stop after cancellation")
	}

	// Run returning means the tick loops have drained; it must be safe to
	// close the writer now without racing a final write.
	written := len(writer.Rows)
	time.Sleep(50 * time.Millisecond)
	if got := len(writer.Rows); got != written {
		t.Fatalf("writer received %d rows after Run returned (had %d)", got-written, written)
	}
}

func TestSimulator_Snapshots(t *testing.T) {
	s := NewSimulator(testConfig(), nil, nil, 0)
	snaps := s.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].AssetID != "genset-1" || snaps[1].AssetID != "feed-1" {
		t.Errorf("snapshots not in config order: %s, %s", snaps[0].AssetID, snaps[1].AssetID)
	}
}

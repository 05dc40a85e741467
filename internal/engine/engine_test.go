package engine

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"outletops-sim/internal/telemetry"
)

func testClock(start time.Time) (func() time.Time, func(time.Duration)) {
	cur := start
	return func() time.Time { return cur }, func(d time.Duration) { cur = cur.Add(d) }
}

func newFuelEngine(t *testing.T, p AssetProfile, seed int64) (*Engine, func(time.Duration)) {
	t.Helper()
	now, advance := testClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	p.OutletID = "outlet-1"
	p.AssetID = "genset-1"
	e := New(p, WithRand(rand.New(rand.NewSource(seed))), WithClock(now))
	return e, advance
}

func TestTickDeterministicConsumption(t *testing.T) {
	e, _ := newFuelEngine(t, AssetProfile{
		CapacityLiters:     800,
		ConsumptionRateLPH: f64(5),
		ConsumptionMult:    1,
		Tick:               5 * time.Second,
		InitialLevelPct:    f64(50),
	}, 1)
	e.SetDetection(false)
	if err := e.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	row, events := e.Tick()
	if len(events) != 0 {
		t.Fatalf("expected no events with detection off, got %d", len(events))
	}

	consumed := 5.0 * 5 / 3600 // liters this tick
	wantLevel := 50 - consumed/800*100
	if math.Abs(row.LevelPercent-wantLevel) > 1e-9 {
		t.Errorf("level after one tick = %v, want %v", row.LevelPercent, wantLevel)
	}
	wantRuntime := 5.0 / 3600
	if math.Abs(row.RuntimeHours-wantRuntime) > 1e-9 {
		t.Errorf("runtime after one tick = %v, want %v", row.RuntimeHours, wantRuntime)
	}
	if math.Abs(row.ConsumedToday-consumed) > 1e-9 {
		t.Errorf("consumed today = %v, want %v", row.ConsumedToday, consumed)
	}
}

func TestLevelStaysClamped(t *testing.T) {
	e, _ := newFuelEngine(t, AssetProfile{
		CapacityLiters:     10,
		ConsumptionRateLPH: f64(720), // 1 liter per 5s tick, 10% of capacity
		Tick:               5 * time.Second,
		InitialLevelPct:    f64(30),
		AnomalyProbability: f64(0.9),
	}, 42)
	if err := e.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		row, _ := e.Tick()
		if row.LevelPercent < 0 || row.LevelPercent > 100 {
			t.Fatalf("tick %d: level %v out of [0,100]", i, row.LevelPercent)
		}
		// Restart after the inevitable critical shutdown, refueling first.
		if !row.Running {
			e.Refuel()
			if err := e.Start(); err != nil {
				t.Fatalf("restart after refuel failed: %v", err)
			}
		}
	}
}

func TestStopIdempotent(t *testing.T) {
	e, _ := newFuelEngine(t, AssetProfile{}, 1)
	if err := e.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	e.Stop()
	first := e.Snapshot()
	e.Stop()
	second := e.Snapshot()

	if first.Running || second.Running {
		t.Error("expected engine stopped")
	}
	if len(first.Activity) != len(second.Activity) {
		t.Errorf("second stop appended activity: %d -> %d entries", len(first.Activity), len(second.Activity))
	}
	if first.LevelPercent != second.LevelPercent {
		t.Errorf("second stop mutated level: %v -> %v", first.LevelPercent, second.LevelPercent)
	}
}

func TestStartBelowCriticalRejected(t *testing.T) {
	e, _ := newFuelEngine(t, AssetProfile{InitialLevelPct: f64(5), CriticalPct: 10}, 1)
	err := e.Start()
	if !errors.Is(err, ErrInsufficientFuel) {
		t.Fatalf("expected ErrInsufficientFuel, got %v", err)
	}
	snap := e.Snapshot()
	if snap.Running {
		t.Error("rejected start must not set running")
	}
	if snap.LevelPercent != 5 {
		t.Errorf("rejected start mutated level to %v", snap.LevelPercent)
	}
}

func TestCriticalShutdownFiresExactlyOnce(t *testing.T) {
	// 2% of capacity consumed per tick: 11% drops to 9% in one tick.
	e, _ := newFuelEngine(t, AssetProfile{
		CapacityLiters:     100,
		ConsumptionRateLPH: f64(1440),
		Tick:               5 * time.Second,
		InitialLevelPct:    f64(11),
		CriticalPct:        10,
	}, 1)
	e.SetDetection(false)
	if err := e.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	row, events := e.Tick()
	if row.Running {
		t.Error("expected automatic shutdown")
	}
	var shutdowns int
	for _, ev := range events {
		if ev.EventType == telemetry.EventShutdown {
			shutdowns++
		}
	}
	if shutdowns != 1 {
		t.Fatalf("expected exactly one shutdown event, got %d", shutdowns)
	}
	var anomalyEntries int
	for _, a := range e.Snapshot().Activity {
		if a.Status == ActivityAnomaly {
			anomalyEntries++
		}
	}
	if anomalyEntries != 1 {
		t.Errorf("expected exactly one anomaly activity entry, got %d", anomalyEntries)
	}

	// Further ticks below threshold must not re-fire (edge, not level).
	for i := 0; i < 5; i++ {
		_, evs := e.Tick()
		if len(evs) != 0 {
			t.Fatalf("tick %d after shutdown produced %d events", i, len(evs))
		}
	}
}

func TestRefuelResetsLevel(t *testing.T) {
	e, _ := newFuelEngine(t, AssetProfile{CapacityLiters: 800, InitialLevelPct: f64(40)}, 1)
	delta := e.Refuel()
	if math.Abs(delta-60) > 1e-9 {
		t.Errorf("refuel delta = %v, want 60", delta)
	}
	snap := e.Snapshot()
	if snap.LevelPercent != 100 {
		t.Errorf("level after refuel = %v, want 100", snap.LevelPercent)
	}
	head := snap.Activity[0]
	if head.Status != ActivityNormal {
		t.Errorf("refuel entry status = %s, want normal", head.Status)
	}
	if head.Text == "" {
		t.Error("refuel entry should mention the added amount")
	}
}

func TestAnomalyCountersMonotonicAcrossClear(t *testing.T) {
	e, _ := newFuelEngine(t, AssetProfile{
		InitialLevelPct:    f64(90),
		AnomalyProbability: f64(1), // inject on every tick
	}, 7)
	if err := e.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		e.Tick()
	}
	snap := e.Snapshot()
	if snap.Counters.Lifetime != 3 || snap.Counters.Today != 3 || snap.Counters.Week != 3 {
		t.Fatalf("expected counters 3/3/3, got %+v", snap.Counters)
	}
	if len(snap.Anomalies) != 3 {
		t.Fatalf("expected 3 anomaly events, got %d", len(snap.Anomalies))
	}
	if !snap.Anomalies[0].Timestamp.After(snap.Anomalies[2].Timestamp) &&
		!snap.Anomalies[0].Timestamp.Equal(snap.Anomalies[2].Timestamp) {
		t.Error("anomaly history must be newest first")
	}

	e.ClearAnomalies()
	snap = e.Snapshot()
	if len(snap.Anomalies) != 0 {
		t.Errorf("clear left %d anomaly events", len(snap.Anomalies))
	}
	if snap.Counters.Lifetime != 3 {
		t.Errorf("clear reset lifetime counter to %d", snap.Counters.Lifetime)
	}
}

func TestDetectedFlagDebounce(t *testing.T) {
	e, advance := newFuelEngine(t, AssetProfile{
		InitialLevelPct:    f64(90),
		AnomalyProbability: f64(1),
		AnomalyFlagReset:   5 * time.Second,
	}, 3)
	if err := e.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	e.Tick() // injects, flag armed until +5s
	advance(4 * time.Second)
	if !e.Snapshot().AnomalyDetected {
		t.Fatal("flag should still be raised 4s after injection")
	}
	e.Tick() // second injection at +4s pushes the deadline to +9s
	advance(4 * time.Second)
	if !e.Snapshot().AnomalyDetected {
		t.Error("second injection must extend the flag window")
	}
	advance(2 * time.Second)
	if e.Snapshot().AnomalyDetected {
		t.Error("flag should drop after the extended window expires")
	}
}

func TestPowerVariantOverload(t *testing.T) {
	now, _ := testClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	e := New(AssetProfile{
		OutletID:        "outlet-1",
		AssetID:         "feed-1",
		Kind:            telemetry.KindPower,
		MaxLoadKW:       100,
		InitialLevelPct: f64(95),
		Tick:            2 * time.Second,
	}, WithRand(rand.New(rand.NewSource(1))), WithClock(now))
	e.SetDetection(false)
	if err := e.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	row, _ := e.Tick()
	// Load walk stays within +-3 of 95, so well above the 80% boundary.
	if row.Status != telemetry.StatusOverload {
		t.Errorf("status = %s, want overload at ~95%% load", row.Status)
	}
	if row.PowerKW <= 0 {
		t.Errorf("power reading should follow the load, got %v", row.PowerKW)
	}
}

func TestExplicitZeroProfileValuesHonored(t *testing.T) {
	// An operator disabling anomalies (or modeling a zero-draw asset) sets the
	// value to 0 explicitly; only a nil field falls back to the defaults.
	e, _ := newFuelEngine(t, AssetProfile{
		CapacityLiters:     800,
		ConsumptionRateLPH: f64(0),
		AnomalyProbability: f64(0),
		InitialLevelPct:    f64(50),
		Tick:               5 * time.Second,
	}, 11)
	if err := e.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for i := 0; i < 200; i++ {
		row, events := e.Tick()
		if len(events) != 0 {
			t.Fatalf("tick %d: zero probability still injected %d events", i, len(events))
		}
		if row.LevelPercent != 50 {
			t.Fatalf("tick %d: zero consumption rate still drained level to %v", i, row.LevelPercent)
		}
	}
	if got := e.Snapshot().Counters.Lifetime; got != 0 {
		t.Errorf("anomaly counter = %d with injection disabled", got)
	}
}

func TestUnsetProfileValuesGetDefaults(t *testing.T) {
	p := AssetProfile{}.withDefaults()
	if *p.ConsumptionRateLPH != 5 || *p.AnomalyProbability != 0.05 || *p.InitialLevelPct != 100 {
		t.Errorf("defaults = %v/%v/%v, want 5/0.05/100",
			*p.ConsumptionRateLPH, *p.AnomalyProbability, *p.InitialLevelPct)
	}
}

func TestEmittedTimestampsNormalizedToUTC(t *testing.T) {
	zone := time.FixedZone("UTC+9", 9*3600)
	now, _ := testClock(time.Date(2026, 3, 1, 12, 0, 0, 0, zone))
	e := New(AssetProfile{
		OutletID:           "outlet-1",
		AssetID:            "genset-1",
		InitialLevelPct:    f64(90),
		AnomalyProbability: f64(1),
	}, WithRand(rand.New(rand.NewSource(5))), WithClock(now))
	if err := e.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	row, events := e.Tick()
	if row.Timestamp.Location() != time.UTC {
		t.Errorf("row timestamp in %v, want UTC", row.Timestamp.Location())
	}
	if len(events) == 0 {
		t.Fatal("expected an anomaly event with probability 1")
	}
	for _, ev := range events {
		if ev.Timestamp.Location() != time.UTC {
			t.Errorf("event timestamp in %v, want UTC", ev.Timestamp.Location())
		}
	}
	snap := e.Snapshot()
	for _, a := range snap.Activity {
		if a.Timestamp.Location() != time.UTC {
			t.Errorf("activity timestamp in %v, want UTC", a.Timestamp.Location())
		}
	}
	for _, ev := range snap.Anomalies {
		if ev.Timestamp.Location() != time.UTC {
			t.Errorf("anomaly timestamp in %v, want UTC", ev.Timestamp.Location())
		}
	}
}

func TestTickWhileStoppedIsInert(t *testing.T) {
	e, _ := newFuelEngine(t, AssetProfile{InitialLevelPct: f64(50)}, 1)
	before := e.Snapshot()
	row, events := e.Tick()
	if len(events) != 0 {
		t.Fatalf("stopped tick produced events")
	}
	if row.LevelPercent != before.LevelPercent || row.RuntimeHours != before.RuntimeHours {
		t.Error("stopped tick mutated state")
	}
}

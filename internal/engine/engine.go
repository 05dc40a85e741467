// Engine simulating one monitored outlet asset (genset tank or electrical feed)
package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"outletops-sim/internal/telemetry"
)

// Command errors surfaced to the caller as user-facing failures. They never
// mutate state and never abort the tick loop.
var (
	ErrInsufficientFuel = errors.New("insufficient fuel to start")
)

// Nominal set-points for the cosmetic secondary readings.
const (
	nominalVoltage = 230.0
	nominalTempC   = 82.0
	nominalRPM     = 1500.0
	nominalPowerKW = 60.0
)

// AssetProfile carries every constant the engine needs. Zero values are
// replaced with the observed defaults by withDefaults. The pointer fields are
// the ones where zero is a meaningful operator choice (a feed with no draw, a
// site with anomalies disabled, an empty tank): nil means unset, a pointer to
// zero is honored.
type AssetProfile struct {
	OutletID string
	AssetID  string
	Kind     telemetry.AssetKind

	Tick time.Duration

	CapacityLiters     float64  // fuel variant
	MaxLoadKW          float64  // power variant
	ConsumptionRateLPH *float64
	ConsumptionMult    float64

	LowPct           float64
	CriticalPct      float64
	OverloadFraction float64

	AnomalyProbability     *float64
	AnomalyDropMin         int
	AnomalyDropMax         int
	AnomalyFlagReset       time.Duration
	ActivityLogCapacity    int
	AnomalyHistoryCapacity int

	InitialLevelPct *float64
}

func (p AssetProfile) withDefaults() AssetProfile {
	if p.Kind == "" {
		p.Kind = telemetry.KindFuel
	}
	if p.Tick <= 0 {
		if p.Kind == telemetry.KindPower {
			p.Tick = 2 * time.Second
		} else {
			p.Tick = 5 * time.Second
		}
	}
	if p.CapacityLiters <= 0 {
		p.CapacityLiters = 800
	}
	if p.MaxLoadKW <= 0 {
		p.MaxLoadKW = 100
	}
	if p.ConsumptionRateLPH == nil {
		p.ConsumptionRateLPH = f64(5)
	}
	if p.ConsumptionMult <= 0 {
		p.ConsumptionMult = 1
	}
	if p.LowPct <= 0 {
		p.LowPct = 20
	}
	if p.CriticalPct <= 0 {
		p.CriticalPct = 10
	}
	if p.OverloadFraction <= 0 {
		p.OverloadFraction = 0.8
	}
	if p.AnomalyProbability == nil {
		p.AnomalyProbability = f64(0.05)
	}
	if p.AnomalyDropMin <= 0 {
		p.AnomalyDropMin = 3
	}
	if p.AnomalyDropMax < p.AnomalyDropMin {
		p.AnomalyDropMax = 7
	}
	if p.AnomalyFlagReset <= 0 {
		p.AnomalyFlagReset = 5 * time.Second
	}
	if p.ActivityLogCapacity <= 0 {
		p.ActivityLogCapacity = 10
	}
	if p.AnomalyHistoryCapacity < 0 {
		p.AnomalyHistoryCapacity = 0
	}
	if p.InitialLevelPct == nil {
		if p.Kind == telemetry.KindPower {
			p.InitialLevelPct = f64(60)
		} else {
			p.InitialLevelPct = f64(100)
		}
	}
	return p
}

func f64(v float64) *float64 {
	return &v
}

// Option customizes an Engine, mainly so tests can drive it deterministically.
type Option func(*Engine)

// WithRand injects the random source used for perturbation and anomaly draws.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithClock injects the wall-clock source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine owns the simulated state of a single monitored asset. All commands
// and ticks serialize on one mutex, so commands issued between ticks apply
// immediately and are visible to the next tick.
type Engine struct {
	mu      sync.Mutex
	profile AssetProfile
	rng     *rand.Rand
	now     func() time.Time

	running       bool
	levelPct      float64
	runtimeHours  float64
	consumedToday float64
	readings      telemetry.Readings

	detectionOn bool
	flagUntil   time.Time
	anomalies   []AnomalyEvent
	counters    AnomalyCounters
	log         *ActivityLog
}

// New creates an engine in the STOPPED state at the profile's initial level.
func New(profile AssetProfile, opts ...Option) *Engine {
	p := profile.withDefaults()
	e := &Engine{
		profile:     p,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
		levelPct:    *p.InitialLevelPct,
		detectionOn: true,
		log:         NewActivityLog(p.ActivityLogCapacity),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Profile returns the engine's configuration.
func (e *Engine) Profile() AssetProfile {
	return e.profile
}

// clock reads the injected wall clock and normalizes to UTC, so every
// timestamp the engine emits (rows, events, activity entries) carries the
// same location regardless of the host zone.
func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// Start energizes the asset. For the fuel variant it fails without mutating
// state when the tank is below the critical threshold. Starting an already
// running asset is a safe no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	if e.profile.Kind == telemetry.KindFuel && e.levelPct < e.profile.CriticalPct {
		return fmt.Errorf("%w: level %.1f%% below critical %.1f%%",
			ErrInsufficientFuel, e.levelPct, e.profile.CriticalPct)
	}
	e.running = true
	e.readings = telemetry.Readings{
		Voltage:      nominalVoltage,
		TemperatureC: nominalTempC,
		RPM:          nominalRPM,
		PowerKW:      e.nominalPower(),
	}
	e.log.Append(e.clock(), "Started", ActivityNormal)
	return nil
}

// Stop halts the asset and zeroes the derived readings. Idempotent: stopping
// a stopped asset changes nothing and logs nothing.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.stopLocked()
	e.log.Append(e.clock(), "Stopped", ActivityNormal)
}

func (e *Engine) stopLocked() {
	e.running = false
	e.readings.PowerKW = 0
	e.readings.RPM = 0
}

// Refuel resets the level to full (fuel) or the nominal load (power) and logs
// the amount added. Deliberately allowed while running, matching the observed
// dashboard behavior.
func (e *Engine) Refuel() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var target float64
	switch e.profile.Kind {
	case telemetry.KindPower:
		target = *e.profile.InitialLevelPct
	default:
		target = 100
	}
	delta := target - e.levelPct
	e.levelPct = target
	if e.profile.Kind == telemetry.KindFuel {
		liters := delta / 100 * e.profile.CapacityLiters
		e.log.Append(e.clock(), fmt.Sprintf("Refueled +%.1f L (+%.1f%%)", liters, delta), ActivityNormal)
	} else {
		e.log.Append(e.clock(), fmt.Sprintf("Load level reset to %.1f%%", target), ActivityNormal)
	}
	return delta
}

// SetDetection flips anomaly injection; takes effect on the next tick.
func (e *Engine) SetDetection(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detectionOn == enabled {
		return
	}
	e.detectionOn = enabled
	if enabled {
		e.log.Append(e.clock(), "Anomaly detection enabled", ActivityNormal)
	} else {
		e.log.Append(e.clock(), "Anomaly detection disabled", ActivityNormal)
	}
}

// ClearAnomalies empties the anomaly history. Counters and the activity log
// are untouched.
func (e *Engine) ClearAnomalies() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.anomalies = nil
}

// Tick advances the simulation by one period and returns the telemetry row
// plus any events (anomaly, critical shutdown) produced during the tick.
func (e *Engine) Tick() (telemetry.TelemetryRow, []telemetry.EventRow) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	var events []telemetry.EventRow

	if e.running {
		prev := e.levelPct
		dt := e.profile.Tick.Seconds()
		e.runtimeHours += dt / 3600

		switch e.profile.Kind {
		case telemetry.KindPower:
			e.stepLoad(dt)
		default:
			e.stepFuel(dt)
		}
		e.perturbReadings()

		if e.detectionOn && e.rng.Float64() < *e.profile.AnomalyProbability {
			events = append(events, e.injectAnomaly(now))
		}

		// Edge-triggered: compare against the level at tick entry so one
		// crossing fires exactly once, whether caused by consumption or by
		// an anomaly drop in the same tick.
		if e.profile.Kind == telemetry.KindFuel &&
			prev > e.profile.CriticalPct && e.levelPct <= e.profile.CriticalPct {
			e.stopLocked()
			msg := fmt.Sprintf("Critical fuel level (%.1f%%), automatic shutdown", e.levelPct)
			e.log.Append(now, msg, ActivityAnomaly)
			events = append(events, telemetry.EventRow{
				OutletID:  e.profile.OutletID,
				AssetID:   e.profile.AssetID,
				EventType: telemetry.EventShutdown,
				Message:   msg,
				Level:     e.levelPct,
				Timestamp: now,
			})
		}
	}

	return e.rowLocked(now), events
}

func (e *Engine) stepFuel(dtSeconds float64) {
	consumed := *e.profile.ConsumptionRateLPH * e.profile.ConsumptionMult * dtSeconds / 3600
	e.levelPct = clamp(e.levelPct-consumed/e.profile.CapacityLiters*100, 0, 100)
	e.consumedToday += consumed
}

func (e *Engine) stepLoad(dtSeconds float64) {
	e.levelPct = clamp(e.levelPct+e.rng.Float64()*6-3, 0, 100)
	e.readings.PowerKW = e.levelPct / 100 * e.profile.MaxLoadKW
	e.consumedToday += e.readings.PowerKW * dtSeconds / 3600
}

func (e *Engine) perturbReadings() {
	e.readings.Voltage = nominalVoltage + e.rng.Float64()*10 - 5
	e.readings.TemperatureC = nominalTempC + e.rng.Float64()*10 - 5
	if e.profile.Kind == telemetry.KindFuel {
		e.readings.RPM = nominalRPM + e.rng.Float64()*100 - 50
		e.readings.PowerKW = e.nominalPower() + e.rng.Float64()*12 - 6
	}
}

func (e *Engine) nominalPower() float64 {
	if e.profile.Kind == telemetry.KindPower {
		return *e.profile.InitialLevelPct / 100 * e.profile.MaxLoadKW
	}
	return nominalPowerKW
}

func (e *Engine) statusLocked() string {
	switch e.profile.Kind {
	case telemetry.KindPower:
		// A de-energized feed draws nothing; its load status would always
		// read normal, so report it as stopped instead.
		if !e.running {
			return telemetry.StatusStopped
		}
		return telemetry.ClassifyLoad(e.readings.PowerKW, e.profile.MaxLoadKW, e.profile.OverloadFraction)
	default:
		return telemetry.ClassifyFuel(e.levelPct, e.profile.LowPct, e.profile.CriticalPct)
	}
}

func (e *Engine) rowLocked(now time.Time) telemetry.TelemetryRow {
	return telemetry.TelemetryRow{
		OutletID:      e.profile.OutletID,
		AssetID:       e.profile.AssetID,
		Kind:          e.profile.Kind,
		Running:       e.running,
		LevelPercent:  e.levelPct,
		RuntimeHours:  e.runtimeHours,
		ConsumedToday: e.consumedToday,
		Voltage:       e.readings.Voltage,
		TemperatureC:  e.readings.TemperatureC,
		RPM:           e.readings.RPM,
		PowerKW:       e.readings.PowerKW,
		Status:        e.statusLocked(),
		Timestamp:     now,
	}
}

// Snapshot is the read-only view exposed to the rendering collaborators.
type Snapshot struct {
	OutletID        string              `json:"outlet_id"`
	AssetID         string              `json:"asset_id"`
	Kind            telemetry.AssetKind `json:"kind"`
	Running         bool                `json:"running"`
	LevelPercent    float64             `json:"level_percent"`
	RuntimeHours    float64             `json:"runtime_hours"`
	ConsumedToday   float64             `json:"consumed_today"`
	Readings        telemetry.Readings  `json:"readings"`
	Status          string              `json:"status"`
	AnomalyDetected bool                `json:"anomaly_detected"`
	DetectionOn     bool                `json:"detection_on"`
	Anomalies       []AnomalyEvent      `json:"anomalies"`
	Activity        []ActivityEntry     `json:"activity"`
	Counters        AnomalyCounters     `json:"counters"`
}

// Snapshot returns a copy of the current state. The status and the transient
// detected flag are derived at read time, never cached.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	anomalies := make([]AnomalyEvent, len(e.anomalies))
	copy(anomalies, e.anomalies)
	return Snapshot{
		OutletID:        e.profile.OutletID,
		AssetID:         e.profile.AssetID,
		Kind:            e.profile.Kind,
		Running:         e.running,
		LevelPercent:    e.levelPct,
		RuntimeHours:    e.runtimeHours,
		ConsumedToday:   e.consumedToday,
		Readings:        e.readings,
		Status:          e.statusLocked(),
		AnomalyDetected: e.clock().Before(e.flagUntil),
		DetectionOn:     e.detectionOn,
		Anomalies:       anomalies,
		Activity:        e.log.Entries(),
		Counters:        e.counters,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Simulator orchestrating outlet assets and telemetry ticks
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"outletops-sim/internal/config"
	"outletops-sim/internal/engine"
	"outletops-sim/internal/logging"
	"outletops-sim/internal/telemetry"
)

// ErrUnknownAsset is returned when a command targets an asset that does not exist.
var ErrUnknownAsset = errors.New("unknown asset")

// TelemetryWriter is an interface to support different output writers.
type TelemetryWriter interface {
	Write(telemetry.TelemetryRow) error
}

// EventWriter handles anomaly and shutdown events.
type EventWriter interface {
	WriteEvent(telemetry.EventRow) error
}

// Optional: writers can also support batch mode.
type batchWriter interface {
	WriteBatch([]telemetry.TelemetryRow) error
}

type batchEventWriter interface {
	WriteEvents([]telemetry.EventRow) error
}

// OutletHealth summarizes asset status counts for one outlet.
type OutletHealth struct {
	OutletID string `json:"outlet_id"`
	Name     string `json:"name"`
	Total    int    `json:"total"`
	Running  int    `json:"running"`
	Low      int    `json:"low"`
	Critical int    `json:"critical"`
	Overload int    `json:"overload"`
}

// Simulator owns one engine per configured asset. Each asset ticks on its own
// cadence in its own goroutine; engines never share mutable state.
type Simulator struct {
	cfg          *config.SimulationConfig
	engines      map[string]*engine.Engine
	order        []string
	writer       TelemetryWriter
	eventWriter  EventWriter
	tickOverride time.Duration
}

// NewSimulator initializes engines from the outlet config. A tickOverride > 0
// replaces every asset's configured cadence (useful for accelerated runs).
func NewSimulator(cfg *config.SimulationConfig, writer TelemetryWriter, ew EventWriter, tickOverride time.Duration) *Simulator {
	s := &Simulator{
		cfg:          cfg,
		engines:      make(map[string]*engine.Engine),
		writer:       writer,
		eventWriter:  ew,
		tickOverride: tickOverride,
	}
	for _, outlet := range cfg.Outlets {
		for _, asset := range outlet.Assets {
			key := assetKey(outlet.ID, asset.ID)
			s.engines[key] = engine.New(profileFromConfig(outlet, asset))
			s.order = append(s.order, key)
		}
	}
	return s
}

func assetKey(outletID, assetID string) string {
	return outletID + "/" + assetID
}

func profileFromConfig(outlet config.Outlet, a config.Asset) engine.AssetProfile {
	return engine.AssetProfile{
		OutletID:               outlet.ID,
		AssetID:                a.ID,
		Kind:                   telemetry.AssetKind(a.Kind),
		Tick:                   a.Tick.Std(),
		CapacityLiters:         a.CapacityLiters,
		MaxLoadKW:              a.MaxLoadKW,
		ConsumptionRateLPH:     a.ConsumptionRateLPH,
		ConsumptionMult:        a.ConsumptionMultiplier,
		LowPct:                 a.LowPct,
		CriticalPct:            a.CriticalPct,
		OverloadFraction:       a.OverloadFraction,
		AnomalyProbability:     a.AnomalyProbability,
		AnomalyDropMin:         a.AnomalyDropMin,
		AnomalyDropMax:         a.AnomalyDropMax,
		AnomalyFlagReset:       a.AnomalyFlagReset.Std(),
		ActivityLogCapacity:    a.ActivityLogCapacity,
		AnomalyHistoryCapacity: a.AnomalyHistoryCapacity,
		InitialLevelPct:        a.InitialLevelPct,
	}
}

// Run starts one tick loop per asset and blocks until ctx is done. No tick
// fires after cancellation.
func (s *Simulator) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("starting simulator", "assets", len(s.order), "tick_override", s.tickOverride)
	var wg sync.WaitGroup
	for _, key := range s.order {
		e := s.engines[key]
		wg.Add(1)
		go func(e *engine.Engine) {
			defer wg.Done()
			s.runAsset(ctx, e)
		}(e)
	}
	wg.Wait()
	log.Info("simulator stopped")
}

func (s *Simulator) runAsset(ctx context.Context, e *engine.Engine) {
	tick := e.Profile().Tick
	if s.tickOverride > 0 {
		tick = s.tickOverride
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.step(ctx, e)
		case <-ctx.Done():
			return
		}
	}
}

// step advances one engine by one tick and forwards its output. A write
// failure is logged and never aborts subsequent ticks.
func (s *Simulator) step(ctx context.Context, e *engine.Engine) {
	log := logging.FromContext(ctx)
	row, events := e.Tick()

	if s.writer != nil {
		if err := s.writer.Write(row); err != nil {
			log.Error("telemetry write failed", "asset", row.AssetID, "err", err)
		}
	}
	if len(events) > 0 && s.eventWriter != nil {
		if bw, ok := s.eventWriter.(batchEventWriter); ok {
			if err := bw.WriteEvents(events); err != nil {
				log.Error("event batch write failed", "err", err)
			}
			return
		}
		for _, ev := range events {
			if err := s.eventWriter.WriteEvent(ev); err != nil {
				log.Error("event write failed", "err", err)
			}
		}
	}
}

// StartAll energizes every asset whose preconditions allow it.
func (s *Simulator) StartAll() {
	for _, key := range s.order {
		// Assets below critical stay stopped; the error is a per-asset
		// user-facing condition, not a startup failure.
		_ = s.engines[key].Start()
	}
}

// Engine returns the engine for an asset, or ErrUnknownAsset.
func (s *Simulator) Engine(outletID, assetID string) (*engine.Engine, error) {
	e, ok := s.engines[assetKey(outletID, assetID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownAsset, outletID, assetID)
	}
	return e, nil
}

// Snapshots returns the current state of every asset in config order.
func (s *Simulator) Snapshots() []engine.Snapshot {
	out := make([]engine.Snapshot, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.engines[key].Snapshot())
	}
	return out
}

// Snapshot returns one asset's state.
func (s *Simulator) Snapshot(outletID, assetID string) (engine.Snapshot, error) {
	e, err := s.Engine(outletID, assetID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return e.Snapshot(), nil
}

// Health aggregates status counts per outlet.
func (s *Simulator) Health() []OutletHealth {
	var result []OutletHealth
	for _, outlet := range s.cfg.Outlets {
		h := OutletHealth{OutletID: outlet.ID, Name: outlet.Name, Total: len(outlet.Assets)}
		for _, asset := range outlet.Assets {
			snap := s.engines[assetKey(outlet.ID, asset.ID)].Snapshot()
			if snap.Running {
				h.Running++
			}
			switch snap.Status {
			case telemetry.StatusLow:
				h.Low++
			case telemetry.StatusCritical:
				h.Critical++
			case telemetry.StatusOverload:
				h.Overload++
			}
		}
		result = append(result, h)
	}
	return result
}

// Config returns the simulation configuration.
func (s *Simulator) Config() *config.SimulationConfig {
	return s.cfg
}

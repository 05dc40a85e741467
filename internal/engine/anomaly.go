package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"outletops-sim/internal/telemetry"
)

// AnomalyEvent is one injected abnormal occurrence, never mutated after creation.
type AnomalyEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// AnomalyCounters track injected anomalies. All three are monotonic for the
// lifetime of the engine; ClearAnomalies empties the history but leaves them.
type AnomalyCounters struct {
	Lifetime int `json:"lifetime"`
	Today    int `json:"today"`
	Week     int `json:"week"`
}

// injectAnomaly degrades the level, records the event, and arms the transient
// detected flag. Caller must hold e.mu.
func (e *Engine) injectAnomaly(now time.Time) telemetry.EventRow {
	span := e.profile.AnomalyDropMax - e.profile.AnomalyDropMin
	if span < 0 {
		span = 0
	}
	drop := float64(e.profile.AnomalyDropMin + e.rng.Intn(span+1))

	var msg string
	switch e.profile.Kind {
	case telemetry.KindPower:
		e.levelPct = clamp(e.levelPct+drop, 0, 100)
		e.readings.PowerKW = e.levelPct / 100 * e.profile.MaxLoadKW
		msg = fmt.Sprintf("Abnormal load spike detected (+%.0f%%)", drop)
	default:
		e.levelPct = clamp(e.levelPct-drop, 0, 100)
		msg = fmt.Sprintf("Sudden fuel drop detected (-%.0f%%)", drop)
	}

	ev := AnomalyEvent{ID: uuid.NewString(), Timestamp: now, Message: msg}
	e.anomalies = append([]AnomalyEvent{ev}, e.anomalies...)
	if max := e.profile.AnomalyHistoryCapacity; max > 0 && len(e.anomalies) > max {
		e.anomalies = e.anomalies[:max]
	}

	e.counters.Lifetime++
	e.counters.Today++
	e.counters.Week++
	e.log.Append(now, msg, ActivityAnomaly)

	// Debounce: each injection pushes the transient flag deadline out, so a
	// second anomaly inside the window keeps the flag raised.
	e.flagUntil = now.Add(e.profile.AnomalyFlagReset)

	return telemetry.EventRow{
		OutletID:  e.profile.OutletID,
		AssetID:   e.profile.AssetID,
		EventType: telemetry.EventAnomaly,
		Message:   msg,
		Level:     e.levelPct,
		Timestamp: now,
	}
}

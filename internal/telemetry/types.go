// Telemetry structs with greptime tags
package telemetry

import (
	"os"
	"time"
)

// AssetKind distinguishes the two monitored asset variants.
type AssetKind string

const (
	KindFuel  AssetKind = "fuel"  // genset with a depleting tank
	KindPower AssetKind = "power" // electrical feed with a fluctuating load
)

// Asset status constants.
const (
	StatusNormal   = "normal"
	StatusLow      = "low"
	StatusCritical = "critical"
	StatusOverload = "overload"
	StatusStopped  = "stopped"
)

// Readings holds the cosmetic secondary sensor values perturbed each tick.
type Readings struct {
	Voltage      float64 `json:"voltage"`
	TemperatureC float64 `json:"temperature_c"`
	RPM          float64 `json:"rpm"`
	PowerKW      float64 `json:"power_kw"`
}

// TelemetryRow represents one telemetry record for GreptimeDB.
type TelemetryRow struct {
	OutletID      string    `json:"outlet_id"` // TAG
	AssetID       string    `json:"asset_id"`  // TAG
	Kind          AssetKind `json:"kind"`
	Running       bool      `json:"running"`
	LevelPercent  float64   `json:"level_percent"`
	RuntimeHours  float64   `json:"runtime_hours"`
	ConsumedToday float64   `json:"consumed_today"`
	Voltage       float64   `json:"voltage"`
	TemperatureC  float64   `json:"temperature_c"`
	RPM           float64   `json:"rpm"`
	PowerKW       float64   `json:"power_kw"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"ts"` // TIME INDEX
}

// Event kinds emitted alongside telemetry.
const (
	EventAnomaly  = "anomaly"
	EventShutdown = "critical_shutdown"
)

// EventRow describes an anomaly or forced-shutdown occurrence.
type EventRow struct {
	OutletID  string    `json:"outlet_id"`
	AssetID   string    `json:"asset_id"`
	EventType string    `json:"event_type"`
	Message   string    `json:"message"`
	Level     float64   `json:"level_percent"`
	Timestamp time.Time `json:"ts"`
}

// TelemetryTableName holds the table name used when writing to GreptimeDB.
// It defaults to "outlet_telemetry" but can be overridden via the
// GREPTIMEDB_TABLE environment variable.
var TelemetryTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "outlet_telemetry"
}()

// EventTableName holds the table name for event rows, overridable via
// GREPTIMEDB_EVENT_TABLE.
var EventTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_EVENT_TABLE"); env != "" {
		return env
	}
	return "outlet_events"
}()

func (TelemetryRow) TableName() string {
	return TelemetryTableName
}

func (EventRow) TableName() string {
	return EventTableName
}

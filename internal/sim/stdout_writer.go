// Writer implementation printing telemetry to STDOUT
package sim

import (
	"encoding/json"
	"fmt"

	"outletops-sim/internal/telemetry"
)

// StdoutWriter prints telemetry rows to STDOUT as JSON lines.
type StdoutWriter struct{}

// Write outputs a single telemetry row.
func (w *StdoutWriter) Write(row telemetry.TelemetryRow) error {
	data, _ := json.Marshal(row)
	fmt.Println(string(data))
	return nil
}

// WriteBatch outputs multiple telemetry rows.
func (w *StdoutWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteEvent prints an anomaly or shutdown event to STDOUT.
func (w *StdoutWriter) WriteEvent(ev telemetry.EventRow) error {
	data, _ := json.Marshal(ev)
	fmt.Println(string(data))
	return nil
}

// WriteEvents prints multiple events.
func (w *StdoutWriter) WriteEvents(rows []telemetry.EventRow) error {
	for _, ev := range rows {
		_ = w.WriteEvent(ev)
	}
	return nil
}

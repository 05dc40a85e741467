package sim

import (
	"outletops-sim/internal/telemetry"
)

// MultiWriter fans out telemetry and event rows to multiple writers.
type MultiWriter struct {
	telewriters  []TelemetryWriter
	eventwriters []EventWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(tws []TelemetryWriter, ews []EventWriter) *MultiWriter {
	return &MultiWriter{telewriters: tws, eventwriters: ews}
}

// Write sends a telemetry row to all writers.
func (mw *MultiWriter) Write(row telemetry.TelemetryRow) error {
	for _, w := range mw.telewriters {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple telemetry rows to all writers, using batch mode
// where a writer supports it.
func (mw *MultiWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	for _, w := range mw.telewriters {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteEvent sends an event row to all event writers.
func (mw *MultiWriter) WriteEvent(ev telemetry.EventRow) error {
	for _, w := range mw.eventwriters {
		if err := w.WriteEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// WriteEvents sends multiple event rows to all event writers.
func (mw *MultiWriter) WriteEvents(rows []telemetry.EventRow) error {
	for _, w := range mw.eventwriters {
		if bw, ok := w.(batchEventWriter); ok {
			if err := bw.WriteEvents(rows); err != nil {
				return err
			}
			continue
		}
		for _, ev := range rows {
			if err := w.WriteEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

package main

import (
	"os"

	"outletops-sim/internal/sim"
	"outletops-sim/internal/telemetry"
)

// newWriters sets up telemetry and event writers based on flags and env vars.
// It returns the writers and a cleanup function to close any resources.
func newWriters(printOnly bool, logFile string, withTUI bool) (sim.TelemetryWriter, sim.EventWriter, func(), error) {
	cleanup := func() {}

	writer, eventWriter, err := baseWriters(printOnly)
	if err != nil {
		return nil, nil, nil, err
	}

	tws := []sim.TelemetryWriter{writer}
	ews := []sim.EventWriter{eventWriter}
	closers := []func(){}

	if logFile != "" {
		fw, err := sim.NewFileWriter(logFile, logFile+".events")
		if err != nil {
			return nil, nil, nil, err
		}
		tws = append(tws, fw)
		ews = append(ews, fw)
		closers = append(closers, func() { fw.Close() })
	}
	if withTUI {
		tui := sim.NewTUIWriter()
		tws = append(tws, tui)
		ews = append(ews, tui)
		closers = append(closers, tui.Close)
	}

	if len(closers) > 0 {
		cleanup = func() {
			for _, c := range closers {
				c()
			}
		}
	}
	if len(tws) == 1 {
		return writer, eventWriter, cleanup, nil
	}
	mw := sim.NewMultiWriter(tws, ews)
	return mw, mw, cleanup, nil
}

// baseWriters chooses the underlying writers based on printOnly flag and env vars.
func baseWriters(printOnly bool) (sim.TelemetryWriter, sim.EventWriter, error) {
	if printOnly || os.Getenv("GREPTIMEDB_ENDPOINT") == "" {
		w := &sim.StdoutWriter{}
		return w, w, nil
	}

	endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
	database := os.Getenv("GREPTIMEDB_DATABASE")
	if database == "" {
		database = "public"
	}
	w, err := sim.NewGreptimeDBWriter(endpoint, database, telemetry.TelemetryTableName, telemetry.EventTableName)
	if err != nil {
		return nil, nil, err
	}
	return w, w, nil
}

// newTelemetryWriter creates a telemetry writer without event handling.
func newTelemetryWriter(printOnly bool) (sim.TelemetryWriter, error) {
	w, _, _, err := newWriters(printOnly, "", false)
	return w, err
}

package sim

import (
	"context"
	"log"
	"net"
	"strconv"

	"outletops-sim/internal/telemetry"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// GreptimeDBWriter writes telemetry and events to GreptimeDB via the ingester
// client. Tables are created automatically on first write.
type GreptimeDBWriter struct {
	client     *greptime.Client
	table      string
	eventTable string
}

// NewGreptimeDBWriter connects to a GreptimeDB endpoint ("host:port", port
// defaults to 4001). Empty table names fall back to the package defaults.
func NewGreptimeDBWriter(endpoint, database, tableName, eventTableName string) (*GreptimeDBWriter, error) {
	if tableName == "" {
		tableName = telemetry.TelemetryTableName
	}
	if eventTableName == "" {
		eventTableName = telemetry.EventTableName
	}

	host, port := splitEndpoint(endpoint)
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &GreptimeDBWriter{
		client:     client,
		table:      tableName,
		eventTable: eventTableName,
	}, nil
}

func splitEndpoint(endpoint string) (string, int) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, 4001
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 4001
	}
	return host, port
}

// Write inserts a single telemetry row.
func (w *GreptimeDBWriter) Write(row telemetry.TelemetryRow) error {
	return w.WriteBatch([]telemetry.TelemetryRow{row})
}

// WriteBatch inserts multiple telemetry rows.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	if len(rows) == 0 {
		return nil
	}

	tbl, err := table.New(w.table)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("outlet_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("asset_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("kind", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("running", types.BOOLEAN); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("level_percent", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("runtime_hours", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("consumed_today", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("voltage", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("temperature_c", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("rpm", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("power_kw", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("status", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	for _, r := range rows {
		err := tbl.AddRow(r.OutletID, r.AssetID, string(r.Kind), r.Running,
			r.LevelPercent, r.RuntimeHours, r.ConsumedToday,
			r.Voltage, r.TemperatureC, r.RPM, r.PowerKW, r.Status, r.Timestamp)
		if err != nil {
			return err
		}
	}

	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		log.Printf("[GreptimeDBWriter] write failed: %v", err)
		return err
	}
	return nil
}

// WriteEvent inserts a single event row.
func (w *GreptimeDBWriter) WriteEvent(ev telemetry.EventRow) error {
	return w.WriteEvents([]telemetry.EventRow{ev})
}

// WriteEvents inserts multiple event rows.
func (w *GreptimeDBWriter) WriteEvents(rows []telemetry.EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	tbl, err := table.New(w.eventTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("outlet_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("asset_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("event_type", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("message", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("level_percent", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	for _, ev := range rows {
		if err := tbl.AddRow(ev.OutletID, ev.AssetID, ev.EventType, ev.Message, ev.Level, ev.Timestamp); err != nil {
			return err
		}
	}

	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		log.Printf("[GreptimeDBWriter] event write failed: %v", err)
		return err
	}
	return nil
}

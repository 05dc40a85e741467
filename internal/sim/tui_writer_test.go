package sim

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"outletops-sim/internal/telemetry"
)

type mockProgram struct {
	msgs []tea.Msg
}

func (m *mockProgram) Send(msg tea.Msg) {
	m.msgs = append(m.msgs, msg)
}

func TestTUIWriterForwardsMessages(t *testing.T) {
	mp := &mockProgram{}
	w := &TUIWriter{program: mp, done: make(chan struct{})}

	if err := w.Write(telemetry.TelemetryRow{OutletID: "o1", AssetID: "a1"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.WriteEvent(telemetry.EventRow{Message: "drop"}); err != nil {
		t.Fatalf("WriteEvent failed: %v", err)
	}

	if len(mp.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(mp.msgs))
	}
	if _, ok := mp.msgs[0].(rowMsg); !ok {
		t.Errorf("first message is %T, want rowMsg", mp.msgs[0])
	}
	if _, ok := mp.msgs[1].(eventMsg); !ok {
		t.Errorf("second message is %T, want eventMsg", mp.msgs[1])
	}
}

func TestTUIModelTracksRows(t *testing.T) {
	m := newTUIModel()
	m.layout()

	row := telemetry.TelemetryRow{OutletID: "o1", AssetID: "a1", Kind: telemetry.KindFuel, LevelPercent: 42, Status: telemetry.StatusNormal}
	m.Update(rowMsg{row})
	m.Update(rowMsg{telemetry.TelemetryRow{OutletID: "o1", AssetID: "a2", Kind: telemetry.KindPower}})

	if got := len(m.table.Rows()); got != 2 {
		t.Errorf("expected 2 table rows, got %d", got)
	}

	// Updating the same asset replaces its row instead of appending.
	row.LevelPercent = 41
	m.Update(rowMsg{row})
	if got := len(m.table.Rows()); got != 2 {
		t.Errorf("row update should not grow the table, got %d rows", got)
	}

	m.Update(eventMsg{telemetry.EventRow{OutletID: "o1", AssetID: "a1", Message: "drop"}})
	if len(m.events) != 1 {
		t.Errorf("expected 1 event line, got %d", len(m.events))
	}
}

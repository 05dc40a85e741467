package sim

import (
	"fmt"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"outletops-sim/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// rowMsg carries a telemetry update for one asset.
type rowMsg struct{ telemetry.TelemetryRow }

// eventMsg carries an anomaly or shutdown event line.
type eventMsg struct{ telemetry.EventRow }

const maxEventLines = 200

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("57")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
	eventStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// TUIWriter renders live telemetry in a terminal dashboard.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. When the
// user quits the TUI the process receives an interrupt so the simulator shuts
// down with it.
func NewTUIWriter() *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements TelemetryWriter.
func (w *TUIWriter) Write(row telemetry.TelemetryRow) error {
	w.program.Send(rowMsg{row})
	return nil
}

// WriteEvent implements EventWriter.
func (w *TUIWriter) WriteEvent(ev telemetry.EventRow) error {
	w.program.Send(eventMsg{ev})
	return nil
}

// Close stops the TUI without signalling the process.
func (w *TUIWriter) Close() {
	w.sendSignal.Store(false)
	w.program.Send(tea.Quit())
	<-w.done
}

type tuiModel struct {
	table    table.Model
	viewport viewport.Model
	rows     map[string]telemetry.TelemetryRow
	events   []string
	width    int
	height   int
	ready    bool
}

func newTUIModel() *tuiModel {
	cols := []table.Column{
		{Title: "Outlet", Width: 18},
		{Title: "Asset", Width: 12},
		{Title: "Kind", Width: 6},
		{Title: "Run", Width: 4},
		{Title: "Level", Width: 7},
		{Title: "Status", Width: 9},
		{Title: "Power", Width: 10},
		{Title: "Today", Width: 12},
		{Title: "Runtime", Width: 9},
	}
	t := table.New(table.WithColumns(cols), table.WithFocused(true))

	width, height := 100, 30
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width, height = w, h
	}
	vp := viewport.New(width-2, 8)

	return &tuiModel{
		table:    t,
		viewport: vp,
		rows:     make(map[string]telemetry.TelemetryRow),
		width:    width,
		height:   height,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return nil
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
	case rowMsg:
		m.rows[msg.OutletID+"/"+msg.AssetID] = msg.TelemetryRow
		m.refreshTable()
	case eventMsg:
		line := fmt.Sprintf("%s %s/%s %s",
			msg.Timestamp.Format(time.TimeOnly), msg.OutletID, msg.AssetID, msg.Message)
		m.events = append(m.events, eventStyle.Render(wordwrap.String(line, m.viewport.Width)))
		if len(m.events) > maxEventLines {
			m.events = m.events[len(m.events)-maxEventLines:]
		}
		m.refreshViewport()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *tuiModel) layout() {
	eventHeight := m.height / 4
	if eventHeight < 5 {
		eventHeight = 5
	}
	m.viewport.Width = m.width - 2
	m.viewport.Height = eventHeight
	m.table.SetHeight(m.height - eventHeight - 6)
	m.ready = true
}

func (m *tuiModel) refreshTable() {
	keys := make([]string, 0, len(m.rows))
	for k := range m.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]table.Row, 0, len(keys))
	for _, k := range keys {
		r := m.rows[k]
		running := "no"
		if r.Running {
			running = "yes"
		}
		unit := " L"
		if r.Kind == telemetry.KindPower {
			unit = " kWh"
		}
		rows = append(rows, table.Row{
			r.OutletID,
			r.AssetID,
			string(r.Kind),
			running,
			fmt.Sprintf("%.1f%%", r.LevelPercent),
			r.Status,
			fmt.Sprintf("%.1f kW", r.PowerKW),
			humanize.CommafWithDigits(r.ConsumedToday, 1) + unit,
			fmt.Sprintf("%.2f h", r.RuntimeHours),
		})
	}
	m.table.SetRows(rows)
}

func (m *tuiModel) refreshViewport() {
	content := ""
	for _, l := range m.events {
		content += l + "\n"
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m *tuiModel) View() string {
	title := titleStyle.Render("outletops-sim live telemetry")
	footer := footerStyle.Render("q: quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		borderStyle.Render(m.table.View()),
		borderStyle.Render(m.viewport.View()),
		footer,
	)
}

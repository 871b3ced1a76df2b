// Package tui renders the live persona monitor: one row per persona with
// mood, volatility, and drift at a glance. The monitor is read-only;
// edits and corrections go through the CLI or the HTTP API.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"

	"github.com/praxislabs/praxis/internal/drift"
	"github.com/praxislabs/praxis/internal/engine"
	"github.com/praxislabs/praxis/internal/metrics"
	"github.com/praxislabs/praxis/internal/mood"
)

const (
	defaultRefresh = 5 * time.Second
	loadTimeout    = 10 * time.Second
)

// Table column keys.
const (
	colPersona     = "persona"
	colRole        = "role"
	colMood        = "mood"
	colTrend       = "trend"
	colVolatility  = "volatility"
	colDrift       = "drift"
	colConsistency = "consistency"
	colStatus      = "status"
)

// overviewsMsg carries one refresh worth of persona reports.
type overviewsMsg struct {
	rows []*engine.Overview
	err  error
}

// tickMsg fires the periodic refresh.
type tickMsg time.Time

// Model is the monitor's bubbletea model.
type Model struct {
	engine    *engine.Engine
	collector *metrics.Collector
	interval  time.Duration

	table   table.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	width   int
	height  int
	count   int
	loading bool
	err     error
	updated time.Time
}

// New builds the monitor over an engine. collector may be nil, in which
// case the session counters are omitted from the header. refresh <= 0
// falls back to the default cadence.
func New(eng *engine.Engine, collector *metrics.Collector, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	return Model{
		engine:    eng,
		collector: collector,
		interval:  refresh,
		table:     newTable(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		help:      help.New(),
		keys:      defaultKeyMap(),
		loading:   true,
	}
}

// Run blocks until the user quits the monitor.
func Run(eng *engine.Engine, collector *metrics.Collector, refresh time.Duration) error {
	program := tea.NewProgram(New(eng, collector, refresh), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadOverviews, m.nextTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, m.loadOverviews
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.table = m.table.WithTargetWidth(msg.Width)
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{m.nextTick()}
		if !m.loading {
			m.loading = true
			cmds = append(cmds, m.loadOverviews)
		}
		return m, tea.Batch(cmds...)

	case overviewsMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.table = m.table.WithRows(overviewRows(msg.rows))
			m.count = len(msg.rows)
			m.updated = time.Now()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Everything else, including navigation keys, belongs to the table.
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return "starting monitor..."
	}

	parts := []string{
		titleStyle.Render("Praxis Monitor"),
		statsStyle.Render(m.statsLine()),
		m.table.View(),
	}
	if m.err != nil {
		parts = append(parts, errorStyle.Render("refresh failed: "+m.err.Error()))
	}
	parts = append(parts, footerStyle.Render(m.help.View(m.keys)))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// loadOverviews is a tea command: it fetches every persona's reports and
// delivers them as one message.
func (m Model) loadOverviews() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	rows, err := m.engine.Overviews(ctx)
	return overviewsMsg{rows: rows, err: err}
}

func (m Model) nextTick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) statsLine() string {
	line := fmt.Sprintf("%d personas", m.count)
	if m.collector != nil {
		s := m.collector.Snapshot()
		line += fmt.Sprintf(" | %d responses | %.0f%% cache hits | %d observations | %d corrections | up %s",
			s.Responses, 100*s.HitRate(), s.Observations, s.Corrections,
			time.Since(s.Started).Round(time.Second))
	}
	if !m.updated.IsZero() {
		line += " | updated " + m.updated.Format("15:04:05")
	}
	if m.loading {
		line = m.spinner.View() + " " + line
	}
	return line
}

func newTable() table.Model {
	columns := []table.Column{
		table.NewFlexColumn(colPersona, "Persona", 2),
		table.NewFlexColumn(colRole, "Role", 3),
		table.NewColumn(colMood, "Mood", 6),
		table.NewColumn(colTrend, "Trend", 11),
		table.NewColumn(colVolatility, "Volatility", 12),
		table.NewColumn(colDrift, "Drift", 7),
		table.NewColumn(colConsistency, "Consistency", 13),
		table.NewColumn(colStatus, "Status", 10),
	}
	return table.New(columns).
		BorderRounded().
		WithBaseStyle(tableStyle).
		HeaderStyle(headerStyle).
		Focused(true)
}

func overviewRows(overviews []*engine.Overview) []table.Row {
	rows := make([]table.Row, 0, len(overviews))
	for _, o := range overviews {
		rows = append(rows, overviewRow(o))
	}
	return rows
}

func overviewRow(o *engine.Overview) table.Row {
	return table.NewRow(table.RowData{
		colPersona:     o.Persona.Name,
		colRole:        o.Persona.Role,
		colMood:        moodCell(o.Analysis.CurrentMood),
		colTrend:       trendCell(o.Analysis.Trend),
		colVolatility:  fmt.Sprintf("%.1f", o.Analysis.Volatility),
		colDrift:       driftCell(o.Drift),
		colConsistency: fmt.Sprintf("%d", o.Consistency.Score),
		colStatus:      statusCell(o.Drift),
	})
}

func moodCell(value int) table.StyledCell {
	text := fmt.Sprintf("%+d", value)
	switch {
	case value <= -50:
		return table.NewStyledCell(text, criticalStyle)
	case value < 0:
		return table.NewStyledCell(text, warningStyle)
	default:
		return table.NewStyledCell(text, healthyStyle)
	}
}

func trendCell(t mood.Trend) table.StyledCell {
	switch t {
	case mood.TrendImproving:
		return table.NewStyledCell(string(t), healthyStyle)
	case mood.TrendDeclining:
		return table.NewStyledCell(string(t), warningStyle)
	default:
		return table.NewStyledCell(string(t), dimStyle)
	}
}

func driftCell(r *drift.Report) table.StyledCell {
	text := fmt.Sprintf("%d", r.Score)
	switch {
	case r.Detected:
		return table.NewStyledCell(text, criticalStyle)
	case r.Score >= 25:
		return table.NewStyledCell(text, warningStyle)
	default:
		return table.NewStyledCell(text, healthyStyle)
	}
}

func statusCell(r *drift.Report) table.StyledCell {
	if r.Detected {
		return table.NewStyledCell("drifting", criticalStyle)
	}
	return table.NewStyledCell("ok", healthyStyle)
}

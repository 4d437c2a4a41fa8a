package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ByteMirror/survivalpong/ball"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	lowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("red")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("green"))

	metricStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

const barWidth = 20

// DashboardModel is the TUI showing pool stock and worker activity.
type DashboardModel struct {
	source   Source
	refresh  time.Duration
	table    table.Model
	stats    Stats
	width    int
	height   int
	lastSync time.Time
	cache    *renderCache
}

// NewDashboard creates a dashboard that polls source every refresh.
func NewDashboard(source Source, refresh time.Duration) DashboardModel {
	if refresh <= 0 {
		refresh = time.Second
	}
	columns := []table.Column{
		{Title: "Metric", Width: 24},
		{Title: "Value", Width: 12},
		{Title: "Details", Width: 44},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(14),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	t.SetStyles(s)

	m := DashboardModel{
		source:  source,
		refresh: refresh,
		table:   t,
		cache:   newRenderCache(),
	}
	m.sync()
	return m
}

type tickMsg time.Time

func (m DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m DashboardModel) Init() tea.Cmd {
	return m.tickCmd()
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.sync()
		return m, m.tickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *DashboardModel) sync() {
	m.stats = m.source.Stats()
	m.lastSync = time.Now()
	m.table.SetRows(Rows(m.stats))
	m.cache.invalidate()
}

// Rows renders stats as table rows: one per variant, then one per worker pool.
func Rows(st Stats) []table.Row {
	rows := make([]table.Row, 0, len(ball.Variants())+len(st.Workers)+1)
	for _, v := range ball.Variants() {
		count := st.Stock[v]
		rows = append(rows, table.Row{
			"stock " + v.String(),
			stockValue(count, st.MinimumStock),
			fmt.Sprintf("%s %d produced", stockBar(count, st.MinimumStock), st.Produced[v]),
		})
	}
	for _, w := range st.Workers {
		rows = append(rows, table.Row{
			w.Name + " workers",
			metricStyle.Render(fmt.Sprintf("%d/%d", w.Active, w.Live)),
			fmt.Sprintf("%d queued, %d done, %d failed, avg %v", w.Queued, w.Completed, w.Failed, w.AvgLatency.Round(time.Microsecond)),
		})
	}
	if st.Game != nil {
		rows = append(rows, table.Row{
			"match",
			metricStyle.Render(fmt.Sprintf("level %d", st.Game.Level)),
			fmt.Sprintf("%ds, %d ball(s), %d pending, hard=%v", st.Game.Elapsed, len(st.Game.Balls), st.Game.Pending, st.Game.HardMode),
		})
	}
	return rows
}

func stockValue(count, minimum int) string {
	text := fmt.Sprintf("%d", count)
	if count < minimum {
		return lowStyle.Render(text)
	}
	return okStyle.Render(text)
}

// stockBar fills up at twice the minimum stock.
func stockBar(count, minimum int) string {
	full := 2 * minimum
	if full <= 0 {
		return ""
	}
	filled := count * barWidth / full
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	if count < minimum {
		return lowStyle.Render(bar)
	}
	return okStyle.Render(bar)
}

func (m DashboardModel) View() string {
	return m.cache.get(m.width, m.height, m.render)
}

func (m DashboardModel) render() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Survival Pong ball supply"))
	b.WriteString("\n\n")

	b.WriteString(baseStyle.Render(m.table.View()))
	b.WriteString("\n\n")

	footer := labelStyle.Render(fmt.Sprintf(
		"Minimum stock: %d | Last sync: %s | Press 'q' to quit",
		m.stats.MinimumStock,
		m.lastSync.Format("15:04:05"),
	))
	b.WriteString(footer)

	return b.String()
}

// Report renders stats once, for terminals where the dashboard is not wanted.
func Report(st Stats) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Survival Pong ball supply"))
	b.WriteString("\n")
	for _, row := range Rows(st) {
		fmt.Fprintf(&b, "%-24s %s  %s\n", row[0], row[1], labelStyle.Render(row[2]))
	}
	return b.String()
}

// RunDashboard runs the TUI until the user quits or ctx is done.
func RunDashboard(ctx context.Context, source Source, refresh time.Duration) error {
	m := NewDashboard(source, refresh)

	p := tea.NewProgram(m, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}
	return nil
}

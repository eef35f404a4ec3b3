package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// WatchRow is one line of the watch view. Values arrive preformatted.
type WatchRow struct {
	ID       string
	Label    string
	Status   string
	Download string
	Upload   string
	Latency  string
	Grade    string // success, warning or error; colors the download cell
	Updated  time.Time
	Err      string
}

// WatchConfig wires the view to its data.
type WatchConfig struct {
	Title    string
	Interval time.Duration

	// Rows snapshots the current state. Called on the UI goroutine.
	Rows func() []WatchRow

	// Refresh issues fetches. It runs in a tea.Cmd, off the UI goroutine.
	Refresh func()

	Styles *Styles
	Now    func() time.Time
}

// StateChangedMsg tells the view to re-read Rows. Send it from a store
// subscriber with Program.Send.
type StateChangedMsg struct{}

// TargetsChangedMsg reports that the watched set changed and a refresh
// is due.
type TargetsChangedMsg struct{ Count int }

type watchTickMsg time.Time

// WatchModel is the bubbletea model behind `speedviz watch`.
type WatchModel struct {
	cfg         WatchConfig
	spinner     spinner.Model
	rows        []WatchRow
	lastRefresh time.Time
	paused      bool
	width       int
	notice      string
}

// NewWatchModel creates the model. Interval defaults to a minute.
func NewWatchModel(cfg WatchConfig) WatchModel {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Styles == nil {
		cfg.Styles = NewStyles()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rows == nil {
		cfg.Rows = func() []WatchRow { return nil }
	}
	if cfg.Refresh == nil {
		cfg.Refresh = func() {}
	}

	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(cfg.Styles.Theme().Primary)

	return WatchModel{cfg: cfg, spinner: s, width: 80}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh(), m.tick())
}

func (m WatchModel) refresh() tea.Cmd {
	return func() tea.Msg {
		m.cfg.Refresh()
		return StateChangedMsg{}
	}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.cfg.Interval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.lastRefresh = m.cfg.Now()
			m.notice = ""
			return m, m.refresh()
		case "p", " ":
			m.paused = !m.paused
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case watchTickMsg:
		if m.paused {
			return m, m.tick()
		}
		m.lastRefresh = m.cfg.Now()
		return m, tea.Batch(m.refresh(), m.tick())

	case TargetsChangedMsg:
		m.notice = fmt.Sprintf("targets reloaded (%d)", msg.Count)
		m.lastRefresh = m.cfg.Now()
		return m, m.refresh()

	case StateChangedMsg:
		m.rows = m.cfg.Rows()
		if m.lastRefresh.IsZero() {
			m.lastRefresh = m.cfg.Now()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Rows returns the rows currently shown.
func (m WatchModel) Rows() []WatchRow {
	return m.rows
}

// Paused reports whether periodic refresh is suspended.
func (m WatchModel) Paused() bool {
	return m.paused
}

func (m WatchModel) View() string {
	st := m.cfg.Styles
	var b strings.Builder

	title := m.cfg.Title
	if title == "" {
		title = "speedviz watch"
	}
	b.WriteString(st.Heading.Render(title))
	if !m.lastRefresh.IsZero() {
		b.WriteString(st.Muted.Render("  refreshed " + m.lastRefresh.Format(time.TimeOnly)))
	}
	if m.paused {
		b.WriteString(st.Warning.Render("  paused"))
	}
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(st.Muted.Render(m.spinner.View()+" waiting for data") + "\n")
	} else {
		b.WriteString(m.table() + "\n")
	}

	for _, row := range m.rows {
		if row.Err != "" {
			b.WriteString(st.Error.Render(row.ID+": "+row.Err) + "\n")
		}
	}
	if m.notice != "" {
		b.WriteString(st.Muted.Render(m.notice) + "\n")
	}
	b.WriteString(st.Muted.Render("r refresh · p pause · q quit") + "\n")
	return b.String()
}

func (m WatchModel) table() string {
	st := m.cfg.Styles
	now := m.cfg.Now()

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Width(m.width).
		Headers("", "ID", "Name", "Download", "Upload", "Latency", "Updated").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.Heading
			}
			if col == 3 && row >= 0 && row < len(m.rows) {
				switch m.rows[row].Grade {
				case "success":
					return st.Success
				case "warning":
					return st.Warning
				case "error":
					return st.Error
				}
			}
			if col == 6 {
				return st.Muted
			}
			return st.Body
		})

	for _, r := range m.rows {
		badge := st.StatusBadge(r.Status)
		if r.Status == "loading" {
			badge = m.spinner.View()
		}
		t.Row(badge, r.ID, r.Label, r.Download, r.Upload, r.Latency, age(now, r.Updated))
	}
	return t.String()
}

// age renders how long ago t was, coarsely.
func age(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t).Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// elapsedAfter is how long a fetch runs before the spinner shows a timer.
const elapsedAfter = time.Second

type spinnerDoneMsg struct{ err error }

type spinnerModel struct {
	spinner  spinner.Model
	message  string
	started  time.Time
	now      func() time.Time
	styles   *Styles
	err      error
	done     bool
	canceled bool
}

func newSpinnerModel(message string) spinnerModel {
	styles := NewStyles()
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(styles.Theme().Primary)
	return spinnerModel{
		spinner: s,
		message: message,
		started: time.Now(),
		now:     time.Now,
		styles:  styles,
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.canceled = true
			return m, tea.Quit
		}
	case spinnerDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	switch {
	case m.canceled:
		return ""
	case m.done && m.err != nil:
		return m.styles.Error.Render("✗ "+m.message) + "\n"
	case m.done:
		return ""
	}
	line := m.spinner.View() + " " + m.message
	if elapsed := m.now().Sub(m.started); elapsed >= elapsedAfter {
		line += " " + m.styles.Muted.Render(fmt.Sprintf("%ds", int(elapsed.Seconds())))
	}
	return line + "\n"
}

// Spinner shows progress while fetches settle.
type Spinner struct {
	message string
	output  io.Writer
}

// NewSpinner creates a spinner that renders to stderr.
func NewSpinner(message string) *Spinner {
	return &Spinner{message: message, output: os.Stderr}
}

// WithOutput renders the spinner to w instead of stderr.
func (s *Spinner) WithOutput(w io.Writer) *Spinner {
	s.output = w
	return s
}

// Run calls fn behind the spinner. Ctrl+C cancels the context passed to
// fn and Run returns context.Canceled once fn has returned.
func (s *Spinner) Run(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newSpinnerModel(s.message), tea.WithOutput(s.output), tea.WithContext(ctx))
	result := make(chan error, 1)
	go func() {
		err := fn(ctx)
		result <- err
		p.Send(spinnerDoneMsg{err: err})
	}()

	final, err := p.Run()
	if fm, ok := final.(spinnerModel); ok && fm.canceled {
		cancel()
		<-result
		return context.Canceled
	}
	ferr := <-result
	if err != nil && ferr == nil && ctx.Err() == nil {
		return err
	}
	return ferr
}

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for the TUI.
type Theme struct {
	Primary    lipgloss.AdaptiveColor
	Secondary  lipgloss.AdaptiveColor
	Success    lipgloss.AdaptiveColor
	Warning    lipgloss.AdaptiveColor
	Error      lipgloss.AdaptiveColor
	Muted      lipgloss.AdaptiveColor
	Background lipgloss.AdaptiveColor
	Foreground lipgloss.AdaptiveColor
	Border     lipgloss.AdaptiveColor
}

// DefaultTheme returns the default speedviz theme.
func DefaultTheme() Theme {
	return Theme{
		Primary:    lipgloss.AdaptiveColor{Light: "#0b7285", Dark: "#66d9e8"},
		Secondary:  lipgloss.AdaptiveColor{Light: "#5f6368", Dark: "#9aa0a6"},
		Success:    lipgloss.AdaptiveColor{Light: "#1e8e3e", Dark: "#81c995"},
		Warning:    lipgloss.AdaptiveColor{Light: "#e67700", Dark: "#fdd663"},
		Error:      lipgloss.AdaptiveColor{Light: "#d93025", Dark: "#f28b82"},
		Muted:      lipgloss.AdaptiveColor{Light: "#80868b", Dark: "#6e7681"},
		Background: lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#1f1f1f"},
		Foreground: lipgloss.AdaptiveColor{Light: "#202124", Dark: "#e8eaed"},
		Border:     lipgloss.AdaptiveColor{Light: "#dadce0", Dark: "#3c4043"},
	}
}

// Styles holds the styled components for the TUI.
type Styles struct {
	theme Theme

	Title    lipgloss.Style
	Heading  lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Cursor   lipgloss.Style
	Selected lipgloss.Style

	StatusOK    lipgloss.Style
	StatusError lipgloss.Style
}

// NewStyles creates Styles from the resolved theme.
func NewStyles() *Styles {
	return NewStylesWithTheme(ResolveTheme())
}

// NewStylesWithTheme creates Styles from theme.
func NewStylesWithTheme(theme Theme) *Styles {
	s := &Styles{theme: theme}

	s.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Primary).
		MarginBottom(1)

	s.Heading = lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Foreground)

	s.Body = lipgloss.NewStyle().Foreground(theme.Foreground)
	s.Muted = lipgloss.NewStyle().Foreground(theme.Muted)
	s.Success = lipgloss.NewStyle().Foreground(theme.Success)
	s.Warning = lipgloss.NewStyle().Foreground(theme.Warning)
	s.Error = lipgloss.NewStyle().Foreground(theme.Error)
	s.Cursor = lipgloss.NewStyle().Foreground(theme.Primary).Bold(true)
	s.Selected = lipgloss.NewStyle().Foreground(theme.Primary)

	s.StatusOK = lipgloss.NewStyle().Foreground(theme.Success).Bold(true)
	s.StatusError = lipgloss.NewStyle().Foreground(theme.Error).Bold(true)

	return s
}

// Theme returns the current theme.
func (s *Styles) Theme() Theme {
	return s.theme
}

// StatusBadge renders a merged load status (ready, loading, error,
// partially-loaded, unknown).
func (s *Styles) StatusBadge(status string) string {
	switch status {
	case "ready":
		return s.StatusOK.Render("●")
	case "error":
		return s.StatusError.Render("✗")
	case "loading":
		return s.Warning.Render("◌")
	case "partially-loaded":
		return s.Warning.Render("◐")
	default:
		return s.Muted.Render("○")
	}
}

// Package richtext renders Markdown for terminal display using glamour.
package richtext

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/term"
)

// DefaultWidth is the wrap width when the terminal size is unknown.
const DefaultWidth = 80

// RenderMarkdown renders Markdown wrapped to the width of stdout.
func RenderMarkdown(md string) (string, error) {
	return RenderMarkdownWithWidth(md, TerminalWidth())
}

// RenderMarkdownWithWidth renders Markdown for terminal display with a custom width.
// NO_COLOR selects the plain "notty" style.
func RenderMarkdownWithWidth(md string, width int) (string, error) {
	if md == "" {
		return "", nil
	}

	style := glamour.WithAutoStyle()
	if os.Getenv("NO_COLOR") != "" {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	out, err := r.Render(md)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out) + "\n", nil
}

// TerminalWidth returns the usable width of stdout, leaving a small margin.
func TerminalWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 20 {
		return w - 4
	}
	return DefaultWidth
}

package presenter

import (
	"io"

	"github.com/speedviz/speedviz/internal/tui"
)

// RenderMode controls the output format.
type RenderMode int

const (
	ModeStyled   RenderMode = iota // ANSI styled terminal output
	ModeMarkdown                   // Literal Markdown syntax
)

// Options controls a Present call.
type Options struct {
	Mode   RenderMode
	Theme  tui.Theme
	Styled bool // false renders ModeStyled layouts without color
	Locale Locale
}

// Present renders data with the schema registered for entity.
// Returns false if no schema matched or the data shape is not one the
// schema can render; the caller falls back to generic rendering.
func Present(w io.Writer, data any, entity string, opts Options) bool {
	schema := LookupByName(entity)
	if schema == nil {
		return false
	}

	switch d := data.(type) {
	case map[string]any:
		if opts.Mode == ModeMarkdown {
			return RenderDetailMarkdown(w, schema, d, opts.Locale) == nil
		}
		return RenderDetail(w, schema, d, NewStyles(opts.Theme, opts.Styled), opts.Locale) == nil
	case []map[string]any:
		if len(d) == 0 {
			return false
		}
		if opts.Mode == ModeMarkdown {
			return RenderListMarkdown(w, schema, d, opts.Locale) == nil
		}
		return RenderList(w, schema, d, NewStyles(opts.Theme, opts.Styled), opts.Locale) == nil
	}
	return false
}

package presenter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/speedviz/speedviz/internal/tui"
)

// Styles holds the lipgloss styles used by the presenter.
type Styles struct {
	Primary lipgloss.Style
	Normal  lipgloss.Style
	Muted   lipgloss.Style
	Subtle  lipgloss.Style // footer elements
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Heading lipgloss.Style
	Label   lipgloss.Style
}

// NewStyles creates presenter styles from a theme.
func NewStyles(theme tui.Theme, styled bool) Styles {
	if !styled {
		plain := lipgloss.NewStyle()
		return Styles{
			Primary: plain,
			Normal:  plain,
			Muted:   plain,
			Subtle:  plain,
			Success: plain,
			Warning: plain,
			Error:   plain,
			Heading: plain,
			Label:   plain,
		}
	}

	return Styles{
		Primary: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Primary.Dark)).Bold(true),
		Normal:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Foreground.Dark)),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted.Dark)),
		Subtle:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Border.Dark)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Success.Dark)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Warning.Dark)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Error.Dark)),
		Heading: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted.Dark)).Bold(true),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted.Dark)),
	}
}

// EmphasisStyle returns the style for a given emphasis string.
func (s Styles) EmphasisStyle(emphasis string) lipgloss.Style {
	switch emphasis {
	case "primary":
		return s.Primary
	case "muted":
		return s.Muted
	case "success":
		return s.Success
	case "warning":
		return s.Warning
	case "error":
		return s.Error
	default:
		return s.Normal
	}
}

// RenderDetail renders a single entity using its schema's detail view.
func RenderDetail(w io.Writer, schema *EntitySchema, data map[string]any, styles Styles, locale Locale) error {
	var b strings.Builder

	if headline := RenderHeadline(schema, data); headline != "" {
		b.WriteString(styles.Primary.Render(headline))
		b.WriteString("\n")
	}

	sections := schema.Views.Detail.Sections
	if len(sections) == 0 {
		sections = []DetailSection{{Fields: fieldsByRole(schema)}}
	}
	for _, section := range sections {
		renderDetailSection(&b, schema, section, data, styles, locale)
	}

	renderAffordances(&b, schema, data, styles)

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderList renders a slice of entities as a table of the list columns.
func RenderList(w io.Writer, schema *EntitySchema, data []map[string]any, styles Styles, locale Locale) error {
	columns := listColumns(schema)
	if len(columns) == 0 || len(data) == 0 {
		return nil
	}

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = fieldLabel(schema, col)
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow || row >= len(data) || col >= len(columns) {
				return styles.Heading
			}
			name := columns[col]
			return resolveEmphasis(schema.Fields[name], data[row][name], styles)
		})

	for _, item := range data {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = FormatField(schema.Fields[col], item[col], locale)
		}
		t.Row(cells...)
	}

	_, err := io.WriteString(w, t.String()+"\n")
	return err
}

func renderDetailSection(b *strings.Builder, schema *EntitySchema, section DetailSection, data map[string]any, styles Styles, locale Locale) {
	type line struct{ label, value, name string }
	var lines []line
	maxLen := 0
	for _, name := range section.Fields {
		spec := schema.Fields[name]
		if spec.Role == "title" {
			continue
		}
		formatted := FormatField(spec, data[name], locale)
		if formatted == "" {
			continue
		}
		label := fieldLabel(schema, name)
		maxLen = max(maxLen, len(label))
		lines = append(lines, line{label, formatted, name})
	}
	if len(lines) == 0 {
		return
	}

	if section.Heading != "" {
		b.WriteString("\n")
		b.WriteString(styles.Heading.Render(section.Heading))
		b.WriteString("\n")
	}
	for _, l := range lines {
		style := resolveEmphasis(schema.Fields[l.name], data[l.name], styles)
		b.WriteString(styles.Label.Render(fmt.Sprintf("  %-*s  ", maxLen, l.label)))
		b.WriteString(style.Render(l.value))
		b.WriteString("\n")
	}
}

func renderAffordances(b *strings.Builder, schema *EntitySchema, data map[string]any, styles Styles) {
	visible, cmds := visibleAffordances(schema, data)
	if len(visible) == 0 {
		return
	}

	b.WriteString("\n")
	b.WriteString(styles.Subtle.Render("Next:"))
	b.WriteString("\n")

	maxCmd := 0
	for _, cmd := range cmds {
		maxCmd = max(maxCmd, len(cmd))
	}
	for i, a := range visible {
		b.WriteString(styles.Subtle.Render(fmt.Sprintf("  %-*s  %s", maxCmd, cmds[i], a.Label)))
		b.WriteString("\n")
	}
}

func visibleAffordances(schema *EntitySchema, data map[string]any) ([]Affordance, []string) {
	var visible []Affordance
	var cmds []string
	for _, a := range schema.Actions {
		if !EvalCondition(a.When, data) {
			continue
		}
		cmd := RenderTemplate(a.Cmd, data)
		if cmd == "" || strings.Contains(cmd, "<no value>") {
			continue
		}
		visible = append(visible, a)
		cmds = append(cmds, cmd)
	}
	return visible, cmds
}

// resolveEmphasis picks the style for a field, preferring its rating.
func resolveEmphasis(spec FieldSpec, val any, styles Styles) lipgloss.Style {
	if spec.Rating != nil {
		if v, ok := toFloat(val); ok {
			return styles.EmphasisStyle(spec.Rating.Grade(v))
		}
	}
	if spec.Emphasis != "" {
		return styles.EmphasisStyle(spec.Emphasis)
	}
	return styles.Normal
}

func listColumns(schema *EntitySchema) []string {
	if cols := schema.Views.List.Columns; len(cols) > 0 {
		return cols
	}
	var candidates []string
	for name, spec := range schema.Fields {
		if spec.Role == "title" || spec.Role == "detail" {
			candidates = append(candidates, name)
		}
	}
	sort.Strings(candidates)
	return candidates
}

// fieldsByRole orders every field detail first, then meta, by name.
func fieldsByRole(schema *EntitySchema) []string {
	names := make([]string, 0, len(schema.Fields))
	for name := range schema.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, role := range []string{"detail", "meta"} {
		for _, name := range names {
			if schema.Fields[name].Role == role {
				out = append(out, name)
			}
		}
	}
	return out
}

// fieldLabel returns the schema label or a title-cased key.
func fieldLabel(schema *EntitySchema, key string) string {
	if label := schema.Fields[key].Label; label != "" {
		return label
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// escapePipe escapes pipe characters in Markdown table cells.
func escapePipe(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// RenderDetailMarkdown renders a single entity as Markdown.
func RenderDetailMarkdown(w io.Writer, schema *EntitySchema, data map[string]any, locale Locale) error {
	var b strings.Builder

	if headline := RenderHeadline(schema, data); headline != "" {
		b.WriteString("**" + headline + "**\n")
	}

	sections := schema.Views.Detail.Sections
	if len(sections) == 0 {
		sections = []DetailSection{{Fields: fieldsByRole(schema)}}
	}
	for _, section := range sections {
		var lines []string
		for _, name := range section.Fields {
			spec := schema.Fields[name]
			if spec.Role == "title" {
				continue
			}
			if formatted := FormatField(spec, data[name], locale); formatted != "" {
				lines = append(lines, "- **"+fieldLabel(schema, name)+":** "+formatted+"\n")
			}
		}
		if len(lines) == 0 {
			continue
		}
		if section.Heading != "" {
			b.WriteString("\n#### " + section.Heading + "\n\n")
		} else {
			b.WriteString("\n")
		}
		for _, l := range lines {
			b.WriteString(l)
		}
	}

	if visible, cmds := visibleAffordances(schema, data); len(visible) > 0 {
		b.WriteString("\n#### Next\n\n")
		for i, a := range visible {
			b.WriteString("- `" + cmds[i] + "`: " + a.Label + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderListMarkdown renders a slice of entities as a Markdown table.
func RenderListMarkdown(w io.Writer, schema *EntitySchema, data []map[string]any, locale Locale) error {
	columns := listColumns(schema)
	if len(columns) == 0 || len(data) == 0 {
		return nil
	}

	var b strings.Builder
	headers := make([]string, len(columns))
	dividers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = fieldLabel(schema, col)
		dividers[i] = "---"
	}
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("| " + strings.Join(dividers, " | ") + " |\n")

	for _, item := range data {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = escapePipe(FormatField(schema.Fields[col], item[col], locale))
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

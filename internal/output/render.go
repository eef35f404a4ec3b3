package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/term"

	"github.com/speedviz/speedviz/internal/observability"
	"github.com/speedviz/speedviz/internal/tui"
)

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool

	Summary lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style

	Header    lipgloss.Style
	Cell      lipgloss.Style
	CellMuted lipgloss.Style
}

// NewRenderer creates a renderer with styles from the resolved theme.
// Styling is enabled when writing to a TTY, or when forceStyled is true.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	return NewRendererWithTheme(w, forceStyled, tui.ResolveTheme())
}

// NewRendererWithTheme creates a renderer with a specific theme (for testing).
func NewRendererWithTheme(w io.Writer, forceStyled bool, theme tui.Theme) *Renderer {
	width, isTTY := terminalInfo(w)
	styled := isTTY || forceStyled

	// lipgloss.NewRenderer does not carry the profile through in this
	// version, so set the global one.
	if styled {
		lipgloss.SetColorProfile(2) // TrueColor
	} else {
		lipgloss.SetColorProfile(0) // Ascii
	}

	r := &Renderer{
		width:  width,
		styled: styled,
	}

	plain := lipgloss.NewStyle()
	if !styled {
		r.Summary, r.Muted, r.Data, r.Error, r.Hint = plain, plain, plain, plain, plain
		r.Warning, r.Success, r.Header, r.Cell, r.CellMuted = plain, plain, plain, plain, plain
		return r
	}

	// Dark variants: the background can't be probed when output is piped.
	r.Summary = plain.Foreground(lipgloss.Color(theme.Primary.Dark)).Bold(true)
	r.Muted = plain.Foreground(lipgloss.Color(theme.Muted.Dark))
	r.Data = plain.Foreground(lipgloss.Color(theme.Foreground.Dark))
	r.Error = plain.Foreground(lipgloss.Color(theme.Error.Dark)).Bold(true)
	r.Hint = plain.Foreground(lipgloss.Color(theme.Muted.Dark)).Italic(true)
	r.Warning = plain.Foreground(lipgloss.Color(theme.Warning.Dark))
	r.Success = plain.Foreground(lipgloss.Color(theme.Success.Dark))
	r.Header = plain.Foreground(lipgloss.Color(theme.Foreground.Dark)).Bold(true)
	r.Cell = plain.Foreground(lipgloss.Color(theme.Foreground.Dark))
	r.CellMuted = plain.Foreground(lipgloss.Color(theme.Muted.Dark))
	return r
}

// Styled reports whether the renderer emits ANSI styling.
func (r *Renderer) Styled() bool {
	return r.styled
}

// terminalInfo returns the terminal width and whether the writer is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80

	if f, ok := w.(*os.File); ok {
		if w, _, err := term.GetSize(f.Fd()); err == nil && w >= 40 {
			width = w
		}
		fi, err := f.Stat()
		if err == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
			isTTY = true
		}
	}

	return width, isTTY
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	return r.renderResponse(w, resp, "")
}

// RenderPresented renders resp with body in place of the generic data
// rendering. body comes from a schema presenter.
func (r *Renderer) RenderPresented(w io.Writer, resp *Response, body string) error {
	return r.renderResponse(w, resp, body)
}

func (r *Renderer) renderResponse(w io.Writer, resp *Response, body string) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		if resp.Status != "" {
			b.WriteString(" " + r.statusStyle(resp.Status).Render("["+resp.Status+"]"))
		}
		b.WriteString("\n\n")
	}

	if body != "" {
		b.WriteString(body)
	} else {
		r.renderData(&b, NormalizeData(resp.Data))
	}

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n")
		r.renderBreadcrumbs(&b, resp.Breadcrumbs)
	}

	if stats := extractStats(resp.Meta); stats != nil {
		b.WriteString("\n")
		r.renderStats(&b, stats)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")

	if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) statusStyle(status string) lipgloss.Style {
	switch status {
	case "ready":
		return r.Success
	case "error":
		return r.Error
	case "loading", "partially-loaded":
		return r.Warning
	default:
		return r.Muted
	}
}

func (r *Renderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)") + "\n")
			return
		}
		r.renderTable(b, d)

	case map[string]any:
		r.renderObject(b, d)

	case []any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)") + "\n")
			return
		}
		r.renderList(b, d)

	case string:
		b.WriteString(r.Data.Render(d) + "\n")

	case nil:
		b.WriteString(r.Muted.Render("(no data)") + "\n")

	default:
		b.WriteString(r.Data.Render(fmt.Sprintf("%v", data)) + "\n")
	}
}

// Column priority for table rendering (lower = higher priority)
var columnPriority = map[string]int{
	"id":                         1,
	"name":                       2,
	"label":                      2,
	"date":                       3,
	"hour":                       4,
	"download_speed_mbps_median": 5,
	"upload_speed_mbps_median":   6,
	"rtt_avg":                    7,
	"retransmit_avg":             8,
	"count":                      9,
	"status":                     10,
	"type":                       11,
}

// Columns to render in muted style
var mutedColumns = map[string]bool{
	"id":    true,
	"count": true,
}

type column struct {
	key      string
	header   string
	priority int
	muted    bool
	width    int
}

func detectColumns(data []map[string]any) []column {
	if len(data) == 0 {
		return nil
	}

	var cols []column
	for key, val := range data[0] {
		switch val.(type) {
		case map[string]any, []map[string]any, []any:
			continue
		}

		priority := columnPriority[key]
		if priority == 0 {
			priority = 50
		}

		cols = append(cols, column{
			key:      key,
			header:   formatHeader(key),
			priority: priority,
			muted:    mutedColumns[key],
		})
	}

	sort.Slice(cols, func(i, j int) bool {
		if cols[i].priority != cols[j].priority {
			return cols[i].priority < cols[j].priority
		}
		return cols[i].key < cols[j].key
	})
	return cols
}

func (r *Renderer) renderTable(b *strings.Builder, data []map[string]any) {
	columns := r.selectColumns(detectColumns(data), data)
	if len(columns) == 0 {
		return
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.Header
			}
			if col < len(columns) && columns[col].muted {
				return r.CellMuted
			}
			return r.Cell
		})

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	t.Headers(headers...)

	for _, item := range data {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = formatCell(item[col.key])
		}
		t.Row(row...)
	}

	b.WriteString(t.String())
	b.WriteString("\n")
}

// selectColumns drops the lowest priority columns until the table fits.
func (r *Renderer) selectColumns(cols []column, data []map[string]any) []column {
	for i := range cols {
		cols[i].width = lipgloss.Width(cols[i].header)
		for _, row := range data {
			if w := lipgloss.Width(formatCell(row[cols[i].key])); w > cols[i].width {
				cols[i].width = w
			}
		}
		cols[i].width = min(cols[i].width, 40)
	}

	const padding = 2
	selected := cols
	for len(selected) > 1 {
		total := 0
		for _, col := range selected {
			total += col.width + padding
		}
		if total <= r.width {
			break
		}
		selected = selected[:len(selected)-1]
	}
	return selected
}

// orderedFields returns scalar keys of data in display order.
func orderedFields(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k, v := range data {
		switch v.(type) {
		case map[string]any, []map[string]any:
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := columnPriority[keys[i]], columnPriority[keys[j]]
		if pi == 0 {
			pi = 50
		}
		if pj == 0 {
			pj = 50
		}
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (r *Renderer) renderObject(b *strings.Builder, data map[string]any) {
	fields := orderedFields(data)
	if len(fields) == 0 {
		b.WriteString(r.Muted.Render("(no data)") + "\n")
		return
	}

	maxLen := 0
	for _, f := range fields {
		maxLen = max(maxLen, len(formatHeader(f)))
	}

	for _, f := range fields {
		label := r.Muted.Render(fmt.Sprintf("%-*s: ", maxLen, formatHeader(f)))
		value := formatDateValue(f, data[f])
		if mutedColumns[f] {
			b.WriteString(label + r.CellMuted.Render(value) + "\n")
		} else {
			b.WriteString(label + r.Data.Render(value) + "\n")
		}
	}
}

func (r *Renderer) renderList(b *strings.Builder, data []any) {
	for _, item := range data {
		b.WriteString(r.Data.Render("• "+formatCell(item)) + "\n")
	}
}

func (r *Renderer) renderBreadcrumbs(b *strings.Builder, crumbs []Breadcrumb) {
	b.WriteString(r.Muted.Render("Next:") + "\n")
	for _, bc := range crumbs {
		cmd := r.Muted.Render("  " + bc.Cmd)
		if bc.Description != "" {
			cmd += r.Muted.Render("  # " + bc.Description)
		}
		b.WriteString(cmd + "\n")
	}
}

// renderStats renders session statistics in a compact one-liner.
func (r *Renderer) renderStats(b *strings.Builder, stats map[string]any) {
	parts := observability.SessionMetricsFromMap(stats).FormatParts()
	if len(parts) > 0 {
		b.WriteString(r.Muted.Render("Stats: "+strings.Join(parts, " | ")) + "\n")
	}
}

var headerAbbrev = map[string]string{
	"download_speed_mbps_median": "Download (Mbps)",
	"upload_speed_mbps_median":   "Upload (Mbps)",
	"rtt_avg":                    "RTT (ms)",
	"retransmit_avg":             "Retransmit",
}

func formatHeader(key string) string {
	if h, ok := headerAbbrev[key]; ok {
		return h
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		if len(v) > 40 {
			return v[:37] + "..."
		}
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	case int, int64:
		return fmt.Sprintf("%d", v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, formatCell(item))
		}
		return strings.Join(items, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatDateValue renders date and timestamp fields in a readable form.
func formatDateValue(key string, val any) string {
	str, ok := val.(string)
	if !ok || str == "" || !(key == "date" || strings.HasSuffix(key, "_at") || strings.HasSuffix(key, "_date")) {
		return formatCell(val)
	}
	if t, err := time.Parse(time.RFC3339, str); err == nil {
		return t.Format("Jan 2, 2006 15:04")
	}
	if t, err := time.Parse(time.DateOnly, str); err == nil {
		return t.Format("Jan 2, 2006")
	}
	return formatCell(val)
}

// MarkdownRenderer outputs literal Markdown syntax (portable, pipeable).
type MarkdownRenderer struct {
	width int
}

// NewMarkdownRenderer creates a renderer for literal Markdown output.
func NewMarkdownRenderer(w io.Writer) *MarkdownRenderer {
	width, _ := terminalInfo(w)
	return &MarkdownRenderer{width: width}
}

// RenderResponse renders a success response as literal Markdown.
func (r *MarkdownRenderer) RenderResponse(w io.Writer, resp *Response) error {
	return r.renderResponse(w, resp, "")
}

// RenderPresented is RenderResponse with a presenter-rendered body.
func (r *MarkdownRenderer) RenderPresented(w io.Writer, resp *Response, body string) error {
	return r.renderResponse(w, resp, body)
}

func (r *MarkdownRenderer) renderResponse(w io.Writer, resp *Response, body string) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString("## " + resp.Summary + "\n\n")
	}
	if resp.Status != "" {
		b.WriteString("*Status: " + resp.Status + "*\n\n")
	}

	if body != "" {
		b.WriteString(body)
	} else {
		r.renderData(&b, NormalizeData(resp.Data))
	}

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n### Next\n\n")
		for _, bc := range resp.Breadcrumbs {
			line := "- `" + bc.Cmd + "`"
			if bc.Description != "" {
				line += ": " + bc.Description
			}
			b.WriteString(line + "\n")
		}
	}

	if stats := extractStats(resp.Meta); stats != nil {
		parts := observability.SessionMetricsFromMap(stats).FormatParts()
		if len(parts) > 0 {
			b.WriteString("\n*Stats: " + strings.Join(parts, " | ") + "*\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response as literal Markdown.
func (r *MarkdownRenderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString("**Error:** " + resp.Error + "\n")
	if resp.Hint != "" {
		b.WriteString("\n*Hint: " + resp.Hint + "*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *MarkdownRenderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString("*No results*\n")
			return
		}
		MarkdownTable(b, d)
	case map[string]any:
		fields := orderedFields(d)
		if len(fields) == 0 {
			b.WriteString("*No data*\n")
			return
		}
		for _, f := range fields {
			b.WriteString("- **" + formatHeader(f) + ":** " + formatDateValue(f, d[f]) + "\n")
		}
	case []any:
		if len(d) == 0 {
			b.WriteString("*No results*\n")
			return
		}
		for _, item := range d {
			b.WriteString("- " + formatCell(item) + "\n")
		}
	case string:
		b.WriteString(d + "\n")
	case nil:
		b.WriteString("*No data*\n")
	default:
		fmt.Fprintf(b, "%v\n", data)
	}
}

// MarkdownTable writes rows as a pipe table.
func MarkdownTable(b *strings.Builder, data []map[string]any) {
	cols := detectColumns(data)
	if len(cols) == 0 {
		return
	}

	headers := make([]string, len(cols))
	seps := make([]string, len(cols))
	for i, col := range cols {
		headers[i] = col.header
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	for _, item := range data {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = strings.ReplaceAll(formatCell(item[col.key]), "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}

// extractStats pulls stats from response meta if present.
func extractStats(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	stats, _ := meta["stats"].(map[string]any)
	return stats
}

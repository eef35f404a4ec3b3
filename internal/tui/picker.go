package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// PickerItem is one choice. ID is returned to the caller; Title and
// Description are shown and matched against the filter.
type PickerItem struct {
	ID          string
	Title       string
	Description string
}

func (i PickerItem) String() string {
	return i.Title
}

// FilterValue returns the text the filter matches.
func (i PickerItem) FilterValue() string {
	return i.Title + " " + i.Description
}

// pickerRow is a PickerItem as listed, with whether it came from recents.
type pickerRow struct {
	item   PickerItem
	recent bool
}

type pickerModel struct {
	rows       []pickerRow
	filtered   []pickerRow
	input      textinput.Model
	cursor     int
	offset     int
	maxVisible int
	title      string
	styles     *Styles

	autoSelectSingle bool
	recentItems      []PickerItem

	selected *PickerItem
	canceled bool
}

// PickerOption configures a picker.
type PickerOption func(*pickerModel)

// WithPickerTitle sets the line shown above the filter.
func WithPickerTitle(title string) PickerOption {
	return func(m *pickerModel) {
		m.title = title
	}
}

// WithRecentItems lists items first, marked as recent. Recent items not
// among the picker's items are still offered.
func WithRecentItems(items []PickerItem) PickerOption {
	return func(m *pickerModel) {
		m.recentItems = items
	}
}

// WithAutoSelectSingle returns the only item without showing the picker.
func WithAutoSelectSingle() PickerOption {
	return func(m *pickerModel) {
		m.autoSelectSingle = true
	}
}

func newPickerModel(items []PickerItem, opts ...PickerOption) pickerModel {
	ti := textinput.New()
	ti.Placeholder = "filter by name or id"
	ti.Width = 40
	ti.Focus()

	m := pickerModel{
		input:      ti,
		maxVisible: 10,
		title:      "Choose one",
		styles:     NewStyles(),
	}
	for _, opt := range opts {
		opt(&m)
	}

	seen := make(map[string]bool, len(m.recentItems))
	for _, item := range m.recentItems {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		m.rows = append(m.rows, pickerRow{item: item, recent: true})
	}
	for _, item := range items {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		m.rows = append(m.rows, pickerRow{item: item})
	}
	m.filtered = m.rows
	return m
}

func (m pickerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc":
		m.canceled = true
		return m, tea.Quit
	case "enter":
		if m.cursor < len(m.filtered) {
			item := m.filtered[m.cursor].item
			m.selected = &item
		}
		return m, tea.Quit
	case "tab":
		if len(m.filtered) > 0 {
			item := m.filtered[0].item
			m.selected = &item
		}
		return m, tea.Quit
	case "up", "ctrl+p":
		m.moveTo(m.cursor - 1)
	case "down", "ctrl+n":
		m.moveTo(m.cursor + 1)
	case "pgup", "ctrl+u":
		m.moveTo(m.cursor - m.maxVisible/2)
	case "pgdown", "ctrl+d":
		m.moveTo(m.cursor + m.maxVisible/2)
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.filtered = m.filter(m.input.Value())
		m.cursor, m.offset = 0, 0
		return m, cmd
	}
	return m, nil
}

// moveTo clamps the cursor to the filtered rows and scrolls it into view.
func (m *pickerModel) moveTo(i int) {
	m.cursor = max(0, min(i, len(m.filtered)-1))
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.maxVisible {
		m.offset = m.cursor - m.maxVisible + 1
	}
}

// filter keeps rows matching every whitespace-separated term, case-insensitively.
func (m pickerModel) filter(query string) []pickerRow {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return m.rows
	}
	var out []pickerRow
	for _, row := range m.rows {
		text := strings.ToLower(row.item.FilterValue())
		match := true
		for _, t := range terms {
			if !strings.Contains(text, t) {
				match = false
				break
			}
		}
		if match {
			out = append(out, row)
		}
	}
	return out
}

func (m pickerModel) View() string {
	if m.canceled || m.selected != nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title) + "\n\n")
	b.WriteString(m.input.View() + "\n\n")

	if len(m.filtered) == 0 {
		b.WriteString(m.styles.Muted.Render("No matches") + "\n")
	}
	end := min(m.offset+m.maxVisible, len(m.filtered))
	for i := m.offset; i < end; i++ {
		row := m.filtered[i]
		prefix, style := "  ", m.styles.Body
		if i == m.cursor {
			prefix, style = m.styles.Cursor.Render("> "), m.styles.Selected
		}
		line := prefix + style.Render(row.item.Title)
		if row.item.Description != "" && row.item.Description != row.item.Title {
			line += " " + m.styles.Muted.Render(row.item.Description)
		}
		if row.recent {
			line += " " + m.styles.Success.Render("recent")
		}
		b.WriteString(line + "\n")
	}
	if len(m.filtered) > m.maxVisible {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("%d-%d of %d", m.offset+1, end, len(m.filtered))) + "\n")
	}

	b.WriteString("\n" + m.styles.Muted.Render("↑↓ move • enter choose • tab first match • esc cancel"))
	return b.String()
}

// Picker is a filterable list that returns the chosen item.
type Picker struct {
	items []PickerItem
	opts  []PickerOption
}

// NewPicker creates a picker over items.
func NewPicker(items []PickerItem, opts ...PickerOption) *Picker {
	return &Picker{items: items, opts: opts}
}

// Run shows the picker. It returns nil, nil when the user cancels.
func (p *Picker) Run() (*PickerItem, error) {
	m := newPickerModel(p.items, p.opts...)
	if m.autoSelectSingle && len(m.rows) == 1 {
		item := m.rows[0].item
		return &item, nil
	}

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}
	fm := final.(pickerModel) //nolint:errcheck // the program only ever holds a pickerModel
	if fm.canceled {
		return nil, nil
	}
	return fm.selected, nil
}

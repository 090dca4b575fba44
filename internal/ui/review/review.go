// Package review is the interactive checklist shown before applying
// updates: the operator toggles which upgradable packages go ahead.
package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/agent462/pvectl/internal/parser"
	"github.com/agent462/pvectl/internal/ui/style"
)

// ErrAborted is returned by Run when the operator quits without
// confirming.
var ErrAborted = errors.New("review aborted")

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	All     key.Binding
	Confirm key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle:  key.NewBinding(key.WithKeys("space", " "), key.WithHelp("space", "toggle")),
		All:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "all/none")),
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "abort")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.All, k.Confirm, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, k.ShortHelp()}
}

// Model is the Bubble Tea model for the checklist.
type Model struct {
	title   string
	records []parser.PackageRecord
	cursor  int
	offset  int
	height  int

	keys   keyMap
	help   help.Model
	styles style.Styles

	confirmed bool
	aborted   bool
}

// New creates a checklist over a copy of records.
func New(title string, records []parser.PackageRecord, styles style.Styles) Model {
	return Model{
		title:   title,
		records: append([]parser.PackageRecord(nil), records...),
		keys:    defaultKeyMap(),
		help:    help.New(),
		styles:  styles,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.help.SetWidth(msg.Width)
		m.scroll()
		return m, nil

	case tea.KeyPressMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.aborted = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Confirm):
			m.confirmed = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.records)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Toggle):
			if len(m.records) > 0 {
				m.records[m.cursor].Selected = !m.records[m.cursor].Selected
			}
		case key.Matches(msg, m.keys.All):
			all := m.selectedCount() == len(m.records)
			for i := range m.records {
				m.records[i].Selected = !all
			}
		}
		m.scroll()
	}
	return m, nil
}

// visibleRows is how many package rows fit: the terminal height minus
// title, blank line, summary and help.
func (m Model) visibleRows() int {
	if m.height == 0 {
		return len(m.records)
	}
	return max(m.height-4, 1)
}

func (m *Model) scroll() {
	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

func (m Model) selectedCount() int {
	n := 0
	for _, r := range m.records {
		if r.Selected {
			n++
		}
	}
	return n
}

// View implements tea.Model.
func (m Model) View() tea.View {
	return tea.NewView(m.render())
}

func (m Model) render() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render(m.title))
	b.WriteString("\n\n")

	end := min(m.offset+m.visibleRows(), len(m.records))
	for i := m.offset; i < end; i++ {
		r := m.records[i]
		cursor := "  "
		if i == m.cursor {
			cursor = m.styles.Step.Render("> ")
		}
		check := "[ ]"
		if r.Selected {
			check = m.styles.Success.Render("[x]")
		}
		line := fmt.Sprintf("%s%s %s", cursor, check, r.Name)
		if r.VersionInfo != "" || r.Candidate != "" {
			line += m.styles.Muted.Render(fmt.Sprintf("  %s -> %s", orUnknown(r.VersionInfo), orUnknown(r.Candidate)))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("%d of %d selected", m.selectedCount(), len(m.records))))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func orUnknown(v string) string {
	if v == "" {
		return "?"
	}
	return v
}

// Records returns the reviewed packages with their final selection.
func (m Model) Records() []parser.PackageRecord {
	return append([]parser.PackageRecord(nil), m.records...)
}

// Confirmed reports whether the operator pressed enter.
func (m Model) Confirmed() bool {
	return m.confirmed
}

// Aborted reports whether the operator quit without confirming.
func (m Model) Aborted() bool {
	return m.aborted
}

// Run shows the checklist on in/out and returns the reviewed records.
func Run(ctx context.Context, title string, records []parser.PackageRecord, styles style.Styles, in io.Reader, out io.Writer) ([]parser.PackageRecord, error) {
	p := tea.NewProgram(New(title, records, styles),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("running review: %w", err)
	}
	m, ok := final.(Model)
	if !ok || !m.Confirmed() {
		return nil, ErrAborted
	}
	return m.Records(), nil
}

// Package review shows an extracted table in the terminal and asks for
// confirmation before it is uploaded.
package review

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/tablescribe/internal/tabular"
)

const (
	maxColumnWidth = 24
	maxHeight      = 15
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	frameStyle = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
)

// Model is the bubbletea model for the review screen.
type Model struct {
	title     string
	summary   string
	table     table.Model
	confirmed bool
	done      bool
}

// New builds a review model for the extract.
func New(e *tabular.Extract, title string) Model {
	cols := make([]table.Column, len(e.Columns))
	for i, c := range e.Columns {
		cols[i] = table.Column{Title: c.Name, Width: columnWidth(c)}
	}

	data := e.Rows()
	rows := make([]table.Row, len(data))
	for i, r := range data {
		row := make(table.Row, len(r))
		for j, v := range r {
			row[j] = tabular.FormatValue(v)
		}
		rows[i] = row
	}

	height := len(rows) + 1
	if height > maxHeight {
		height = maxHeight
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
	t.SetStyles(s)

	types := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		types[i] = c.Name + " " + c.Type.String()
	}

	return Model{
		title:   title,
		summary: fmt.Sprintf("%d rows: %s", len(rows), strings.Join(types, ", ")),
		table:   t,
	}
}

func columnWidth(c tabular.Column) int {
	w := len(c.Name)
	for _, v := range c.Values {
		if n := len(tabular.FormatValue(v)); n > w {
			w = n
		}
	}
	if w > maxColumnWidth {
		w = maxColumnWidth
	}
	return w + 2
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "y", "Y", "enter":
			m.confirmed, m.done = true, true
			return m, tea.Quit
		case "n", "N", "q", "esc", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.summary))
	b.WriteString("\n")
	b.WriteString(frameStyle.Render(m.table.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ scroll • y/enter upload • n/q cancel"))
	b.WriteString("\n")
	return b.String()
}

// Confirmed reports whether the user accepted the upload.
func (m Model) Confirmed() bool { return m.confirmed }

// Confirm shows the extract and blocks until the user accepts or declines.
func Confirm(ctx context.Context, e *tabular.Extract, title string, in io.Reader, out io.Writer) (bool, error) {
	p := tea.NewProgram(New(e, title), tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("review failed: %w", err)
	}
	m, ok := final.(Model)
	return ok && m.Confirmed(), nil
}

// Package style holds the lipgloss styles pvectl uses for terminal
// output.
package style

import (
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"golang.org/x/term"
)

// Color palette.
var (
	colorGreen  = lipgloss.Color("#04B575")
	colorRed    = lipgloss.Color("#FF4672")
	colorYellow = lipgloss.Color("#FDFF90")
	colorCyan   = lipgloss.Color("#00E5FF")
	colorSubtle = lipgloss.Color("#626262")
)

// Styles is the set of styles for one output stream. The zero value
// renders plain text.
type Styles struct {
	Header  lipgloss.Style
	Node    lipgloss.Style
	Step    lipgloss.Style
	Output  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Failure lipgloss.Style
	Muted   lipgloss.Style
}

// New returns coloured styles, or plain ones when color is false.
func New(color bool) Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return Styles{
			Header: plain, Node: plain, Step: plain, Output: plain,
			Success: plain, Warning: plain, Failure: plain, Muted: plain,
		}
	}
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true),
		Node:    lipgloss.NewStyle().Foreground(colorCyan),
		Step:    lipgloss.NewStyle().Foreground(colorCyan).Bold(true),
		Output:  lipgloss.NewStyle().Foreground(colorSubtle),
		Success: lipgloss.NewStyle().Foreground(colorGreen).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colorYellow),
		Failure: lipgloss.NewStyle().Foreground(colorRed).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(colorSubtle),
	}
}

// ColorEnabled reports whether f should get coloured output: it must be
// a terminal and NO_COLOR must be unset.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Progress styles one progress message from an operation. Step headers
// ("act: apt-get upgrade -y") and failures get their own styles; command
// output is indented and dimmed.
func (s Styles) Progress(msg string) string {
	switch {
	case strings.HasSuffix(msg, " complete"):
		return s.Success.Render(msg)
	case strings.Contains(msg, " failed: "), strings.Contains(msg, " exited with status "):
		if strings.HasSuffix(msg, ", continuing") {
			return s.Warning.Render(msg)
		}
		return s.Failure.Render(msg)
	}
	if step, rest, ok := strings.Cut(msg, ": "); ok && isStepName(step) {
		return s.Step.Render(step+":") + " " + rest
	}
	if i := strings.LastIndex(msg, " on "); i > 0 && !strings.ContainsAny(msg[i+4:], " \n") {
		return s.Header.Render(msg)
	}

	lines := strings.Split(msg, "\n")
	for i, line := range lines {
		lines[i] = "  " + s.Output.Render(line)
	}
	return strings.Join(lines, "\n")
}

// Scoped styles msg like Progress and prefixes every line with scope.
func (s Styles) Scoped(scope, msg string) string {
	prefix := s.Node.Render("["+scope+"]") + " "
	lines := strings.Split(s.Progress(msg), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func isStepName(s string) bool {
	switch s {
	case "refresh-index", "act", "reload", "cleanup":
		return true
	}
	return false
}

// Table renders rows under headers as borderless, left-aligned columns.
func (s Styles) Table(headers []string, rows [][]string) string {
	cell := lipgloss.NewStyle().PaddingRight(2)
	header := s.Header.PaddingRight(2)

	t := table.New().
		BorderTop(false).BorderBottom(false).
		BorderLeft(false).BorderRight(false).
		BorderColumn(false).BorderHeader(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	return t.Render()
}

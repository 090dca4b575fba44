// Package exec renders the results of a command run across several nodes.
package exec

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/grouper"
	"github.com/agent462/pvectl/internal/ui/style"
)

// Formatter formats grouped results for the terminal.
type Formatter struct {
	JSON       bool
	ErrorsOnly bool
	styles     style.Styles
}

// NewFormatter creates a Formatter with the given options.
func NewFormatter(jsonOutput, errorsOnly bool, styles style.Styles) *Formatter {
	return &Formatter{
		JSON:       jsonOutput,
		ErrorsOnly: errorsOnly,
		styles:     styles,
	}
}

// Format renders grouped results, norm group first, then a summary line.
func (f *Formatter) Format(grouped *grouper.GroupedResults) string {
	var b strings.Builder

	succeeded, nonZero := 0, 0
	for _, g := range grouped.Groups {
		if g.ExitCode != 0 {
			nonZero += len(g.Nodes)
		} else {
			succeeded += len(g.Nodes)
		}
		if f.ErrorsOnly && g.ExitCode == 0 {
			continue
		}
		f.writeGroup(&b, g, len(grouped.Groups))
		b.WriteString("\n")
	}

	for _, r := range grouped.Failed {
		f.writeUnreachable(&b, "failed", r)
	}
	for _, r := range grouped.TimedOut {
		f.writeUnreachable(&b, "timed out", r)
	}

	b.WriteString(summaryLine(succeeded, nonZero, len(grouped.Failed), len(grouped.TimedOut)))
	b.WriteString("\n")
	return b.String()
}

func (f *Formatter) writeGroup(b *strings.Builder, g grouper.OutputGroup, totalGroups int) {
	count := plural(len(g.Nodes), "node")

	switch {
	case g.ExitCode != 0:
		b.WriteString(f.styles.Failure.Render(fmt.Sprintf(" %s exited with status %d:", count, g.ExitCode)))
	case g.IsNorm && totalGroups == 1 && len(g.Nodes) == 1:
		b.WriteString(f.styles.Success.Render(fmt.Sprintf(" %s:", count)))
	case g.IsNorm:
		b.WriteString(f.styles.Success.Render(fmt.Sprintf(" %s identical:", count)))
	default:
		verb := "differ"
		if len(g.Nodes) == 1 {
			verb = "differs"
		}
		b.WriteString(f.styles.Warning.Render(fmt.Sprintf(" %s %s:", count, verb)))
	}
	b.WriteString("\n")
	b.WriteString("   " + f.styles.Node.Render(strings.Join(g.Nodes, ", ")) + "\n")

	if out := strings.TrimRight(g.Output, "\n"); out != "" {
		for _, line := range strings.Split(out, "\n") {
			b.WriteString("   " + line + "\n")
		}
	}

	if !g.IsNorm && g.Diff != "" {
		b.WriteString("\n")
		f.writeDiff(b, g.Diff)
	}
}

func (f *Formatter) writeDiff(b *strings.Builder, diff string) {
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "--- "), strings.HasPrefix(line, "+++ "), strings.HasPrefix(line, "@@"):
			line = f.styles.Node.Render(line)
		case strings.HasPrefix(line, "+"):
			line = f.styles.Success.Render(line)
		case strings.HasPrefix(line, "-"):
			line = f.styles.Failure.Render(line)
		}
		b.WriteString("   " + line + "\n")
	}
}

func (f *Formatter) writeUnreachable(b *strings.Builder, what string, r grouper.NodeResult) {
	b.WriteString(f.styles.Failure.Render(fmt.Sprintf(" 1 node %s:", what)))
	b.WriteString("\n   " + f.styles.Node.Render(r.Node))
	if r.Err != nil {
		// Connection errors carry a hint on a second line.
		msg := strings.ReplaceAll(r.Err.Error(), "\n", "\n   ")
		b.WriteString(" (" + msg + ")")
	}
	b.WriteString("\n\n")
}

// FormatOutcomes renders one line per node for an operation run across a
// fleet, followed by a summary.
func (f *Formatter) FormatOutcomes(op string, outcomes []executor.NodeOutcome) string {
	var b strings.Builder
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			b.WriteString(fmt.Sprintf(" %s %s %s\n", f.styles.Failure.Render("✗"), f.styles.Node.Render(o.Node),
				strings.ReplaceAll(o.Err.Error(), "\n", "\n   ")))
			continue
		}
		if f.ErrorsOnly {
			continue
		}
		b.WriteString(fmt.Sprintf(" %s %s %s\n", f.styles.Success.Render("✓"), f.styles.Node.Render(o.Node),
			f.styles.Muted.Render(o.Duration.Round(time.Millisecond).String())))
	}
	b.WriteString(fmt.Sprintf("%s: %d succeeded", op, len(outcomes)-failed))
	if failed > 0 {
		b.WriteString(fmt.Sprintf(", %d failed", failed))
	}
	b.WriteString("\n")
	return b.String()
}

// FormatJSON serializes per-node results as a JSON array.
func (f *Formatter) FormatJSON(results []grouper.NodeResult) ([]byte, error) {
	type jsonResult struct {
		Node     string `json:"node"`
		Output   string `json:"output"`
		ExitCode int    `json:"exit_code"`
		Duration string `json:"duration"`
		Error    string `json:"error,omitempty"`
	}

	out := make([]jsonResult, len(results))
	for i, r := range results {
		out[i] = jsonResult{
			Node:     r.Node,
			Output:   r.Result.Output,
			ExitCode: r.Result.ExitCode,
			Duration: r.Result.Duration.String(),
		}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

func summaryLine(succeeded, nonZero, failed, timedOut int) string {
	parts := []string{fmt.Sprintf("%d succeeded", succeeded)}
	if nonZero > 0 {
		parts = append(parts, fmt.Sprintf("%d non-zero exit", nonZero))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	if timedOut > 0 {
		parts = append(parts, fmt.Sprintf("%d timeout", timedOut))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

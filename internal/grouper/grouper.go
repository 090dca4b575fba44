// Package grouper folds per-node command results into groups of nodes
// that printed the same thing, so a cluster-wide command reads as one
// answer plus the outliers.
package grouper

import (
	"context"
	"errors"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/agent462/pvectl/internal/executor"
)

// NodeResult is the result of one command on one node.
type NodeResult struct {
	Node   string
	Result executor.Result
	Err    error
}

// OutputGroup is a set of nodes whose output and exit code matched.
type OutputGroup struct {
	Nodes    []string
	Output   string
	ExitCode int
	IsNorm   bool   // largest group; ties go to the first seen
	Diff     string // unified diff against the norm; empty for the norm
}

// GroupedResults holds the groups plus the nodes that never produced a
// result.
type GroupedResults struct {
	Groups   []OutputGroup
	Failed   []NodeResult
	TimedOut []NodeResult
}

// Group buckets results by identical output and exit code. The norm
// group comes first, the rest follow in the order they were first seen.
func Group(results []NodeResult) *GroupedResults {
	gr := &GroupedResults{}

	index := make(map[string]int)
	var groups []OutputGroup
	for _, r := range results {
		if r.Err != nil {
			if isTimeout(r.Err) {
				gr.TimedOut = append(gr.TimedOut, r)
			} else {
				gr.Failed = append(gr.Failed, r)
			}
			continue
		}

		k := strconv.Itoa(r.Result.ExitCode) + "\x00" + r.Result.Output
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, OutputGroup{Output: r.Result.Output, ExitCode: r.Result.ExitCode})
		}
		groups[i].Nodes = append(groups[i].Nodes, r.Node)
	}
	if len(groups) == 0 {
		return gr
	}

	norm := 0
	for i := range groups {
		if len(groups[i].Nodes) > len(groups[norm].Nodes) {
			norm = i
		}
	}
	groups[norm].IsNorm = true

	gr.Groups = append(gr.Groups, groups[norm])
	for i, g := range groups {
		if i == norm {
			continue
		}
		g.Diff = unifiedDiff(groups[norm].Output, g.Output, g.Nodes[0])
		gr.Groups = append(gr.Groups, g)
	}
	for i := range gr.Groups {
		sort.Strings(gr.Groups[i].Nodes)
	}
	return gr
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func unifiedDiff(norm, outlier, label string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(norm),
		B:        splitLines(outlier),
		FromFile: "norm",
		ToFile:   label,
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return diff
}

// splitLines splits s keeping line endings, as difflib expects.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	lines := strings.SplitAfter(s, "\n")
	return lines[:len(lines)-1]
}

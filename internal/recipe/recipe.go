// Package recipe runs health checks: short, read-only command lists run
// across several nodes, with each step's output grouped across nodes.
package recipe

import (
	"context"
	"fmt"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/grouper"
)

// Recipe is a named list of commands.
type Recipe struct {
	Name        string
	Description string
	Steps       []string
}

// StepResult holds the outcome of one step across nodes.
type StepResult struct {
	Command string
	Nodes   []string
	Results []grouper.NodeResult
	Grouped *grouper.GroupedResults
}

// NodeRunner runs a command on a node. *executor.NodeExecutor implements
// it.
type NodeRunner interface {
	RunOnNode(ctx context.Context, node, command string) (executor.Result, error)
}

// Runner runs recipes over a fleet.
type Runner struct {
	exec  NodeRunner
	fleet *executor.Fleet
}

// New creates a Runner.
func New(exec NodeRunner, fleet *executor.Fleet) *Runner {
	return &Runner{exec: exec, fleet: fleet}
}

// Run executes the steps of rec in order. Each step runs on all nodes
// concurrently. Nodes that could not be reached in one step are left out
// of the following steps; nonzero exits do not drop a node.
func (r *Runner) Run(ctx context.Context, nodes []string, rec Recipe) ([]StepResult, error) {
	results := make([]StepResult, 0, len(rec.Steps))
	active := nodes

	for _, command := range rec.Steps {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("check %s cancelled: %w", rec.Name, err)
		}
		if len(active) == 0 {
			break
		}

		stepResults := make([]grouper.NodeResult, len(active))
		outcomes := r.fleet.Each(ctx, active, func(ctx context.Context, node string) error {
			// Each task owns its own index; outcomes carry the error.
			i := indexOf(active, node)
			res, err := r.exec.RunOnNode(ctx, node, command)
			stepResults[i] = grouper.NodeResult{Node: node, Result: res, Err: err}
			return err
		})

		var reachable []string
		for i, o := range outcomes {
			if o.Err != nil && stepResults[i].Err == nil {
				// Timed out or cancelled before the task ran.
				stepResults[i] = grouper.NodeResult{Node: o.Node, Result: executor.Result{ExitCode: -1}, Err: o.Err}
			}
			if stepResults[i].Err == nil {
				reachable = append(reachable, o.Node)
			}
		}

		results = append(results, StepResult{
			Command: command,
			Nodes:   active,
			Results: stepResults,
			Grouped: grouper.Group(stepResults),
		})
		active = reachable
	}
	return results, nil
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

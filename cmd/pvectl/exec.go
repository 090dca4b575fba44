package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent462/pvectl/internal/grouper"
	"github.com/agent462/pvectl/internal/ui/exec"
)

var (
	execGuest      guestFlags
	execJSON       bool
	execErrorsOnly bool
)

var execCmd = &cobra.Command{
	Use:   "exec <selector> -- <command>...",
	Short: "Run a command on several nodes and group identical output",
	Long: `Run a shell command on every selected node at once. Nodes that print
the same thing are grouped together; outliers are shown with a diff
against the most common output.

Examples:
  pvectl exec @all -- pveversion
  pvectl exec pve1,pve2 -- 'cat /etc/apt/sources.list.d/*.list'
  pvectl exec @cluster --json -- uptime`,
	Args: cobra.MinimumNArgs(2),
	RunE: withApp(runExec),
}

func init() {
	execGuest.register(execCmd)
	execCmd.Flags().BoolVar(&execJSON, "json", false, "Print per-node results as JSON")
	execCmd.Flags().BoolVarP(&execErrorsOnly, "errors-only", "e", false, "Only show nodes that failed or exited nonzero")
}

func runExec(ctx context.Context, a *app, args []string) error {
	nodes, err := a.nodes(args[0])
	if err != nil {
		return err
	}
	if err := execGuest.single(nodes); err != nil {
		return err
	}
	command := strings.Join(args[1:], " ")

	results := make([]grouper.NodeResult, len(nodes))
	outcomes := a.fleet.Each(ctx, nodes, func(ctx context.Context, node string) error {
		res, err := a.exec.Run(ctx, execGuest.scope(node), command)
		results[indexOf(nodes, node)] = grouper.NodeResult{Node: node, Result: res, Err: err}
		return err
	})
	for i, o := range outcomes {
		if o.Err != nil && results[i].Err == nil {
			results[i] = grouper.NodeResult{Node: o.Node, Err: o.Err}
		}
	}

	f := exec.NewFormatter(execJSON, execErrorsOnly, a.styles)
	if execJSON {
		data, err := f.FormatJSON(results)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, string(data))
	} else {
		fmt.Fprint(a.out, f.Format(grouper.Group(results)))
	}

	for _, r := range results {
		if r.Err != nil || r.Result.ExitCode != 0 {
			return fmt.Errorf("command did not succeed on every node")
		}
	}
	return nil
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

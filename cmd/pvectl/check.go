package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent462/pvectl/internal/recipe"
	"github.com/agent462/pvectl/internal/ui/exec"
)

var checkCmd = &cobra.Command{
	Use:   "check <name> <selector>...",
	Short: "Run a health check across nodes",
	Long: `Run a named health check: a short list of read-only commands, each run
on every selected node, with identical output grouped. Built-in checks
can be replaced or extended under "checks:" in the config file.

Examples:
  pvectl check list
  pvectl check version @all
  pvectl check storage pve1,pve2`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runCheck),
}

func runCheck(ctx context.Context, a *app, args []string) error {
	if args[0] == "list" {
		var rows [][]string
		for _, r := range recipe.All(a.cfg.Checks) {
			rows = append(rows, []string{r.Name, r.Description, strings.Join(r.Steps, "; ")})
		}
		fmt.Fprintln(a.out, a.styles.Table([]string{"CHECK", "DESCRIPTION", "COMMANDS"}, rows))
		return nil
	}
	if len(args) < 2 {
		return fmt.Errorf("check %s needs a node selector", args[0])
	}

	rec, ok := recipe.Lookup(args[0], a.cfg.Checks)
	if !ok {
		return fmt.Errorf("unknown check %q (see pvectl check list)", args[0])
	}
	nodes, err := a.nodes(args[1:]...)
	if err != nil {
		return err
	}

	results, err := recipe.New(a.exec, a.fleet).Run(ctx, nodes, rec)
	f := exec.NewFormatter(false, false, a.styles)
	for _, step := range results {
		fmt.Fprintln(a.out, a.styles.Header.Render("$ "+step.Command))
		fmt.Fprintln(a.out, f.Format(step.Grouped))
	}
	return err
}

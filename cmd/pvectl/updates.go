package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/ops"
	"github.com/agent462/pvectl/internal/parser"
	"github.com/agent462/pvectl/internal/ui/review"
)

var updatesCmd = &cobra.Command{
	Use:   "updates",
	Short: "Check for and apply package updates",
}

var (
	updatesGuest guestFlags
	applyGuest   guestFlags
	applyReview  bool
)

var updatesCheckCmd = &cobra.Command{
	Use:   "check <selector>...",
	Short: "Refresh the package index and list upgradable packages",
	Long: `Refresh the package index and list upgradable packages.

Examples:
  pvectl updates check pve1
  pvectl updates check @cluster
  pvectl updates check pve1 --ct 105`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runUpdatesCheck),
}

var updatesApplyCmd = &cobra.Command{
	Use:   "apply <selector>...",
	Short: "Upgrade packages, then remove the ones no longer needed",
	Long: `Upgrade packages, then remove the ones no longer needed.

With --review the upgradable packages are listed first and only the ones
left selected are upgraded. Review works on one node at a time.

Examples:
  pvectl updates apply @all
  pvectl updates apply pve2 --review
  pvectl updates apply pve1 --vm 200`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runUpdatesApply),
}

func init() {
	updatesGuest.register(updatesCheckCmd)
	applyGuest.register(updatesApplyCmd)
	updatesApplyCmd.Flags().BoolVarP(&applyReview, "review", "r", false, "Choose the packages to upgrade interactively")

	updatesCmd.AddCommand(updatesCheckCmd)
	updatesCmd.AddCommand(updatesApplyCmd)
}

func runUpdatesCheck(ctx context.Context, a *app, args []string) error {
	nodes, err := a.nodes(args...)
	if err != nil {
		return err
	}
	if err := updatesGuest.single(nodes); err != nil {
		return err
	}

	var (
		mu    sync.Mutex
		found = make(map[string][]parser.PackageRecord, len(nodes))
	)
	err = a.onEach(ctx, "check updates", nodes, func(ctx context.Context, node string) error {
		pkgs, err := a.ops.CheckUpdates(ctx, updatesGuest.scope(node), nil)
		if err != nil {
			return err
		}
		mu.Lock()
		found[node] = pkgs
		mu.Unlock()
		return nil
	})

	for _, node := range nodes {
		pkgs, ok := found[node]
		if !ok {
			continue
		}
		scope := updatesGuest.scope(node)
		if len(pkgs) == 0 {
			fmt.Fprintf(a.out, "%s: up to date\n", a.styles.Node.Render(scope.String()))
			continue
		}
		fmt.Fprintf(a.out, "%s: %d upgradable\n", a.styles.Node.Render(scope.String()), len(pkgs))
		rows := make([][]string, len(pkgs))
		for i, p := range pkgs {
			rows[i] = []string{p.Name, p.VersionInfo, p.Candidate, p.Suite}
		}
		fmt.Fprintln(a.out, a.styles.Table([]string{"PACKAGE", "INSTALLED", "CANDIDATE", "SUITE"}, rows))
	}
	return err
}

func runUpdatesApply(ctx context.Context, a *app, args []string) error {
	nodes, err := a.nodes(args...)
	if err != nil {
		return err
	}
	if err := applyGuest.single(nodes); err != nil {
		return err
	}

	if applyReview {
		if len(nodes) != 1 {
			return fmt.Errorf("%w: --review works on one node, got %d", executor.ErrInvalidArgument, len(nodes))
		}
		return reviewAndApply(ctx, a, applyGuest.scope(nodes[0]))
	}

	return a.onEach(ctx, "apply updates", nodes, func(ctx context.Context, node string) error {
		_, err := a.ops.ApplyUpdates(ctx, applyGuest.scope(node), nil, a.sink(applyGuest.scope(node)))
		return err
	})
}

func reviewAndApply(ctx context.Context, a *app, scope executor.Scope) error {
	pkgs, err := a.ops.CheckUpdates(ctx, scope, a.sink(scope))
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		fmt.Fprintf(a.out, "%s: up to date\n", scope)
		return nil
	}

	title := fmt.Sprintf("%d upgradable packages on %s", len(pkgs), scope)
	selected, err := review.Run(ctx, title, pkgs, a.styles, os.Stdin, os.Stdout)
	if errors.Is(err, review.ErrAborted) {
		fmt.Fprintln(a.out, "aborted, no changes made")
		return nil
	}
	if err != nil {
		return err
	}

	_, err = a.ops.ApplyUpdates(ctx, scope, selected, a.sink(scope))
	if errors.Is(err, ops.ErrNothingSelected) {
		fmt.Fprintln(a.out, "nothing selected, no changes made")
		return nil
	}
	return err
}

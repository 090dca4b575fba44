package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/ops"
	"github.com/agent462/pvectl/internal/parser"
)

var guestsCmd = &cobra.Command{
	Use:     "guests",
	Aliases: []string{"guest"},
	Short:   "List containers and VMs and change their power state",
}

var guestsListCmd = &cobra.Command{
	Use:   "list <selector>...",
	Short: "List the containers and VMs on each node",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		nodes, err := a.nodes(args...)
		if err != nil {
			return err
		}

		var (
			mu     sync.Mutex
			guests = make(map[string][]parser.GuestRecord, len(nodes))
		)
		err = a.onEach(ctx, "list guests", nodes, func(ctx context.Context, node string) error {
			cts, err := a.ops.ListContainers(ctx, node)
			if err != nil {
				return err
			}
			vms, err := a.ops.ListVMs(ctx, node)
			if err != nil {
				return err
			}
			mu.Lock()
			guests[node] = append(cts, vms...)
			mu.Unlock()
			return nil
		})

		var rows [][]string
		for _, node := range nodes {
			for _, g := range guests[node] {
				rows = append(rows, []string{node, string(g.Kind), g.ID, g.Name, g.Status, memory(g)})
			}
		}
		if len(rows) > 0 {
			fmt.Fprintln(a.out, a.styles.Table([]string{"NODE", "KIND", "ID", "NAME", "STATUS", "MEMORY"}, rows))
		}
		return err
	}),
}

func memory(g parser.GuestRecord) string {
	if g.MemoryMB == 0 {
		return "-"
	}
	return strconv.Itoa(g.MemoryMB) + " MB"
}

// guestActionCmd builds the subcommand for one power action.
func guestActionCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <node> <ct|vm> <id>...",
		Short: strings.ToUpper(action[:1]) + action[1:] + " containers or VMs",
		Long: fmt.Sprintf(`%s containers or VMs on one node. Several IDs are handled
one after another.

Examples:
  pvectl guests %s pve1 ct 105
  pvectl guests %s pve2 vm 200 201`, strings.ToUpper(action[:1])+action[1:], action, action),
		Args: cobra.MinimumNArgs(3),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			node := args[0]
			kind := parser.GuestKind(args[1])
			if kind != parser.KindContainer && kind != parser.KindVM {
				return fmt.Errorf("%w: guest kind %q (want ct or vm)", executor.ErrInvalidArgument, args[1])
			}
			for _, id := range args[2:] {
				if _, err := a.ops.GuestAction(ctx, node, kind, id, action, a.sink(executor.NodeScope(node))); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}

func init() {
	guestsCmd.AddCommand(guestsListCmd)
	for _, action := range ops.GuestActions {
		guestsCmd.AddCommand(guestActionCmd(action))
	}
}

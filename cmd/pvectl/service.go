package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/agent462/pvectl/internal/ops"
)

var serviceCmd = &cobra.Command{
	Use:     "service",
	Aliases: []string{"svc"},
	Short:   "List and control systemd services",
}

var (
	serviceGuest guestFlags
	listAll      bool
)

var serviceListCmd = &cobra.Command{
	Use:   "list <node>",
	Short: "List service units",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		services, err := a.ops.ListServices(ctx, serviceGuest.scope(args[0]))
		if err != nil {
			return err
		}
		var rows [][]string
		for _, s := range services {
			if !listAll && s.Load == "not-found" {
				continue
			}
			rows = append(rows, []string{s.Name(), s.Active, s.Sub, s.Description})
		}
		fmt.Fprintln(a.out, a.styles.Table([]string{"SERVICE", "ACTIVE", "SUB", "DESCRIPTION"}, rows))
		return nil
	}),
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status <selector> <unit>",
	Short: "Show whether a unit is active",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		nodes, err := a.nodes(args[0])
		if err != nil {
			return err
		}
		if err := serviceGuest.single(nodes); err != nil {
			return err
		}

		var (
			mu     sync.Mutex
			states = make(map[string]string, len(nodes))
		)
		err = a.onEach(ctx, "status", nodes, func(ctx context.Context, node string) error {
			state, err := a.ops.ServiceStatus(ctx, serviceGuest.scope(node), args[1])
			if err != nil {
				return err
			}
			mu.Lock()
			states[node] = state
			mu.Unlock()
			return nil
		})

		var rows [][]string
		for _, node := range nodes {
			if state, ok := states[node]; ok {
				rows = append(rows, []string{serviceGuest.scope(node).String(), args[1], stateStyle(a, state)})
			}
		}
		if len(rows) > 0 {
			fmt.Fprintln(a.out, a.styles.Table([]string{"NODE", "UNIT", "STATE"}, rows))
		}
		return err
	}),
}

func stateStyle(a *app, state string) string {
	switch state {
	case "active":
		return a.styles.Success.Render(state)
	case "failed":
		return a.styles.Failure.Render(state)
	default:
		return a.styles.Warning.Render(state)
	}
}

// serviceActionCmd builds the subcommand for one systemctl verb.
func serviceActionCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <selector> <unit>",
		Short: strings.ToUpper(action[:1]) + action[1:] + " a unit",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			nodes, err := a.nodes(args[0])
			if err != nil {
				return err
			}
			if err := serviceGuest.single(nodes); err != nil {
				return err
			}
			return a.onEach(ctx, "service "+action, nodes, func(ctx context.Context, node string) error {
				_, err := a.ops.ControlService(ctx, serviceGuest.scope(node), action, args[1], a.sink(serviceGuest.scope(node)))
				return err
			})
		}),
	}
}

func init() {
	serviceListCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include units whose unit file is missing")

	cmds := []*cobra.Command{serviceListCmd, serviceStatusCmd}
	for _, action := range ops.ServiceActions {
		cmds = append(cmds, serviceActionCmd(action))
	}
	for _, c := range cmds {
		serviceGuest.register(c)
		serviceCmd.AddCommand(c)
	}
}

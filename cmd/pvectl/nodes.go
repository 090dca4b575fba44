package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agent462/pvectl/internal/config"
	"github.com/agent462/pvectl/internal/discover"
	"github.com/agent462/pvectl/internal/executor"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List configured nodes and discover new ones",
}

var nodesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured nodes and groups",
	Args:  cobra.NoArgs,
	RunE: withApp(func(_ context.Context, a *app, _ []string) error {
		var rows [][]string
		for _, name := range a.cfg.NodeNames() {
			target, err := a.cfg.Resolve(name, nil)
			if err != nil {
				return err
			}
			rows = append(rows, []string{name, target.Credentials.User + "@" + target.Addr(), orDash(target.ProxyJump), groupsOf(a.cfg, name)})
		}
		if len(rows) == 0 {
			fmt.Fprintf(a.out, "no nodes configured in %s\n", a.cfgPath)
			return nil
		}
		fmt.Fprintln(a.out, a.styles.Table([]string{"NODE", "ADDRESS", "JUMP", "GROUPS"}, rows))
		return nil
	}),
}

func groupsOf(cfg *config.Config, node string) string {
	var groups []string
	for name, members := range cfg.Groups {
		for _, m := range members {
			if m == node {
				groups = append(groups, name)
				break
			}
		}
	}
	sort.Strings(groups)
	return orDash(strings.Join(groups, ","))
}

var discoverWrite bool

var nodesDiscoverCmd = &cobra.Command{
	Use:   "discover <cidr>",
	Short: "Scan a network for Proxmox VE nodes",
	Long: `Probe every address in an IPv4 range for SSH and for the Proxmox web
interface on port 8006. Hosts answering on 8006 are reported as nodes.

With --write the nodes found are added to the config file, named after
their reverse DNS name. Existing entries are left alone.

Examples:
  pvectl nodes discover 10.0.0.0/24
  pvectl nodes discover 192.168.1.0/24 --write`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runDiscover),
}

func init() {
	nodesDiscoverCmd.Flags().BoolVarP(&discoverWrite, "write", "w", false, "Add discovered nodes to the config file")

	nodesCmd.AddCommand(nodesListCmd)
	nodesCmd.AddCommand(nodesDiscoverCmd)
}

func runDiscover(ctx context.Context, a *app, args []string) error {
	hosts, err := discover.NewScanner().Scan(ctx, args[0])
	if err != nil {
		return err
	}

	var rows [][]string
	added := 0
	for _, h := range hosts {
		kind := "ssh only"
		if h.Web {
			kind = "proxmox"
		}
		rows = append(rows, []string{h.Address.String(), orDash(h.Name), kind})

		if !discoverWrite || !h.Web {
			continue
		}
		name := h.Name
		if executor.ValidateNodeName(name) != nil {
			name = "pve-" + strings.ReplaceAll(h.Address.String(), ".", "-")
		}
		if _, exists := a.cfg.Nodes[name]; exists {
			a.logger.Debug("node already configured", zap.String("node", name))
			continue
		}
		a.cfg.Nodes[name] = config.Node{Hostname: h.Address.String()}
		added++
	}

	if len(rows) == 0 {
		fmt.Fprintf(a.out, "no hosts answered in %s\n", args[0])
		return nil
	}
	fmt.Fprintln(a.out, a.styles.Table([]string{"ADDRESS", "NAME", "KIND"}, rows))

	if added > 0 {
		if err := config.Save(a.cfgPath, a.cfg); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "added %s to %s\n", countNodes(added), a.cfgPath)
	}
	return nil
}

func countNodes(n int) string {
	if n == 1 {
		return "1 node"
	}
	return strconv.Itoa(n) + " nodes"
}

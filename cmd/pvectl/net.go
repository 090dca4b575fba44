package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/parser"
)

var netCmd = &cobra.Command{
	Use:     "net",
	Aliases: []string{"network"},
	Short:   "Inspect and change network configuration",
}

var (
	netGuest   guestFlags
	dnsServers []string
	dnsSearch  []string
	dnsDomain  string
)

var netInterfacesCmd = &cobra.Command{
	Use:   "interfaces <node>",
	Short: "List network interfaces",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		ifaces, err := a.ops.Interfaces(ctx, netGuest.scope(args[0]))
		if err != nil {
			return err
		}
		rows := make([][]string, len(ifaces))
		for i, ifc := range ifaces {
			rows[i] = []string{ifc.Name, ifc.State, strconv.Itoa(ifc.MTU), orDash(ifc.Master), orDash(ifc.MAC)}
		}
		fmt.Fprintln(a.out, a.styles.Table([]string{"INTERFACE", "STATE", "MTU", "MASTER", "MAC"}, rows))
		return nil
	}),
}

var netShowCmd = &cobra.Command{
	Use:   "show <node>",
	Short: "Print /etc/network/interfaces",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		content, err := a.ops.ReadNetworkConfig(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(a.out, content)
		return nil
	}),
}

var netApplyCmd = &cobra.Command{
	Use:   "apply <node> <file>",
	Short: "Replace /etc/network/interfaces with a local file and reload it",
	Long: `Upload a local file as the node's /etc/network/interfaces and apply it
with ifreload -a. The previous file is kept as /etc/network/interfaces.bak.

A bad configuration can cut the node off the network. Make sure you have
console access before applying changes to the management interface.`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		content, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}
		_, err = a.ops.WriteNetworkConfig(ctx, args[0], string(content), a.sink(executor.NodeScope(args[0])))
		return err
	}),
}

var netDNSCmd = &cobra.Command{
	Use:   "dns <node>",
	Short: "Show the resolver configuration",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		cfg, err := a.ops.ReadDNS(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, a.styles.Table([]string{"SETTING", "VALUE"}, [][]string{
			{"domain", orDash(cfg.Domain)},
			{"search", orDash(strings.Join(cfg.Search, " "))},
			{"nameservers", orDash(strings.Join(cfg.Nameservers, " "))},
		}))
		return nil
	}),
}

var netSetDNSCmd = &cobra.Command{
	Use:   "set-dns <node>",
	Short: "Rewrite /etc/resolv.conf",
	Long: `Rewrite the node's /etc/resolv.conf from flags.

Examples:
  pvectl net set-dns pve1 --nameserver 10.0.0.1 --nameserver 1.1.1.1 --search lab.example`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		cfg := parser.DNSConfig{Domain: dnsDomain, Search: dnsSearch, Nameservers: dnsServers}
		_, err := a.ops.WriteDNS(ctx, args[0], cfg, a.sink(executor.NodeScope(args[0])))
		return err
	}),
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	netGuest.register(netInterfacesCmd)
	netSetDNSCmd.Flags().StringArrayVar(&dnsServers, "nameserver", nil, "Nameserver IP address (repeatable)")
	netSetDNSCmd.Flags().StringSliceVar(&dnsSearch, "search", nil, "Search domains")
	netSetDNSCmd.Flags().StringVar(&dnsDomain, "domain", "", "Local domain name")
	_ = netSetDNSCmd.MarkFlagRequired("nameserver")

	netCmd.AddCommand(netInterfacesCmd)
	netCmd.AddCommand(netShowCmd)
	netCmd.AddCommand(netApplyCmd)
	netCmd.AddCommand(netDNSCmd)
	netCmd.AddCommand(netSetDNSCmd)
}

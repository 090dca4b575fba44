package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var pkgCmd = &cobra.Command{
	Use:   "pkg",
	Short: "Install, remove and list packages",
}

var (
	installGuest guestFlags
	removeGuest  guestFlags
	listGuest    guestFlags
)

var pkgInstallCmd = &cobra.Command{
	Use:   "install <selector> <package>...",
	Short: "Install packages",
	Long: `Install packages on every selected node, or inside one guest.

Examples:
  pvectl pkg install @cluster htop iftop
  pvectl pkg install pve1 --ct 105 curl`,
	Args: cobra.MinimumNArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		nodes, err := a.nodes(args[0])
		if err != nil {
			return err
		}
		if err := installGuest.single(nodes); err != nil {
			return err
		}
		return a.onEach(ctx, "install", nodes, func(ctx context.Context, node string) error {
			_, err := a.ops.Install(ctx, installGuest.scope(node), args[1:], a.sink(installGuest.scope(node)))
			return err
		})
	}),
}

var pkgRemoveCmd = &cobra.Command{
	Use:     "remove <selector> <package>...",
	Aliases: []string{"uninstall"},
	Short:   "Remove packages",
	Args:    cobra.MinimumNArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		nodes, err := a.nodes(args[0])
		if err != nil {
			return err
		}
		if err := removeGuest.single(nodes); err != nil {
			return err
		}
		return a.onEach(ctx, "uninstall", nodes, func(ctx context.Context, node string) error {
			_, err := a.ops.Uninstall(ctx, removeGuest.scope(node), args[1:], a.sink(removeGuest.scope(node)))
			return err
		})
	}),
}

var pkgListCmd = &cobra.Command{
	Use:   "list <node>",
	Short: "List installed packages",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		pkgs, err := a.ops.InstalledPackages(ctx, listGuest.scope(args[0]))
		if err != nil {
			return err
		}
		rows := make([][]string, len(pkgs))
		for i, p := range pkgs {
			rows[i] = []string{p.Name, p.VersionInfo}
		}
		fmt.Fprintln(a.out, a.styles.Table([]string{"PACKAGE", "VERSION"}, rows))
		return nil
	}),
}

func init() {
	installGuest.register(pkgInstallCmd)
	removeGuest.register(pkgRemoveCmd)
	listGuest.register(pkgListCmd)

	pkgCmd.AddCommand(pkgInstallCmd)
	pkgCmd.AddCommand(pkgRemoveCmd)
	pkgCmd.AddCommand(pkgListCmd)
}

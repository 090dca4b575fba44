package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agent462/pvectl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var (
	initForce  bool
	initDomain string
	initNodes  []string
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a config file with the defaults and, optionally, a first set of
nodes grouped as "cluster".

Examples:
  pvectl config init --domain lab.example --node pve1 --node pve2 --node pve3`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		cfg := config.DefaultConfig()
		cfg.Domain = initDomain
		for _, n := range initNodes {
			cfg.Nodes[n] = config.Node{}
		}
		if len(initNodes) > 0 {
			cfg.Groups["cluster"] = initNodes
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		path := cfgFile
		if path == "" {
			path = config.DefaultConfigPath()
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
	configInitCmd.Flags().StringVar(&initDomain, "domain", "", "Domain appended to node names")
	configInitCmd.Flags().StringArrayVar(&initNodes, "node", nil, "Node name (repeatable)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

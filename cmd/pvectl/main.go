// Command pvectl manages Proxmox VE nodes, their containers and their VMs
// over SSH.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agent462/pvectl/internal/executor"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	cfgFile  string
	verbose  bool
	logFile  string
	noColor  bool
	userFlag string
	askPass  bool
	insecure bool
)

var rootCmd = &cobra.Command{
	Use:   "pvectl",
	Short: "Manage Proxmox VE nodes, containers and VMs over SSH",
	Long: `pvectl runs maintenance on Proxmox VE hosts over SSH: package
updates, installs and removals, systemd services, guest power actions
and network configuration. Commands reach into LXC containers through
pct exec and into VMs through the QEMU guest agent.

Nodes come from ~/.config/pvectl/config.yaml; any name not listed there
is dialed as-is with the defaults and ~/.ssh/config applied.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/pvectl/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every command and connection to stderr")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file, rotated at 10 MB")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "SSH user, overriding the config")
	rootCmd.PersistentFlags().BoolVar(&askPass, "ask-pass", false, "Prompt for the SSH password once and use it for every node")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "Skip host key verification")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(updatesCmd)
	rootCmd.AddCommand(pkgCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(guestsCmd)
	rootCmd.AddCommand(netCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(tunnelCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status: 2 for bad input,
// 3 when a node could not be reached, 1 otherwise.
func exitCode(err error) int {
	var connErr *executor.ConnectionError
	switch {
	case errors.Is(err, executor.ErrInvalidArgument):
		return 2
	case errors.As(err, &connErr):
		return 3
	default:
		return 1
	}
}

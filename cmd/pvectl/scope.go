package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agent462/pvectl/internal/executor"
)

// guestFlags selects a container or VM on each node instead of the node
// itself.
type guestFlags struct {
	ct string
	vm string
}

func (g *guestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&g.ct, "ct", "", "Run inside this LXC container (pct exec)")
	cmd.Flags().StringVar(&g.vm, "vm", "", "Run inside this VM (QEMU guest agent)")
	cmd.MarkFlagsMutuallyExclusive("ct", "vm")
}

func (g *guestFlags) scope(node string) executor.Scope {
	switch {
	case g.ct != "":
		return executor.ContainerScope(node, g.ct)
	case g.vm != "":
		return executor.VMScope(node, g.vm)
	default:
		return executor.NodeScope(node)
	}
}

// single fails unless nodes holds exactly one node.
func (g *guestFlags) single(nodes []string) error {
	if (g.ct != "" || g.vm != "") && len(nodes) != 1 {
		return fmt.Errorf("%w: --ct and --vm need exactly one node, got %d", executor.ErrInvalidArgument, len(nodes))
	}
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agent462/pvectl/internal/tunnel"
)

var tunnelLocalPort int

var tunnelCmd = &cobra.Command{
	Use:   "tunnel <node> [forward]",
	Short: "Forward a local port to a node, by default its web interface",
	Long: `Forward a local port through SSH. Without a forward spec the node's
web interface (port 8006) is forwarded, so it can be opened at
https://localhost:<port> from behind a bastion. The tunnel stays open
until interrupted.

A forward spec is remotePort, localPort:remotePort or
localPort:remoteHost:remotePort, as with ssh -L.

Examples:
  pvectl tunnel pve1
  pvectl tunnel pve1 --port 18006
  pvectl tunnel pve1 3128:10.0.0.5:3128`,
	Args: cobra.RangeArgs(1, 2),
	RunE: withApp(runTunnel),
}

func init() {
	tunnelCmd.Flags().IntVarP(&tunnelLocalPort, "port", "p", tunnel.WebPort, "Local port for the web interface forward")
}

func runTunnel(ctx context.Context, a *app, args []string) error {
	node := args[0]
	fwd := tunnel.WebForward(tunnelLocalPort)
	if len(args) == 2 {
		var err error
		if fwd, err = tunnel.ParseForwardSpec(args[1]); err != nil {
			return err
		}
	}

	target, err := a.exec.Target(node)
	if err != nil {
		return err
	}
	client, err := a.transport.Connect(ctx, target)
	if err != nil {
		return err
	}
	defer client.Close()

	t, err := tunnel.Open(ctx, client.SSHClient(), node, fwd, a.logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "forwarding %s -> %s on %s (Ctrl-C to stop)\n",
		a.styles.Node.Render(t.LocalAddr), t.RemoteAddr, node)
	if fwd.RemotePort == tunnel.WebPort {
		fmt.Fprintf(a.out, "web interface: https://%s\n", t.LocalAddr)
	}

	<-t.Done()
	t.Wait()
	return nil
}

package tunnel

import (
	"fmt"
	"strconv"
	"strings"
)

// WebPort is the port pveproxy serves the Proxmox web interface on.
const WebPort = 8006

// Forward describes one local port forward.
type Forward struct {
	LocalPort  int
	RemoteHost string
	RemotePort int
}

// WebForward forwards localPort to the node's own web interface.
func WebForward(localPort int) Forward {
	return Forward{LocalPort: localPort, RemoteHost: "localhost", RemotePort: WebPort}
}

// ParseForwardSpec parses a forward in one of the forms
//
//	remotePort                      (same local port, remote host localhost)
//	localPort:remotePort            (remote host localhost)
//	localPort:remoteHost:remotePort (as ssh -L)
func ParseForwardSpec(spec string) (Forward, error) {
	parts := strings.Split(spec, ":")
	var local, host, remote string
	switch len(parts) {
	case 1:
		local, host, remote = parts[0], "localhost", parts[0]
	case 2:
		local, host, remote = parts[0], "localhost", parts[1]
	case 3:
		local, host, remote = parts[0], parts[1], parts[2]
	default:
		return Forward{}, fmt.Errorf("invalid forward spec %q: expected [localPort:[remoteHost:]]remotePort", spec)
	}

	localPort, err := strconv.Atoi(local)
	if err != nil {
		return Forward{}, fmt.Errorf("invalid local port %q: %w", local, err)
	}
	if localPort < 0 || localPort > 65535 {
		return Forward{}, fmt.Errorf("local port %d out of range (0-65535)", localPort)
	}
	if host == "" {
		return Forward{}, fmt.Errorf("remote host must not be empty in spec %q", spec)
	}
	remotePort, err := strconv.Atoi(remote)
	if err != nil {
		return Forward{}, fmt.Errorf("invalid remote port %q: %w", remote, err)
	}
	if remotePort < 1 || remotePort > 65535 {
		return Forward{}, fmt.Errorf("remote port %d out of range (1-65535)", remotePort)
	}

	return Forward{LocalPort: localPort, RemoteHost: host, RemotePort: remotePort}, nil
}

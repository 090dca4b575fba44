package executor

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Credentials holds the login material for a node.
type Credentials struct {
	User          string
	Password      string
	IdentityFiles []string
}

// Target identifies where a command runs. It is resolved for every call
// and never cached.
type Target struct {
	Node        string // logical node name, e.g. "pve1"
	Host        string // hostname to dial, e.g. "pve1.lab.example"
	Port        int
	Credentials Credentials
	ProxyJump   string
}

// Addr returns host:port, defaulting the port to 22.
func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Result holds the outcome of a single remote command.
type Result struct {
	ExitCode int
	Output   string // stdout followed by stderr, as captured for this invocation
	Duration time.Duration
}

// OK reports whether the command exited with status zero.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Transport executes one command on one host. Implementations open and
// release their own connection per call.
type Transport interface {
	Execute(ctx context.Context, target Target, command string) (Result, error)
}

// Resolver turns a node name into a Target. A non-nil override replaces
// the configured credentials.
type Resolver interface {
	Resolve(node string, override *Credentials) (Target, error)
}

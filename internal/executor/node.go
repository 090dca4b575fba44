package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agent462/pvectl/internal/parser"
)

// ContainerCommand wraps command for execution inside an LXC container.
// The command is not escaped; it is passed through after the "--".
func ContainerCommand(ctid, command string) string {
	return fmt.Sprintf("pct exec %s -- %s", ctid, command)
}

// GuestExecTimeout is how long qm waits for a VM command to exit before
// printing its status. qm's own default is 30 seconds.
const GuestExecTimeout = time.Hour

// VMCommand wraps command for execution inside a VM through the QEMU
// guest agent.
func VMCommand(vmid, command string) string {
	return fmt.Sprintf("qm guest exec %s --timeout %d -- %s", vmid, int(GuestExecTimeout.Seconds()), command)
}

// NodeExecutor runs commands on Proxmox nodes and on the guests they host.
type NodeExecutor struct {
	resolver  Resolver
	transport Transport
	override  *Credentials
	logger    *zap.Logger
}

// NodeOption configures a NodeExecutor.
type NodeOption func(*NodeExecutor)

// WithLogger sets the logger used for command tracing.
func WithLogger(l *zap.Logger) NodeOption {
	return func(e *NodeExecutor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewNodeExecutor creates a NodeExecutor that resolves node names with
// resolver and runs commands through transport.
func NewNodeExecutor(resolver Resolver, transport Transport, opts ...NodeOption) *NodeExecutor {
	e := &NodeExecutor{
		resolver:  resolver,
		transport: transport,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCredentials returns a copy of e that uses creds for every call
// instead of the configured credentials.
func (e *NodeExecutor) WithCredentials(creds Credentials) *NodeExecutor {
	cp := *e
	cp.override = &creds
	return &cp
}

// Target resolves node into a fresh Target.
func (e *NodeExecutor) Target(node string) (Target, error) {
	if err := ValidateNodeName(node); err != nil {
		return Target{}, err
	}
	target, err := e.resolver.Resolve(node, e.override)
	if err != nil {
		return Target{}, fmt.Errorf("resolve node %s: %w", node, err)
	}
	return target, nil
}

// RunOnNode runs command on the node's host shell.
func (e *NodeExecutor) RunOnNode(ctx context.Context, node, command string) (Result, error) {
	target, err := e.Target(node)
	if err != nil {
		return Result{}, err
	}
	e.logger.Debug("run on node",
		zap.String("node", node),
		zap.String("host", target.Host),
		zap.String("command", command),
	)
	return e.transport.Execute(ctx, target, command)
}

// RunInContainer runs command inside container ctid on node.
func (e *NodeExecutor) RunInContainer(ctx context.Context, node, ctid, command string) (Result, error) {
	if err := ValidateGuestID(ctid); err != nil {
		return Result{}, err
	}
	return e.RunOnNode(ctx, node, ContainerCommand(ctid, command))
}

// RunInVM runs command inside VM vmid on node. The guest agent must be
// installed in the VM. When the node prints the agent's JSON status, the
// guest's own exit code and output are returned; otherwise the node's
// result is returned as-is. A command still running when qm stops
// waiting yields exit code -1 and an output line saying so.
func (e *NodeExecutor) RunInVM(ctx context.Context, node, vmid, command string) (Result, error) {
	if err := ValidateGuestID(vmid); err != nil {
		return Result{}, err
	}
	res, err := e.RunOnNode(ctx, node, VMCommand(vmid, command))
	if err != nil {
		return res, err
	}
	ge, ok := parser.ParseGuestExec(res.Output)
	if !ok {
		return res, nil
	}
	if !ge.Exited {
		e.logger.Warn("guest command still running",
			zap.String("node", node),
			zap.String("vmid", vmid),
			zap.Int("pid", ge.PID),
		)
		return Result{
			ExitCode: -1,
			Output:   fmt.Sprintf("%sguest agent stopped waiting after %s; pid %d is still running in VM %s\n", ge.Output, GuestExecTimeout, ge.PID, vmid),
			Duration: res.Duration,
		}, nil
	}
	return Result{ExitCode: ge.ExitCode, Output: ge.Output, Duration: res.Duration}, nil
	return res, nil
}

// Run dispatches command to the node, container or VM named by scope.
func (e *NodeExecutor) Run(ctx context.Context, scope Scope, command string) (Result, error) {
	switch scope.Kind {
	case ScopeContainer:
		return e.RunInContainer(ctx, scope.Node, scope.ID, command)
	case ScopeVM:
		return e.RunInVM(ctx, scope.Node, scope.ID, command)
	default:
		return e.RunOnNode(ctx, scope.Node, command)
	}
}

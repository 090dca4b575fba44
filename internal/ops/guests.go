package ops

import (
	"context"
	"fmt"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/parser"
)

// GuestActions are the power actions GuestAction accepts.
var GuestActions = []string{"start", "stop", "shutdown", "reboot"}

// ListContainers lists the LXC containers on node.
func (s *Service) ListContainers(ctx context.Context, node string) ([]parser.GuestRecord, error) {
	output, err := s.query(ctx, executor.NodeScope(node), "pct list")
	if err != nil {
		return nil, err
	}
	return parser.ParseContainers(output), nil
}

// ListVMs lists the QEMU VMs on node.
func (s *Service) ListVMs(ctx context.Context, node string) ([]parser.GuestRecord, error) {
	output, err := s.query(ctx, executor.NodeScope(node), "qm list")
	if err != nil {
		return nil, err
	}
	return parser.ParseVMs(output), nil
}

// GuestAction runs a power action on a container or VM from its node:
// `pct <action> <id>` or `qm <action> <id>`.
func (s *Service) GuestAction(ctx context.Context, node string, kind parser.GuestKind, id, action string, sink Sink) (Outcome, error) {
	scope := executor.NodeScope(node)
	op := fmt.Sprintf("%s %s %s", kind, action, id)
	fail := Outcome{Operation: op, Scope: scope, State: StepFailed}

	var tool string
	switch kind {
	case parser.KindContainer:
		tool = "pct"
	case parser.KindVM:
		tool = "qm"
	default:
		return fail, fmt.Errorf("%w: guest kind %q", executor.ErrInvalidArgument, kind)
	}
	if !contains(GuestActions, action) {
		return fail, fmt.Errorf("%w: guest action %q", executor.ErrInvalidArgument, action)
	}
	if err := executor.ValidateGuestID(id); err != nil {
		return fail, err
	}

	return s.run(ctx, op, scope, []plannedStep{
		{step: StepAct, command: fmt.Sprintf("%s %s %s", tool, action, id)},
	}, sink)
}

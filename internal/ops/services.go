package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/parser"
)

const cmdListServices = "systemctl list-units --type=service --all --no-legend --plain"

// ServiceActions are the systemctl verbs ControlService accepts.
var ServiceActions = []string{"start", "stop", "restart", "reload", "enable", "disable"}

// ListServices lists the service units known to systemd.
func (s *Service) ListServices(ctx context.Context, scope executor.Scope) ([]parser.ServiceRecord, error) {
	output, err := s.query(ctx, scope, cmdListServices)
	if err != nil {
		return nil, err
	}
	return parser.ParseServices(output), nil
}

// ControlService runs `systemctl <action> <unit>`.
func (s *Service) ControlService(ctx context.Context, scope executor.Scope, action, unit string, sink Sink) (Outcome, error) {
	op := "service " + action
	if !contains(ServiceActions, action) {
		return Outcome{Operation: op, Scope: scope, State: StepFailed},
			fmt.Errorf("%w: service action %q (want one of %s)", executor.ErrInvalidArgument, action, strings.Join(ServiceActions, ", "))
	}
	if err := executor.ValidateServiceName(unit); err != nil {
		return Outcome{Operation: op, Scope: scope, State: StepFailed}, err
	}
	return s.run(ctx, op, scope, []plannedStep{
		{step: StepAct, command: fmt.Sprintf("systemctl %s %s", action, unit)},
	}, sink)
}

// ServiceStatus returns the state printed by `systemctl is-active`, such
// as "active", "inactive" or "failed". is-active exits nonzero for every
// state but active, so only a silent failure is an error.
func (s *Service) ServiceStatus(ctx context.Context, scope executor.Scope, unit string) (string, error) {
	if err := executor.ValidateServiceName(unit); err != nil {
		return "", err
	}
	command := "systemctl is-active " + unit
	res, err := s.exec.Run(ctx, scope, command)
	if err != nil {
		return "", err
	}
	state := strings.TrimSpace(res.Output)
	if state == "" {
		return "", &executor.CommandFailure{Step: "query", Command: command, ExitCode: res.ExitCode, Output: res.Output}
	}
	// Only the last line is the state; anything before it is noise such
	// as a login banner.
	if i := strings.LastIndex(state, "\n"); i >= 0 {
		state = strings.TrimSpace(state[i+1:])
	}
	return state, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

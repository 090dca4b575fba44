// Package ops sequences remote commands into the operations pvectl
// offers: package updates, installs and removals, service control, guest
// power actions and network configuration.
//
// Multi-step operations run as a small state machine:
//
//	Start -> RefreshIndex -> Act -> Reload -> Cleanup -> Done
//
// with Failed reachable from every step. Steps an operation does not need
// are skipped. Each step emits a progress message, runs exactly one
// command and waits for it. A nonzero exit aborts the operation with an
// *executor.CommandFailure, except in Cleanup, where it is reported and
// the operation carries on.
package ops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agent462/pvectl/internal/executor"
)

// Step is a state of the operation state machine.
type Step int

const (
	StepStart Step = iota
	StepRefreshIndex
	StepAct
	StepReload
	StepCleanup
	StepDone
	StepFailed
)

func (s Step) String() string {
	switch s {
	case StepStart:
		return "start"
	case StepRefreshIndex:
		return "refresh-index"
	case StepAct:
		return "act"
	case StepReload:
		return "reload"
	case StepCleanup:
		return "cleanup"
	case StepDone:
		return "done"
	case StepFailed:
		return "failed"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Sink receives progress messages in step order. A nil Sink discards them.
type Sink func(message string)

// StepReport records one step that was run.
type StepReport struct {
	Step    Step
	Command string
	Result  executor.Result
}

// Outcome summarises a finished operation.
type Outcome struct {
	Operation string
	Scope     executor.Scope
	Steps     []StepReport
	State     Step // StepDone or StepFailed
}

// Runner runs one command in a scope. *executor.NodeExecutor implements it.
type Runner interface {
	Run(ctx context.Context, scope executor.Scope, command string) (executor.Result, error)
}

// RemoteFiles reads and writes files on a node.
type RemoteFiles interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
	WriteFile(ctx context.Context, name string, data []byte) error
	Close() error
}

// FileOpener opens file access to a node.
type FileOpener func(ctx context.Context, node string) (RemoteFiles, error)

// ErrNoFileAccess is returned by write operations when the Service was
// built without WithFiles.
var ErrNoFileAccess = errors.New("remote file access not configured")

// Service runs operations against nodes and guests.
type Service struct {
	exec   Runner
	files  FileOpener
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger that receives every progress message at
// info level.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFiles enables the operations that write configuration files.
func WithFiles(open FileOpener) Option {
	return func(s *Service) { s.files = open }
}

// New creates a Service that runs commands through exec.
func New(exec Runner, opts ...Option) *Service {
	s := &Service{exec: exec, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// plannedStep is one step of an operation. When do is nil the command is
// run through the Runner; otherwise do performs the step and command is
// only its label.
type plannedStep struct {
	step    Step
	command string
	do      func(ctx context.Context) (executor.Result, error)
}

type progress struct {
	sink   Sink
	logger *zap.Logger
}

func (p progress) emit(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.logger.Info(msg)
	if p.sink != nil {
		p.sink(msg)
	}
}

// run drives plan through the state machine.
func (s *Service) run(ctx context.Context, op string, scope executor.Scope, plan []plannedStep, sink Sink) (Outcome, error) {
	p := progress{
		sink:   sink,
		logger: s.logger.With(zap.String("operation", op), zap.Stringer("scope", scope)),
	}
	out := Outcome{Operation: op, Scope: scope, State: StepStart}
	p.emit("%s on %s", op, scope)

	for _, ps := range plan {
		out.State = ps.step
		p.emit("%s: %s", ps.step, ps.command)

		var res executor.Result
		var err error
		if ps.do != nil {
			res, err = ps.do(ctx)
		} else {
			res, err = s.exec.Run(ctx, scope, ps.command)
		}
		out.Steps = append(out.Steps, StepReport{Step: ps.step, Command: ps.command, Result: res})

		if err != nil {
			out.State = StepFailed
			p.emit("%s failed: %v", ps.step, err)
			return out, err
		}

		if !res.OK() {
			if ps.step == StepCleanup {
				p.emit("%s exited with status %d, continuing", ps.step, res.ExitCode)
				if output := strings.TrimSpace(res.Output); output != "" {
					p.emit("%s", output)
				}
				continue
			}
			out.State = StepFailed
			p.emit("%s exited with status %d", ps.step, res.ExitCode)
			return out, &executor.CommandFailure{
				Step:     ps.step.String(),
				Command:  ps.command,
				ExitCode: res.ExitCode,
				Output:   res.Output,
			}
		}

		if output := strings.TrimSpace(res.Output); output != "" {
			p.emit("%s", output)
		}
	}

	out.State = StepDone
	p.emit("%s on %s complete", op, scope)
	return out, nil
}

// query runs a single read-only command and returns its output. A
// nonzero exit is a CommandFailure.
func (s *Service) query(ctx context.Context, scope executor.Scope, command string) (string, error) {
	res, err := s.exec.Run(ctx, scope, command)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", &executor.CommandFailure{
			Step:     "query",
			Command:  command,
			ExitCode: res.ExitCode,
			Output:   res.Output,
		}
	}
	return res.Output, nil
}

// writeFileStep plans an SFTP write of data to name on node.
func (s *Service) writeFileStep(node, name string, data []byte) plannedStep {
	return plannedStep{
		step:    StepAct,
		command: "write " + name,
		do: func(ctx context.Context) (executor.Result, error) {
			if s.files == nil {
				return executor.Result{ExitCode: -1}, ErrNoFileAccess
			}
			start := time.Now()

			files, err := s.files(ctx, node)
			if err != nil {
				return executor.Result{ExitCode: -1}, err
			}
			defer files.Close()

			if err := files.WriteFile(ctx, name, data); err != nil {
				return executor.Result{ExitCode: -1}, &executor.TransportError{Host: node, Op: "write " + name, Err: err}
			}
			return executor.Result{Duration: time.Since(start)}, nil
		},
	}
}

package ops

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/parser"
)

// --- Fake runner ---

type call struct {
	Scope   executor.Scope
	Command string
}

// scriptedRunner answers commands from a table. Unknown commands succeed
// with empty output.
type scriptedRunner struct {
	mu      sync.Mutex
	results map[string]executor.Result
	errs    map[string]error
	calls   []call
}

func newRunner() *scriptedRunner {
	return &scriptedRunner{
		results: make(map[string]executor.Result),
		errs:    make(map[string]error),
	}
}

func (r *scriptedRunner) on(command string, exitCode int, output string) *scriptedRunner {
	r.results[command] = executor.Result{ExitCode: exitCode, Output: output}
	return r
}

func (r *scriptedRunner) fail(command string, err error) *scriptedRunner {
	r.errs[command] = err
	return r
}

func (r *scriptedRunner) Run(_ context.Context, scope executor.Scope, command string) (executor.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{Scope: scope, Command: command})
	if err, ok := r.errs[command]; ok {
		return executor.Result{ExitCode: -1}, err
	}
	return r.results[command], nil
}

func (r *scriptedRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Command
	}
	return out
}

type recorder struct {
	messages []string
}

func (r *recorder) sink(msg string) {
	r.messages = append(r.messages, msg)
}

var pve1 = executor.NodeScope("pve1")

// --- State machine ---

func TestApplyUpdates_RefreshFailureAbortsBeforeAct(t *testing.T) {
	runner := newRunner().on("apt-get update", 1, "E: Could not get lock /var/lib/apt/lists/lock\n")
	svc := New(runner)

	out, err := svc.ApplyUpdates(context.Background(), pve1, nil, nil)

	var failure *executor.CommandFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *executor.CommandFailure, got %T: %v", err, err)
	}
	if failure.Step != "refresh-index" || failure.ExitCode != 1 {
		t.Errorf("failure = %+v", failure)
	}
	if !strings.Contains(failure.Output, "Could not get lock") {
		t.Errorf("failure output = %q, want the step's output", failure.Output)
	}
	if got := runner.commands(); !reflect.DeepEqual(got, []string{"apt-get update"}) {
		t.Errorf("commands = %q, want only the refresh", got)
	}
	if out.State != StepFailed {
		t.Errorf("state = %s, want failed", out.State)
	}
	if len(out.Steps) != 1 {
		t.Errorf("expected 1 step report, got %d", len(out.Steps))
	}
}

func TestApplyUpdates_ActFailureSkipsCleanup(t *testing.T) {
	runner := newRunner().on("apt-get upgrade -y", 100, "E: Sub-process /usr/bin/dpkg returned an error code (1)\n")
	svc := New(runner)

	out, err := svc.ApplyUpdates(context.Background(), pve1, nil, nil)

	var failure *executor.CommandFailure
	if !errors.As(err, &failure) || failure.Step != "act" || failure.ExitCode != 100 {
		t.Fatalf("err = %v, want act CommandFailure", err)
	}
	if got := runner.commands(); !reflect.DeepEqual(got, []string{"apt-get update", "apt-get upgrade -y"}) {
		t.Errorf("commands = %q", got)
	}
	if out.State != StepFailed {
		t.Errorf("state = %s, want failed", out.State)
	}
}

func TestApplyUpdates_CleanupFailureContinues(t *testing.T) {
	runner := newRunner().on("apt-get autoremove -y", 100, "E: dpkg was interrupted\n")
	rec := &recorder{}
	svc := New(runner)

	out, err := svc.ApplyUpdates(context.Background(), pve1, nil, rec.sink)
	if err != nil {
		t.Fatalf("cleanup failure must not abort: %v", err)
	}
	if out.State != StepDone {
		t.Errorf("state = %s, want done", out.State)
	}
	if len(out.Steps) != 3 {
		t.Fatalf("expected 3 step reports, got %d", len(out.Steps))
	}
	if out.Steps[2].Result.ExitCode != 100 {
		t.Errorf("cleanup exit code = %d, want 100", out.Steps[2].Result.ExitCode)
	}

	joined := strings.Join(rec.messages, "\n")
	if !strings.Contains(joined, "cleanup exited with status 100, continuing") {
		t.Errorf("progress did not report the cleanup failure:\n%s", joined)
	}
	if !strings.Contains(joined, "dpkg was interrupted") {
		t.Errorf("progress did not include the cleanup output:\n%s", joined)
	}
}

func TestApplyUpdates_ConnectionErrorSurfacedVerbatim(t *testing.T) {
	connErr := &executor.ConnectionError{Host: "pve1.lab.example", Err: errors.New("connection refused")}
	runner := newRunner().fail("apt-get update", connErr)
	svc := New(runner)

	out, err := svc.ApplyUpdates(context.Background(), pve1, nil, nil)
	if err != connErr {
		t.Errorf("err = %v, want the ConnectionError itself", err)
	}
	if out.State != StepFailed {
		t.Errorf("state = %s, want failed", out.State)
	}
	if len(runner.commands()) != 1 {
		t.Errorf("no step may run after a connection error, ran %q", runner.commands())
	}
}

func TestProgressOrder(t *testing.T) {
	runner := newRunner().
		on("apt-get update", 0, "Hit:1 http://deb.debian.org/debian bookworm InRelease\n").
		on("apt-get install -y htop", 0, "Setting up htop (3.2.2-2) ...\n")
	rec := &recorder{}
	svc := New(runner)

	if _, err := svc.Install(context.Background(), pve1, []string{"htop"}, rec.sink); err != nil {
		t.Fatalf("install: %v", err)
	}

	want := []string{
		"install on pve1",
		"refresh-index: apt-get update",
		"Hit:1 http://deb.debian.org/debian bookworm InRelease",
		"act: apt-get install -y htop",
		"Setting up htop (3.2.2-2) ...",
		"cleanup: apt-get clean",
		"install on pve1 complete",
	}
	if !reflect.DeepEqual(rec.messages, want) {
		t.Errorf("progress:\n got %q\nwant %q", rec.messages, want)
	}
}

func TestProgressLoggedAtInfo(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := &recorder{}
	svc := New(newRunner(), WithLogger(zap.New(core)))

	if _, err := svc.Install(context.Background(), pve1, []string{"htop"}, rec.sink); err != nil {
		t.Fatalf("install: %v", err)
	}

	entries := logs.All()
	if len(entries) != len(rec.messages) {
		t.Fatalf("logged %d entries, sink got %d messages", len(entries), len(rec.messages))
	}
	for i, e := range entries {
		if e.Message != rec.messages[i] {
			t.Errorf("entry %d = %q, want %q", i, e.Message, rec.messages[i])
		}
		if e.ContextMap()["operation"] != "install" {
			t.Errorf("entry %d missing operation field: %v", i, e.ContextMap())
		}
	}
}

func TestNilSink(t *testing.T) {
	svc := New(newRunner())
	if _, err := svc.ApplyUpdates(context.Background(), pve1, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStepString(t *testing.T) {
	tests := map[Step]string{
		StepStart:        "start",
		StepRefreshIndex: "refresh-index",
		StepAct:          "act",
		StepReload:       "reload",
		StepCleanup:      "cleanup",
		StepDone:         "done",
		StepFailed:       "failed",
		Step(42):         "step(42)",
	}
	for step, want := range tests {
		if got := step.String(); got != want {
			t.Errorf("Step(%d).String() = %q, want %q", int(step), got, want)
		}
	}
}

// --- Packages ---

func TestApplyUpdates_Commands(t *testing.T) {
	vim := parser.PackageRecord{Name: "vim", Selected: true}
	curl := parser.PackageRecord{Name: "curl", Selected: true}
	zfs := parser.PackageRecord{Name: "zfsutils-linux", Selected: false}

	tests := []struct {
		name    string
		pkgs    []parser.PackageRecord
		wantAct string
	}{
		{"no list", nil, "apt-get upgrade -y"},
		{"all selected", []parser.PackageRecord{vim, curl}, "apt-get upgrade -y"},
		{"subset selected", []parser.PackageRecord{vim, zfs, curl}, "apt-get install --only-upgrade -y vim curl"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := newRunner()
			out, err := New(runner).ApplyUpdates(context.Background(), pve1, tc.pkgs, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := []string{"apt-get update", tc.wantAct, "apt-get autoremove -y"}
			if got := runner.commands(); !reflect.DeepEqual(got, want) {
				t.Errorf("commands = %q, want %q", got, want)
			}
			if out.State != StepDone {
				t.Errorf("state = %s, want done", out.State)
			}
		})
	}
}

func TestApplyUpdates_NothingSelected(t *testing.T) {
	runner := newRunner()
	pkgs := []parser.PackageRecord{{Name: "vim"}, {Name: "curl"}}

	_, err := New(runner).ApplyUpdates(context.Background(), pve1, pkgs, nil)
	if !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("err = %v, want ErrNothingSelected", err)
	}
	if len(runner.commands()) != 0 {
		t.Errorf("commands ran: %q", runner.commands())
	}
}

func TestApplyUpdates_RejectsUnsafePackageName(t *testing.T) {
	runner := newRunner()
	pkgs := []parser.PackageRecord{
		{Name: "vim;reboot", Selected: true},
		{Name: "curl"},
	}

	_, err := New(runner).ApplyUpdates(context.Background(), pve1, pkgs, nil)
	if !errors.Is(err, executor.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if len(runner.commands()) != 0 {
		t.Errorf("commands ran: %q", runner.commands())
	}
}

func TestCheckUpdates(t *testing.T) {
	listing := "WARNING: apt does not have a stable CLI interface. Use with caution in scripts.\n\n" +
		"Listing...\n" +
		"vim/stable 2:8.2 amd64 [upgradable from: 2:8.1]\n" +
		"pve-manager/bookworm 8.2.4 amd64 [upgradable from: 8.2.2]\n"
	runner := newRunner().on("apt list --upgradable", 0, listing)

	scope := executor.ContainerScope("pve1", "105")
	pkgs, err := New(runner).CheckUpdates(context.Background(), scope, nil)
	if err != nil {
		t.Fatalf("check updates: %v", err)
	}

	if got := runner.commands(); !reflect.DeepEqual(got, []string{"apt-get update", "apt list --upgradable"}) {
		t.Errorf("commands = %q", got)
	}
	for _, c := range runner.calls {
		if c.Scope != scope {
			t.Errorf("command %q ran in %s, want %s", c.Command, c.Scope, scope)
		}
	}
	if len(pkgs) != 2 {
		t.Fatalf("expected 2 packages, got %d: %+v", len(pkgs), pkgs)
	}
	if pkgs[0].Name != "vim" || pkgs[0].VersionInfo != "2:8.1" || !pkgs[0].Selected {
		t.Errorf("pkgs[0] = %+v", pkgs[0])
	}
	if pkgs[1].Name != "pve-manager" || pkgs[1].Candidate != "8.2.4" {
		t.Errorf("pkgs[1] = %+v", pkgs[1])
	}
}

func TestCheckUpdates_RefreshFailure(t *testing.T) {
	runner := newRunner().on("apt-get update", 100, "E: The repository is not signed.\n")

	pkgs, err := New(runner).CheckUpdates(context.Background(), pve1, nil)
	if pkgs != nil {
		t.Errorf("pkgs = %+v, want nil", pkgs)
	}
	var failure *executor.CommandFailure
	if !errors.As(err, &failure) {
		t.Fatalf("err = %v, want CommandFailure", err)
	}
	if len(runner.commands()) != 1 {
		t.Errorf("listing ran after a failed refresh: %q", runner.commands())
	}
}

func TestInstallAndUninstall(t *testing.T) {
	tests := []struct {
		name string
		run  func(*Service) (Outcome, error)
		want []string
	}{
		{
			name: "install",
			run: func(s *Service) (Outcome, error) {
				return s.Install(context.Background(), pve1, []string{"htop", "ncdu"}, nil)
			},
			want: []string{"apt-get update", "apt-get install -y htop ncdu", "apt-get clean"},
		},
		{
			name: "uninstall",
			run: func(s *Service) (Outcome, error) {
				return s.Uninstall(context.Background(), pve1, []string{"htop"}, nil)
			},
			want: []string{"apt-get update", "apt-get remove -y htop", "apt-get autoremove -y"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := newRunner()
			out, err := tc.run(New(runner))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := runner.commands(); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("commands = %q, want %q", got, tc.want)
			}
			if out.Operation != tc.name || out.State != StepDone {
				t.Errorf("outcome = %s/%s", out.Operation, out.State)
			}
		})
	}
}

func TestInstall_InvalidArguments(t *testing.T) {
	tests := [][]string{
		nil,
		{"htop", "$(reboot)"},
		{"Upper"},
	}
	for _, names := range tests {
		t.Run(fmt.Sprint(names), func(t *testing.T) {
			runner := newRunner()
			_, err := New(runner).Install(context.Background(), pve1, names, nil)
			if !errors.Is(err, executor.ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
			if len(runner.commands()) != 0 {
				t.Errorf("commands ran: %q", runner.commands())
			}
		})
	}
}

func TestQueryFailure(t *testing.T) {
	runner := newRunner().on("dpkg -l", 127, "sh: 1: dpkg: not found\n")

	_, err := New(runner).InstalledPackages(context.Background(), pve1)
	var failure *executor.CommandFailure
	if !errors.As(err, &failure) {
		t.Fatalf("err = %v, want CommandFailure", err)
	}
	if failure.ExitCode != 127 || !strings.Contains(failure.Output, "not found") {
		t.Errorf("failure = %+v", failure)
	}
}

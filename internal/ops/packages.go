package ops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/parser"
)

const (
	cmdAptUpdate      = "apt-get update"
	cmdAptUpgrade     = "apt-get upgrade -y"
	cmdAptAutoremove  = "apt-get autoremove -y"
	cmdAptClean       = "apt-get clean"
	cmdListUpgradable = "apt list --upgradable"
	cmdListInstalled  = "dpkg -l"
)

// ErrNothingSelected is returned by ApplyUpdates when a package list was
// given but none of its records are selected.
var ErrNothingSelected = errors.New("no packages selected")

// CheckUpdates refreshes the package index and returns the upgradable
// packages, all selected.
func (s *Service) CheckUpdates(ctx context.Context, scope executor.Scope, sink Sink) ([]parser.PackageRecord, error) {
	out, err := s.run(ctx, "check updates", scope, []plannedStep{
		{step: StepRefreshIndex, command: cmdAptUpdate},
		{step: StepAct, command: cmdListUpgradable},
	}, sink)
	if err != nil {
		return nil, err
	}
	return parser.ParseUpgradable(out.Steps[len(out.Steps)-1].Result.Output), nil
}

// UpgradeCommand returns the command ApplyUpdates runs for pkgs: a full
// upgrade when pkgs is empty or every record is selected, otherwise an
// upgrade of only the selected packages.
func UpgradeCommand(pkgs []parser.PackageRecord) (string, error) {
	selected := parser.SelectedNames(pkgs)
	if len(pkgs) == 0 || len(selected) == len(pkgs) {
		return cmdAptUpgrade, nil
	}
	if len(selected) == 0 {
		return "", ErrNothingSelected
	}
	if err := validatePackages(selected); err != nil {
		return "", err
	}
	return "apt-get install --only-upgrade -y " + strings.Join(selected, " "), nil
}

// ApplyUpdates refreshes the index, upgrades the selected packages and
// removes packages that are no longer needed.
func (s *Service) ApplyUpdates(ctx context.Context, scope executor.Scope, pkgs []parser.PackageRecord, sink Sink) (Outcome, error) {
	upgrade, err := UpgradeCommand(pkgs)
	if err != nil {
		return Outcome{Operation: "apply updates", Scope: scope, State: StepFailed}, err
	}
	return s.run(ctx, "apply updates", scope, []plannedStep{
		{step: StepRefreshIndex, command: cmdAptUpdate},
		{step: StepAct, command: upgrade},
		{step: StepCleanup, command: cmdAptAutoremove},
	}, sink)
}

// Install installs packages by name.
func (s *Service) Install(ctx context.Context, scope executor.Scope, names []string, sink Sink) (Outcome, error) {
	if err := requirePackages(names); err != nil {
		return Outcome{Operation: "install", Scope: scope, State: StepFailed}, err
	}
	return s.run(ctx, "install", scope, []plannedStep{
		{step: StepRefreshIndex, command: cmdAptUpdate},
		{step: StepAct, command: "apt-get install -y " + strings.Join(names, " ")},
		{step: StepCleanup, command: cmdAptClean},
	}, sink)
}

// Uninstall removes packages by name.
func (s *Service) Uninstall(ctx context.Context, scope executor.Scope, names []string, sink Sink) (Outcome, error) {
	if err := requirePackages(names); err != nil {
		return Outcome{Operation: "uninstall", Scope: scope, State: StepFailed}, err
	}
	return s.run(ctx, "uninstall", scope, []plannedStep{
		{step: StepRefreshIndex, command: cmdAptUpdate},
		{step: StepAct, command: "apt-get remove -y " + strings.Join(names, " ")},
		{step: StepCleanup, command: cmdAptAutoremove},
	}, sink)
}

// InstalledPackages lists the installed packages with their versions.
// No pipeline here: in a guest scope the node's shell would run the pipe
// on the host.
func (s *Service) InstalledPackages(ctx context.Context, scope executor.Scope) ([]parser.PackageRecord, error) {
	output, err := s.query(ctx, scope, cmdListInstalled)
	if err != nil {
		return nil, err
	}
	return parser.ParseDpkgList(output), nil
}

func requirePackages(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: no packages given", executor.ErrInvalidArgument)
	}
	return validatePackages(names)
}

func validatePackages(names []string) error {
	for _, name := range names {
		if err := executor.ValidatePackageName(name); err != nil {
			return err
		}
	}
	return nil
}

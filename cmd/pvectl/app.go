package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/agent462/pvectl/internal/config"
	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/ops"
	"github.com/agent462/pvectl/internal/selector"
	pssh "github.com/agent462/pvectl/internal/ssh"
	"github.com/agent462/pvectl/internal/ui/style"
)

// app holds everything a command needs, built from the global flags and
// the config file.
type app struct {
	cfg       *config.Config
	cfgPath   string
	logger    *zap.Logger
	transport *pssh.Transport
	exec      *executor.NodeExecutor
	ops       *ops.Service
	fleet     *executor.Fleet
	styles    style.Styles
	out       io.Writer

	mu sync.Mutex // serializes progress output from concurrent nodes
}

func newApp(cmd *cobra.Command) (*app, error) {
	a := &app{
		cfgPath: cfgFile,
		out:     cmd.OutOrStdout(),
		logger:  newLogger(verbose, logFile),
		styles:  style.New(!noColor && style.ColorEnabled(os.Stdout)),
	}

	var err error
	if cfgFile != "" {
		a.cfg, err = config.Load(cfgFile)
	} else {
		a.cfgPath = config.DefaultConfigPath()
		a.cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	prompt := &passwordPrompt{}
	a.transport = pssh.NewTransport(
		pssh.WithLogger(a.logger),
		pssh.WithInsecure(insecure || a.cfg.Defaults.Insecure),
		pssh.WithKnownHosts(a.cfg.Defaults.KnownHosts),
		pssh.WithPasswordCallback(prompt.ask),
	)

	a.exec = executor.NewNodeExecutor(a.cfg, a.transport, executor.WithLogger(a.logger))
	if userFlag != "" || askPass {
		creds := executor.Credentials{User: userFlag}
		if askPass {
			creds.Password, err = prompt.read(fmt.Sprintf("SSH password%s: ", forUser(userFlag)))
			if err != nil {
				return nil, err
			}
		}
		a.exec = a.exec.WithCredentials(creds)
	}

	a.ops = ops.New(a.exec, ops.WithLogger(a.logger), ops.WithFiles(a.openFiles))
	a.fleet = executor.NewFleet(
		executor.WithConcurrency(a.cfg.Defaults.Concurrency),
		executor.WithTimeout(a.cfg.Defaults.Timeout.Duration),
	)

	a.logger.Debug("loaded config",
		zap.String("path", a.cfgPath),
		zap.Int("nodes", len(a.cfg.Nodes)),
		zap.Int("groups", len(a.cfg.Groups)),
	)
	return a, nil
}

func (a *app) openFiles(ctx context.Context, node string) (ops.RemoteFiles, error) {
	target, err := a.exec.Target(node)
	if err != nil {
		return nil, err
	}
	files, err := a.transport.Files(ctx, target)
	if err != nil {
		return nil, err
	}
	return files, nil
}

// nodes resolves selector arguments against the config.
func (a *app) nodes(args ...string) ([]string, error) {
	return selector.ResolveAll(args, a.cfg)
}

// sink prints progress messages for one scope, each line prefixed with
// it. Messages from concurrent operations are never interleaved mid-line.
func (a *app) sink(scope executor.Scope) ops.Sink {
	prefix := scope.String()
	return func(msg string) {
		a.mu.Lock()
		defer a.mu.Unlock()
		fmt.Fprintln(a.out, a.styles.Scoped(prefix, msg))
	}
}

func (a *app) close() {
	_ = a.logger.Sync()
	pssh.CloseAgent()
}

// passwordPrompt reads passwords from the terminal, one prompt at a time.
type passwordPrompt struct {
	mu sync.Mutex
}

func (p *passwordPrompt) ask(host string) (string, error) {
	return p.read(fmt.Sprintf("Password for %s: ", host))
}

func (p *passwordPrompt) read(prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for a password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

func forUser(user string) string {
	if user == "" {
		return ""
	}
	return " for " + user
}

// withApp adapts a command body that needs an app into a cobra RunE.
func withApp(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return run(cmd.Context(), a, args)
	}
}

package ssh

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/agent462/pvectl/internal/executor"
)

// Transport implements executor.Transport. Every Execute call dials,
// runs exactly one command and closes the connection; nothing is pooled
// or retried.
type Transport struct {
	base   ClientConfig
	logger *zap.Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithLogger sets the logger used for per-command debug entries.
func WithLogger(l *zap.Logger) TransportOption {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithPasswordCallback sets the interactive fallback used when a
// target's own credentials are rejected.
func WithPasswordCallback(cb PasswordCallback) TransportOption {
	return func(t *Transport) { t.base.PasswordCallback = cb }
}

// WithInsecure disables host key verification.
func WithInsecure(insecure bool) TransportOption {
	return func(t *Transport) { t.base.Insecure = insecure }
}

// WithKnownHosts sets the known_hosts file used for host key checks.
func WithKnownHosts(path string) TransportOption {
	return func(t *Transport) { t.base.KnownHostsPath = path }
}

// WithHostKeyCallback replaces host key verification.
func WithHostKeyCallback(cb ssh.HostKeyCallback) TransportOption {
	return func(t *Transport) { t.base.HostKeyCallback = cb }
}

// NewTransport creates a Transport.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// clientConfig merges the target's connection details into the base
// configuration.
func (t *Transport) clientConfig(target executor.Target) ClientConfig {
	conf := t.base
	conf.User = target.Credentials.User
	conf.Port = target.Port
	conf.Password = target.Credentials.Password
	conf.IdentityFiles = target.Credentials.IdentityFiles
	conf.ProxyJump = target.ProxyJump
	return conf
}

func (t *Transport) dial(ctx context.Context, target executor.Target) (*Client, error) {
	client, err := Dial(ctx, target.Host, t.clientConfig(target))
	if err != nil {
		return nil, connectionError(target.Host, err)
	}
	return client, nil
}

// Execute runs command on target. The returned Result carries stdout
// followed by stderr. A nonzero exit status is not an error.
func (t *Transport) Execute(ctx context.Context, target executor.Target, command string) (executor.Result, error) {
	start := time.Now()

	client, err := t.dial(ctx, target)
	if err != nil {
		t.logger.Debug("connect failed",
			zap.String("host", target.Host),
			zap.Error(err),
		)
		return executor.Result{ExitCode: -1}, err
	}
	defer client.Close()

	stdout, stderr, exitCode, err := client.RunCommand(ctx, command)
	res := executor.Result{
		ExitCode: exitCode,
		Output:   string(stdout) + string(stderr),
		Duration: time.Since(start),
	}

	t.logger.Debug("command finished",
		zap.String("host", target.Host),
		zap.String("command", command),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", res.Duration),
		zap.Error(err),
	)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res, err
		}
		return res, &executor.TransportError{Host: target.Host, Op: "run", Err: err}
	}
	return res, nil
}

// Connect opens a long-lived connection to target, for port forwarding.
// The caller must Close it.
func (t *Transport) Connect(ctx context.Context, target executor.Target) (*Client, error) {
	return t.dial(ctx, target)
}

// Files opens an SFTP session to target. The caller must Close it.
func (t *Transport) Files(ctx context.Context, target executor.Target) (*RemoteFiles, error) {
	client, err := t.dial(ctx, target)
	if err != nil {
		return nil, err
	}
	files, err := newRemoteFiles(client)
	if err != nil {
		client.Close()
		return nil, &executor.TransportError{Host: target.Host, Op: "sftp", Err: err}
	}
	return files, nil
}

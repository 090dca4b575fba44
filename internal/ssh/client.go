// Package ssh connects to Proxmox nodes over SSH. It provides the
// one-command-per-connection Transport the executors run on, and SFTP
// access for configuration files.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	sshconfig "github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/agent462/pvectl/internal/pathutil"
)

// PasswordCallback is asked for a password when no other auth method
// succeeds. It receives the host being dialed.
type PasswordCallback func(host string) (string, error)

// ClientConfig holds options for creating an SSH client.
type ClientConfig struct {
	// User is the login name. If empty, ~/.ssh/config is consulted, then
	// $USER, then "root".
	User string

	// Port defaults to the ssh_config Port for the host, then 22.
	Port int

	// Password, when set, is offered before agent and key auth.
	Password string

	// IdentityFiles lists explicit private key paths to try. If empty,
	// ~/.ssh/config and the default key locations are used.
	IdentityFiles []string

	// PasswordCallback is the last auth method tried.
	PasswordCallback PasswordCallback

	// Insecure accepts any host key.
	Insecure bool

	// KnownHostsPath overrides ~/.ssh/known_hosts.
	KnownHostsPath string

	// HostKeyCallback overrides host key verification entirely.
	HostKeyCallback ssh.HostKeyCallback

	// ProxyJump is a comma-separated list of jump hosts in
	// "[user@]host[:port]" form. "none" disables jumping.
	ProxyJump string
}

// Client is an SSH connection to a single host, possibly tunneled
// through jump hosts.
type Client struct {
	host      string
	sshClient *ssh.Client
	jumps     []*Client // closed after sshClient, innermost first
}

// Dial connects to host. The context bounds the TCP connect and the SSH
// handshake of every hop.
func Dial(ctx context.Context, host string, conf ClientConfig) (*Client, error) {
	if conf.ProxyJump == "" || conf.ProxyJump == "none" {
		conn, err := dialContext(ctx, "tcp", address(host, conf))
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", address(host, conf), err)
		}
		return handshake(ctx, conn, host, conf)
	}
	return dialViaProxy(ctx, host, conf)
}

// dialViaProxy connects to each jump host in turn, tunneling every hop
// through the previous one, and finally reaches host.
func dialViaProxy(ctx context.Context, host string, conf ClientConfig) (*Client, error) {
	var jumps []*Client
	closeJumps := func() {
		for i := len(jumps) - 1; i >= 0; i-- {
			jumps[i].Close()
		}
	}

	for _, spec := range strings.Split(conf.ProxyJump, ",") {
		user, jumpHost, port := parseJumpHost(spec)
		jc := conf
		jc.ProxyJump = ""
		jc.Password = ""
		jc.User = user
		jc.Port = port

		var next *Client
		var err error
		if len(jumps) == 0 {
			next, err = Dial(ctx, jumpHost, jc)
		} else {
			next, err = jumps[len(jumps)-1].dialThrough(ctx, jumpHost, jc)
		}
		if err != nil {
			closeJumps()
			return nil, fmt.Errorf("dial jump host %q: %w", strings.TrimSpace(spec), err)
		}
		jumps = append(jumps, next)
	}

	final := conf
	final.ProxyJump = ""
	client, err := jumps[len(jumps)-1].dialThrough(ctx, host, final)
	if err != nil {
		closeJumps()
		return nil, fmt.Errorf("dial %s via proxy: %w", host, err)
	}
	client.jumps = jumps
	return client, nil
}

// dialThrough opens a connection to host tunneled over c.
func (c *Client) dialThrough(ctx context.Context, host string, conf ClientConfig) (*Client, error) {
	addr := address(host, conf)
	conn, err := c.sshClient.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tunnel through %s to %s: %w", c.host, addr, err)
	}
	return handshake(ctx, conn, host, conf)
}

// handshake runs the SSH client handshake over conn.
func handshake(ctx context.Context, conn net.Conn, host string, conf ClientConfig) (*Client, error) {
	hostKeyCallback, err := resolveHostKeyCallback(conf)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("host key callback: %w", err)
	}

	addr := address(host, conf)
	sshConf := &ssh.ClientConfig{
		User:            resolveUser(host, conf),
		Auth:            buildAuthMethods(host, conf),
		HostKeyCallback: hostKeyCallback,
	}

	sshConn, chans, reqs, err := newClientConn(ctx, conn, addr, sshConf)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	return &Client{host: host, sshClient: ssh.NewClient(sshConn, chans, reqs)}, nil
}

// parseJumpHost splits "user@host:port", "host:port", "user@host" or
// "host" into its parts.
func parseJumpHost(spec string) (user, hostname string, port int) {
	spec = strings.TrimSpace(spec)
	if i := strings.Index(spec, "@"); i >= 0 {
		user = spec[:i]
		spec = spec[i+1:]
	}
	if h, p, err := net.SplitHostPort(spec); err == nil {
		hostname = h
		port, _ = strconv.Atoi(p)
	} else {
		hostname = spec
	}
	return user, hostname, port
}

// RunCommand executes command in a new session. A nonzero exit status is
// reported through exitCode, not err. If ctx is cancelled the session is
// killed and ctx.Err() returned.
func (c *Client) RunCommand(ctx context.Context, command string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.sshClient.NewSession()
	if err != nil {
		return nil, nil, -1, fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	var outBuf, errBuf safeBuffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, nil, -1, ctx.Err()
	case err := <-done:
		var exitErr *ssh.ExitError
		switch {
		case err == nil:
			return outBuf.Bytes(), errBuf.Bytes(), 0, nil
		case errors.As(err, &exitErr):
			return outBuf.Bytes(), errBuf.Bytes(), exitErr.ExitStatus(), nil
		default:
			return outBuf.Bytes(), errBuf.Bytes(), -1, err
		}
	}
}

// SSHClient exposes the underlying connection, for SFTP.
func (c *Client) SSHClient() *ssh.Client {
	return c.sshClient
}

// Close closes the connection, then any jump-host connections in reverse
// order.
func (c *Client) Close() error {
	var firstErr error
	if c.sshClient != nil {
		firstErr = c.sshClient.Close()
	}
	for i := len(c.jumps) - 1; i >= 0; i-- {
		if err := c.jumps[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Host returns the hostname this client is connected to.
func (c *Client) Host() string {
	return c.host
}

func address(host string, conf ClientConfig) string {
	port := conf.Port
	if port == 0 {
		port, _ = strconv.Atoi(sshconfig.Get(host, "Port"))
	}
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func resolveUser(host string, conf ClientConfig) string {
	if conf.User != "" {
		return conf.User
	}
	if u := sshconfig.Get(host, "User"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "root"
}

// buildAuthMethods returns the auth chain: password, agent, key files,
// password callback.
func buildAuthMethods(host string, conf ClientConfig) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if conf.Password != "" {
		methods = append(methods, ssh.Password(conf.Password))
	}

	if agentAuth := agentAuthMethod(); agentAuth != nil {
		methods = append(methods, agentAuth)
	}

	keyFiles := conf.IdentityFiles
	if len(keyFiles) == 0 {
		keyFiles = resolveKeyFiles(host)
	}
	var signers []ssh.Signer
	for _, keyFile := range keyFiles {
		if signer := loadKeySigner(pathutil.ExpandHome(keyFile)); signer != nil {
			signers = append(signers, signer)
		}
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if conf.PasswordCallback != nil {
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			return conf.PasswordCallback(host)
		}))
	}

	return methods
}

// sharedAgent is a process-wide SSH agent connection, redialed if it goes
// stale.
var sharedAgent struct {
	mu     sync.Mutex
	conn   net.Conn
	client agent.ExtendedAgent
}

// CloseAgent closes the shared SSH agent connection, if any.
func CloseAgent() {
	sharedAgent.mu.Lock()
	defer sharedAgent.mu.Unlock()
	if sharedAgent.conn != nil {
		sharedAgent.conn.Close()
		sharedAgent.client = nil
		sharedAgent.conn = nil
	}
}

// agentAuthMethod returns an auth method backed by $SSH_AUTH_SOCK, or nil
// when no agent is reachable or it holds no keys.
func agentAuthMethod() ssh.AuthMethod {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}

	sharedAgent.mu.Lock()
	defer sharedAgent.mu.Unlock()

	if sharedAgent.client != nil {
		if keys, err := sharedAgent.client.List(); err == nil {
			if len(keys) > 0 {
				return ssh.PublicKeysCallback(sharedAgent.client.Signers)
			}
			return nil
		}
		sharedAgent.conn.Close()
		sharedAgent.client = nil
		sharedAgent.conn = nil
	}

	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil
	}
	sharedAgent.conn = conn
	sharedAgent.client = agent.NewClient(conn)

	keys, err := sharedAgent.client.List()
	if err != nil || len(keys) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(sharedAgent.client.Signers)
}

// resolveKeyFiles returns the ssh_config IdentityFile for host followed
// by whichever default keys exist.
func resolveKeyFiles(host string) []string {
	var files []string

	if identity := sshconfig.Get(host, "IdentityFile"); identity != "" {
		expanded := pathutil.ExpandHome(identity)
		if _, err := os.Stat(expanded); err == nil {
			files = append(files, expanded)
		}
	}

	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		f := pathutil.SSHFile(name)
		if f == "" {
			return files
		}
		if _, err := os.Stat(f); err == nil {
			files = append(files, f)
		}
	}
	return files
}

func loadKeySigner(path string) ssh.Signer {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil
	}
	return signer
}

func resolveHostKeyCallback(conf ClientConfig) (ssh.HostKeyCallback, error) {
	if conf.HostKeyCallback != nil {
		return conf.HostKeyCallback, nil
	}
	if conf.Insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := conf.KnownHostsPath
	if path == "" {
		if path = pathutil.SSHFile("known_hosts"); path == "" {
			return nil, fmt.Errorf("no home directory to find known_hosts in")
		}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no known_hosts file found at %s", path)
	}

	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("parse known_hosts: %w", err)
	}
	return callback, nil
}

func dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}

// newClientConn performs the SSH handshake, giving up when ctx is done.
func newClientConn(ctx context.Context, conn net.Conn, addr string, config *ssh.ClientConfig) (ssh.Conn, <-chan ssh.NewChannel, <-chan *ssh.Request, error) {
	type result struct {
		conn  ssh.Conn
		chans <-chan ssh.NewChannel
		reqs  <-chan *ssh.Request
		err   error
	}

	done := make(chan result, 1)
	go func() {
		c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
		done <- result{c, chans, reqs, err}
	}()

	select {
	case <-ctx.Done():
		conn.Close()
		return nil, nil, nil, ctx.Err()
	case r := <-done:
		return r.conn, r.chans, r.reqs, r.err
	}
}

// Package sshtest provides an in-process SSH server for testing. It
// answers exec requests through a handler, records every command it
// receives, and serves SFTP from an in-memory filesystem shared by all
// sessions.
package sshtest

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// CmdHandler processes a command and returns stdout, stderr, and exit code.
type CmdHandler func(cmd string) (stdout, stderr string, exitCode int)

type serverConfig struct {
	clientPubKey ssh.PublicKey
	password     string
	noAuth       bool
	forwardTCP   bool
	noExitStatus bool
	cmdHandler   CmdHandler
}

// Option configures a test SSH server.
type Option func(*serverConfig)

// WithPublicKey configures the server to accept the given public key.
func WithPublicKey(pub ssh.PublicKey) Option {
	return func(c *serverConfig) { c.clientPubKey = pub }
}

// WithPassword configures the server to accept the given password.
func WithPassword(pw string) Option {
	return func(c *serverConfig) { c.password = pw }
}

// WithNoAuth configures the server to accept any connection.
func WithNoAuth() Option {
	return func(c *serverConfig) { c.noAuth = true }
}

// WithCmdHandler sets the command handler. Without one, the server echoes
// the command back on stdout.
func WithCmdHandler(h CmdHandler) Option {
	return func(c *serverConfig) { c.cmdHandler = h }
}

// WithForwardTCP enables direct-tcpip forwarding, for jump-host tests.
func WithForwardTCP() Option {
	return func(c *serverConfig) { c.forwardTCP = true }
}

// WithoutExitStatus makes the server close exec sessions without sending
// an exit status.
func WithoutExitStatus() Option {
	return func(c *serverConfig) { c.noExitStatus = true }
}

// Server is a running test server.
type Server struct {
	Addr string
	Host string
	Port int

	cfg   *serverConfig
	files sftp.Handlers

	mu       sync.Mutex
	commands []string
}

// Commands returns the exec commands received so far, in arrival order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) record(cmd string) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()
}

// Start launches an in-process SSH server on a loopback port. The server
// is shut down when the test finishes.
func Start(t *testing.T, opts ...Option) *Server {
	t.Helper()

	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	serverConf := &ssh.ServerConfig{NoClientAuth: cfg.noAuth}
	serverConf.AddHostKey(hostSigner)

	if cfg.clientPubKey != nil {
		expected := string(cfg.clientPubKey.Marshal())
		serverConf.PublicKeyCallback = func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == expected {
				return nil, nil
			}
			return nil, fmt.Errorf("unknown key")
		}
	}
	if cfg.password != "" {
		serverConf.PasswordCallback = func(_ ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if string(password) == cfg.password {
				return nil, nil
			}
			return nil, fmt.Errorf("wrong password")
		}
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := &Server{
		Addr:  listener.Addr().String(),
		cfg:   cfg,
		files: sftp.InMemHandler(),
	}
	host, port, _ := net.SplitHostPort(srv.Addr)
	srv.Host = host
	srv.Port, _ = strconv.Atoi(port)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go srv.handleConnection(conn, serverConf)
		}
	}()

	t.Cleanup(func() {
		listener.Close()
		<-done
	})
	return srv
}

func (s *Server) handleConnection(conn net.Conn, config *ssh.ServerConfig) {
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		switch newChan.ChannelType() {
		case "session":
			ch, requests, err := newChan.Accept()
			if err != nil {
				continue
			}
			go s.handleSession(ch, requests)
		case "direct-tcpip":
			if !s.cfg.forwardTCP {
				newChan.Reject(ssh.Prohibited, "tcpip forwarding not enabled")
				continue
			}
			ch, reqs, err := newChan.Accept()
			if err != nil {
				continue
			}
			go ssh.DiscardRequests(reqs)
			go handleDirectTCPIP(ch, newChan.ExtraData())
		default:
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
		}
	}
}

func (s *Server) handleSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()

	for req := range reqs {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			s.record(payload.Command)
			s.runCommand(ch, payload.Command)
			return

		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			go ssh.DiscardRequests(reqs)
			server := sftp.NewRequestServer(ch, s.files)
			server.Serve()
			server.Close()
			return

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func (s *Server) runCommand(ch ssh.Channel, cmd string) {
	stdout, stderr, exitCode := cmd, "", 0
	if s.cfg.cmdHandler != nil {
		stdout, stderr, exitCode = s.cfg.cmdHandler(cmd)
	}

	if stdout != "" {
		io.WriteString(ch, stdout)
	}
	if stderr != "" {
		io.WriteString(ch.Stderr(), stderr)
	}
	if s.cfg.noExitStatus {
		return
	}

	status := struct{ Status uint32 }{uint32(exitCode)}
	ch.SendRequest("exit-status", false, ssh.Marshal(&status))
}

func handleDirectTCPIP(ch ssh.Channel, extraData []byte) {
	defer ch.Close()

	var dest struct {
		Host       string
		Port       uint32
		OriginHost string
		OriginPort uint32
	}
	if err := ssh.Unmarshal(extraData, &dest); err != nil {
		return
	}

	conn, err := net.Dial("tcp", net.JoinHostPort(dest.Host, strconv.Itoa(int(dest.Port))))
	if err != nil {
		return
	}
	defer conn.Close()

	done := make(chan struct{}, 2)
	go func() { io.Copy(ch, conn); done <- struct{}{} }()
	go func() { io.Copy(conn, ch); done <- struct{}{} }()
	<-done
}

// GenerateKey creates an ed25519 key pair and writes the private key to a
// temp file. Returns the public key and the path to the private key file.
func GenerateKey(t *testing.T) (ssh.PublicKey, string) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}

	pemBlock := pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privBytes,
	})

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyPath, pemBlock, 0600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	return signer.PublicKey(), keyPath
}

// Package tunnel forwards a local port to a port on a node over SSH,
// typically the Proxmox web interface on 8006.
package tunnel

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	gossh "golang.org/x/crypto/ssh"
	"go.uber.org/zap"
)

// Dialer opens connections from the far side of an SSH connection.
// *ssh.Client implements it.
type Dialer interface {
	Dial(network, addr string) (net.Conn, error)
}

var _ Dialer = (*gossh.Client)(nil)

// Tunnel is an open local listener whose connections are relayed through
// an SSH connection.
type Tunnel struct {
	Node       string
	LocalAddr  string // bound address, e.g. "127.0.0.1:8006"
	RemoteAddr string // address dialled on the node, e.g. "localhost:8006"

	listener  net.Listener
	dialer    Dialer
	logger    *zap.Logger
	done      chan struct{}
	closeOnce sync.Once
	conns     sync.WaitGroup
}

// Open binds 127.0.0.1:fwd.LocalPort (0 picks a free port) and starts
// relaying. The tunnel closes when ctx is cancelled or Close is called.
func Open(ctx context.Context, dialer Dialer, node string, fwd Forward, logger *zap.Logger) (*Tunnel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	listenAddr := net.JoinHostPort("127.0.0.1", strconv.Itoa(fwd.LocalPort))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", listenAddr, err)
	}

	t := &Tunnel{
		Node:       node,
		LocalAddr:  listener.Addr().String(),
		RemoteAddr: net.JoinHostPort(fwd.RemoteHost, strconv.Itoa(fwd.RemotePort)),
		listener:   listener,
		dialer:     dialer,
		logger:     logger.With(zap.String("node", node)),
		done:       make(chan struct{}),
	}

	go func() {
		select {
		case <-ctx.Done():
			t.Close()
		case <-t.done:
		}
	}()
	go t.accept()

	return t, nil
}

func (t *Tunnel) accept() {
	for {
		local, err := t.listener.Accept()
		if err != nil {
			// Close makes Accept fail; anything else ends the tunnel too.
			return
		}

		remote, err := t.dialer.Dial("tcp", t.RemoteAddr)
		if err != nil {
			t.logger.Warn("forward failed", zap.String("remote", t.RemoteAddr), zap.Error(err))
			local.Close()
			continue
		}

		t.conns.Add(1)
		go func() {
			defer t.conns.Done()
			relay(local, remote)
		}()
	}
}

// Done is closed once the tunnel has stopped accepting connections.
func (t *Tunnel) Done() <-chan struct{} {
	return t.done
}

// Close stops accepting connections. Relays already in flight finish on
// their own.
func (t *Tunnel) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.listener.Close()
	})
	return err
}

// Wait blocks until the tunnel is closed and every relay has finished.
func (t *Tunnel) Wait() {
	<-t.done
	t.conns.Wait()
}

func relay(local, remote net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(remote, local)
		closeWrite(remote)
	}()
	go func() {
		defer wg.Done()
		io.Copy(local, remote)
		closeWrite(local)
	}()
	wg.Wait()
	local.Close()
	remote.Close()
}

func closeWrite(c net.Conn) {
	if cw, ok := c.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}
}

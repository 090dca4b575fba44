package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/agent462/pvectl/internal/executor"
)

func TestConnectionError_Hints(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHint string
	}{
		{
			name:     "connection refused",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")},
			wantHint: "SSH daemon",
		},
		{
			name:     "dns failure",
			err:      &net.DNSError{Err: "no such host", Name: "pve9.lab.example"},
			wantHint: "domain",
		},
		{
			name:     "auth failure",
			err:      fmt.Errorf("ssh handshake with pve1:22: ssh: unable to authenticate"),
			wantHint: "password_env",
		},
		{
			name:     "known_hosts missing",
			err:      fmt.Errorf("host key callback: no known_hosts file found at /home/u/.ssh/known_hosts"),
			wantHint: "insecure: true",
		},
		{
			name:     "key permissions",
			err:      fmt.Errorf("open key: permission denied"),
			wantHint: "chmod 600",
		},
		{
			name:     "unknown cause",
			err:      fmt.Errorf("some random error"),
			wantHint: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := connectionError("pve1", tc.err)

			var ce *executor.ConnectionError
			if !errors.As(wrapped, &ce) {
				t.Fatalf("expected *executor.ConnectionError, got %T", wrapped)
			}
			if ce.Host != "pve1" {
				t.Errorf("host = %q, want pve1", ce.Host)
			}
			if tc.wantHint == "" {
				if ce.Hint != "" {
					t.Errorf("hint = %q, want none", ce.Hint)
				}
				return
			}
			if !strings.Contains(ce.Hint, tc.wantHint) {
				t.Errorf("hint = %q, want mention of %q", ce.Hint, tc.wantHint)
			}
			if !errors.Is(wrapped, tc.err) {
				t.Error("cause is not reachable through Unwrap")
			}
		})
	}
}

func TestConnectionError_Nil(t *testing.T) {
	if err := connectionError("host", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestConnectionError_KeepsContextCause(t *testing.T) {
	err := connectionError("pve1", fmt.Errorf("dial: %w", context.DeadlineExceeded))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded to be reachable, got %v", err)
	}
}

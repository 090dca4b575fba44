package ssh

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/agent462/pvectl/internal/executor"
)

// connectionError wraps a failed dial as an executor.ConnectionError,
// attaching a hint when the cause is recognised.
func connectionError(host string, err error) error {
	if err == nil {
		return nil
	}
	return &executor.ConnectionError{Host: host, Err: err, Hint: dialHint(host, err)}
}

func dialHint(host string, err error) string {
	msg := err.Error()

	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		if len(keyErr.Want) > 0 {
			return fmt.Sprintf("host key changed; remove the old key with: ssh-keygen -R %s", host)
		}
		return fmt.Sprintf("host is not in known_hosts; set insecure: true or connect once with: ssh %s", host)
	}
	if strings.Contains(msg, "no known_hosts") {
		return fmt.Sprintf("set insecure: true or connect once with: ssh %s", host)
	}

	if strings.Contains(msg, "permission denied") && strings.Contains(msg, "key") {
		return "check SSH key permissions (chmod 600)"
	}

	var authErr *ssh.ServerAuthError
	if errors.As(err, &authErr) ||
		strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") {
		return fmt.Sprintf("verify the password_env variable, your SSH key or agent. Try: ssh -v %s", host)
	}

	if strings.Contains(msg, "connection refused") {
		return "verify the SSH daemon is running on the node"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || strings.Contains(msg, "no such host") {
		return "verify the node name and the configured domain"
	}

	return ""
}

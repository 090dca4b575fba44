package config

import (
	"os"
	"strconv"

	"github.com/kevinburke/ssh_config"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/pathutil"
)

// Resolve implements executor.Resolver. The hostname is the node's
// configured hostname, or "<node>.<domain>". Connection details come
// from the node entry, then the defaults, then ~/.ssh/config. The
// password is read from the environment variable named by password_env
// on every call. A non-nil override replaces the resolved credentials;
// an empty override user keeps the resolved one.
func (c *Config) Resolve(node string, override *executor.Credentials) (executor.Target, error) {
	if err := executor.ValidateNodeName(node); err != nil {
		return executor.Target{}, err
	}

	n := c.Nodes[node]
	target := executor.Target{
		Node:      node,
		Host:      n.Hostname,
		Port:      firstNonZero(n.Port, c.Defaults.Port),
		ProxyJump: n.ProxyJump,
	}
	if target.Host == "" {
		target.Host = node
		if c.Domain != "" {
			target.Host = node + "." + c.Domain
		}
	}

	creds := executor.Credentials{
		User: firstNonEmpty(n.User, c.Defaults.User),
	}
	if env := firstNonEmpty(n.PasswordEnv, c.Defaults.PasswordEnv); env != "" {
		creds.Password = os.Getenv(env)
	}
	if key := firstNonEmpty(n.IdentityFile, c.Defaults.IdentityFile); key != "" {
		creds.IdentityFiles = []string{pathutil.ExpandHome(key)}
	}
	target.Credentials = creds

	mergeSSHConfig(&target)

	if override != nil {
		resolvedUser := target.Credentials.User
		target.Credentials = *override
		if target.Credentials.User == "" {
			target.Credentials.User = resolvedUser
		}
	}
	return target, nil
}

// mergeSSHConfig fills User, Port, IdentityFile and ProxyJump from
// ~/.ssh/config when the config left them unset. Lookups use the
// hostname being dialed.
func mergeSSHConfig(t *executor.Target) {
	if t.Credentials.User == "" {
		t.Credentials.User = sshConfigGet(t.Host, "User")
	}

	if t.Port == 0 {
		if port, err := strconv.Atoi(sshConfigGet(t.Host, "Port")); err == nil && port > 0 {
			t.Port = port
		}
	}

	if len(t.Credentials.IdentityFiles) == 0 {
		if identity := sshConfigGet(t.Host, "IdentityFile"); identity != "" {
			expanded := pathutil.ExpandHome(identity)
			if _, err := os.Stat(expanded); err == nil {
				t.Credentials.IdentityFiles = []string{expanded}
			}
		}
	}

	if t.ProxyJump == "" {
		t.ProxyJump = sshConfigGet(t.Host, "ProxyJump")
	}
}

// sshConfigGet looks up a key for a host in the user's SSH config.
func sshConfigGet(hostname, key string) string {
	val, err := ssh_config.GetStrict(hostname, key)
	if err != nil {
		return ""
	}
	return val
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

// Package config loads the pvectl configuration file and resolves node
// names into connection targets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/pathutil"
)

// Config represents the top-level pvectl configuration.
type Config struct {
	// Domain is appended to node names that have no explicit hostname:
	// node "pve1" with domain "lab.example" dials "pve1.lab.example".
	Domain   string              `yaml:"domain,omitempty"`
	Defaults Defaults            `yaml:"defaults"`
	Nodes    map[string]Node     `yaml:"nodes,omitempty"`
	Groups   map[string][]string `yaml:"groups,omitempty"`
	// Checks are user-defined health checks: named command lists run with
	// `pvectl check`. A check named like a built-in one replaces it.
	Checks map[string][]string `yaml:"checks,omitempty"`
}

// Defaults apply to every node unless the node overrides them.
type Defaults struct {
	User         string   `yaml:"user,omitempty"`
	Port         int      `yaml:"port,omitempty"`
	PasswordEnv  string   `yaml:"password_env,omitempty"`
	IdentityFile string   `yaml:"identity_file,omitempty"`
	Concurrency  int      `yaml:"concurrency"`
	Timeout      Duration `yaml:"timeout"`
	Insecure     bool     `yaml:"insecure,omitempty"`
	KnownHosts   string   `yaml:"known_hosts,omitempty"`
}

// Node holds per-node connection overrides.
type Node struct {
	Hostname     string `yaml:"hostname,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	User         string `yaml:"user,omitempty"`
	PasswordEnv  string `yaml:"password_env,omitempty"`
	IdentityFile string `yaml:"identity_file,omitempty"`
	ProxyJump    string `yaml:"proxy_jump,omitempty"`
}

// Duration wraps time.Duration to support YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// DefaultConfig returns a Config with default values. The default
// timeout is zero: operations are not bounded unless configured.
func DefaultConfig() *Config {
	return &Config{
		Defaults: Defaults{
			User:        "root",
			Port:        22,
			Concurrency: 20,
		},
		Nodes:  make(map[string]Node),
		Groups: make(map[string][]string),
		Checks: make(map[string][]string),
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/pvectl/config.yaml, falling
// back to ~/.config.
func DefaultConfigPath() string {
	return pathutil.ConfigFile("pvectl", "config.yaml")
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads the config from DefaultConfigPath. A missing file
// yields the default config.
func LoadDefault() (*Config, error) {
	path := DefaultConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

var (
	envNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	domainRe  = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?$`)
)

// Validate checks the config for logical errors.
func (c *Config) Validate() error {
	if c.Defaults.Concurrency < 0 {
		return fmt.Errorf("concurrency must be non-negative, got %d", c.Defaults.Concurrency)
	}
	if c.Defaults.Timeout.Duration < 0 {
		return fmt.Errorf("default timeout must be non-negative, got %s", c.Defaults.Timeout)
	}
	if err := validatePort(c.Defaults.Port); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if c.Defaults.PasswordEnv != "" && !envNameRe.MatchString(c.Defaults.PasswordEnv) {
		return fmt.Errorf("defaults: password_env %q is not a valid environment variable name", c.Defaults.PasswordEnv)
	}
	if c.Domain != "" && !domainRe.MatchString(c.Domain) {
		return fmt.Errorf("invalid domain %q", c.Domain)
	}

	for name, node := range c.Nodes {
		if err := executor.ValidateNodeName(name); err != nil {
			return err
		}
		if err := validatePort(node.Port); err != nil {
			return fmt.Errorf("node %q: %w", name, err)
		}
		if node.PasswordEnv != "" && !envNameRe.MatchString(node.PasswordEnv) {
			return fmt.Errorf("node %q: password_env %q is not a valid environment variable name", name, node.PasswordEnv)
		}
	}

	for name, members := range c.Groups {
		if len(members) == 0 {
			return fmt.Errorf("group %q has no nodes", name)
		}
		for _, m := range members {
			if err := executor.ValidateNodeName(m); err != nil {
				return fmt.Errorf("group %q: %w", name, err)
			}
		}
	}

	for name, steps := range c.Checks {
		if len(steps) == 0 {
			return fmt.Errorf("check %q has no commands", name)
		}
	}

	return nil
}

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d out of range", port)
	}
	return nil
}

// NodeNames returns the configured node names, sorted.
func (c *Config) NodeNames() []string {
	names := make([]string, 0, len(c.Nodes))
	for name := range c.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Group returns the nodes of the named group.
func (c *Config) Group(name string) ([]string, error) {
	members, ok := c.Groups[name]
	if ok {
		return members, nil
	}

	available := make([]string, 0, len(c.Groups))
	for g := range c.Groups {
		available = append(available, g)
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("group %q not found (no groups defined)", name)
	}
	sort.Strings(available)
	return nil, fmt.Errorf("group %q not found (available: %v)", name, available)
}

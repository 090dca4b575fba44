package ops

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/parser"
)

const (
	// NetworkConfigPath is the ifupdown2 configuration file on a node.
	NetworkConfigPath = "/etc/network/interfaces"
	// ResolvConfPath is the resolver configuration file on a node.
	ResolvConfPath = "/etc/resolv.conf"

	cmdReloadNetwork = "ifreload -a"
)

var searchDomainRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?$`)

// Interfaces lists the network links in scope, loopback excluded.
func (s *Service) Interfaces(ctx context.Context, scope executor.Scope) ([]parser.InterfaceRecord, error) {
	output, err := s.query(ctx, scope, "ip link show")
	if err != nil {
		return nil, err
	}
	return parser.ParseInterfaces(output), nil
}

// ReadNetworkConfig returns the node's /etc/network/interfaces.
func (s *Service) ReadNetworkConfig(ctx context.Context, node string) (string, error) {
	return s.query(ctx, executor.NodeScope(node), "cat "+NetworkConfigPath)
}

// WriteNetworkConfig replaces the node's /etc/network/interfaces, keeping
// a backup of the previous file, then applies it with ifreload.
func (s *Service) WriteNetworkConfig(ctx context.Context, node, content string, sink Sink) (Outcome, error) {
	scope := executor.NodeScope(node)
	if err := executor.ValidateNodeName(node); err != nil {
		return Outcome{Operation: "write network config", Scope: scope, State: StepFailed}, err
	}
	if strings.TrimSpace(content) == "" {
		return Outcome{Operation: "write network config", Scope: scope, State: StepFailed},
			fmt.Errorf("%w: empty network configuration", executor.ErrInvalidArgument)
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return s.run(ctx, "write network config", scope, []plannedStep{
		s.writeFileStep(node, NetworkConfigPath, []byte(content)),
		{step: StepReload, command: cmdReloadNetwork},
	}, sink)
}

// ReadDNS returns the node's resolver configuration.
func (s *Service) ReadDNS(ctx context.Context, node string) (parser.DNSConfig, error) {
	output, err := s.query(ctx, executor.NodeScope(node), "cat "+ResolvConfPath)
	if err != nil {
		return parser.DNSConfig{}, err
	}
	return parser.ParseDNS(output), nil
}

// WriteDNS replaces the node's /etc/resolv.conf with cfg.
func (s *Service) WriteDNS(ctx context.Context, node string, cfg parser.DNSConfig, sink Sink) (Outcome, error) {
	scope := executor.NodeScope(node)
	if err := validateDNS(node, cfg); err != nil {
		return Outcome{Operation: "write dns", Scope: scope, State: StepFailed}, err
	}
	return s.run(ctx, "write dns", scope, []plannedStep{
		s.writeFileStep(node, ResolvConfPath, []byte(parser.RenderDNS(cfg))),
	}, sink)
}

func validateDNS(node string, cfg parser.DNSConfig) error {
	if err := executor.ValidateNodeName(node); err != nil {
		return err
	}
	if len(cfg.Nameservers) == 0 {
		return fmt.Errorf("%w: at least one nameserver is required", executor.ErrInvalidArgument)
	}
	for _, ns := range cfg.Nameservers {
		if net.ParseIP(ns) == nil {
			return fmt.Errorf("%w: nameserver %q is not an IP address", executor.ErrInvalidArgument, ns)
		}
	}
	for _, d := range cfg.Search {
		if !searchDomainRe.MatchString(d) {
			return fmt.Errorf("%w: search domain %q", executor.ErrInvalidArgument, d)
		}
	}
	if cfg.Domain != "" && !searchDomainRe.MatchString(cfg.Domain) {
		return fmt.Errorf("%w: domain %q", executor.ErrInvalidArgument, cfg.Domain)
	}
	return nil
}

package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// InterfaceRecord is one network link from `ip link show`.
type InterfaceRecord struct {
	Name     string
	Flags    []string
	MTU      int
	State    string
	Master   string // bridge or bond the link is enslaved to
	LinkType string // "ether", "none", ...
	MAC      string
}

var (
	linkHeaderRe = regexp.MustCompile(`^\d+:\s+([^:\s]+):\s+<([^>]*)>(.*)$`)
	linkAttrRe   = regexp.MustCompile(`\b(mtu|state|master)\s+(\S+)`)
)

// ParseInterfaces parses `ip link show`. Each interface is a header line
//
//	2: eno1: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 ... state UP ...
//
// followed by its link line
//
//	    link/ether aa:bb:cc:dd:ee:ff brd ff:ff:ff:ff:ff:ff
//
// Loopback interfaces (names starting with "lo") are skipped, as are
// lines such as "altname".
func ParseInterfaces(text string) []InterfaceRecord {
	var records []InterfaceRecord
	current := -1 // index into records of the last header seen, -1 if skipped

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := linkHeaderRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			if i := strings.Index(name, "@"); i > 0 {
				name = name[:i]
			}
			if strings.HasPrefix(name, "lo") {
				current = -1
				continue
			}
			rec := InterfaceRecord{Name: name}
			if m[2] != "" {
				rec.Flags = strings.Split(m[2], ",")
			}
			for _, attr := range linkAttrRe.FindAllStringSubmatch(m[3], -1) {
				switch attr[1] {
				case "mtu":
					rec.MTU, _ = strconv.Atoi(attr[2])
				case "state":
					rec.State = attr[2]
				case "master":
					rec.Master = attr[2]
				}
			}
			records = append(records, rec)
			current = len(records) - 1
			continue
		}

		if strings.HasPrefix(line, "link/") && current >= 0 {
			fields := strings.Fields(line)
			records[current].LinkType = strings.TrimPrefix(fields[0], "link/")
			if len(fields) > 1 {
				records[current].MAC = fields[1]
			}
			current = -1
		}
	}
	return records
}

// DNSConfig is the resolver configuration from /etc/resolv.conf.
type DNSConfig struct {
	Domain      string
	Search      []string
	Nameservers []string
}

// ParseDNS parses resolv.conf text. Every nameserver line adds a server;
// the last search line wins. Comments and unknown options are ignored.
func ParseDNS(text string) DNSConfig {
	var cfg DNSConfig
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") || strings.HasPrefix(fields[0], ";") {
			continue
		}
		switch fields[0] {
		case "nameserver":
			if len(fields) > 1 {
				cfg.Nameservers = append(cfg.Nameservers, fields[1])
			}
		case "search":
			cfg.Search = append([]string(nil), fields[1:]...)
		case "domain":
			if len(fields) > 1 {
				cfg.Domain = fields[1]
			}
		}
	}
	return cfg
}

// RenderDNS writes cfg in resolv.conf syntax.
func RenderDNS(cfg DNSConfig) string {
	var b strings.Builder
	if cfg.Domain != "" {
		b.WriteString("domain " + cfg.Domain + "\n")
	}
	if len(cfg.Search) > 0 {
		b.WriteString("search " + strings.Join(cfg.Search, " ") + "\n")
	}
	for _, ns := range cfg.Nameservers {
		b.WriteString("nameserver " + ns + "\n")
	}
	return b.String()
}

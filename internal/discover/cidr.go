// Package discover finds Proxmox VE nodes on a network by probing the
// SSH port and the pveproxy web port of every address in a CIDR range.
package discover

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxHosts bounds the size of a scan (a /16).
const maxHosts = 1 << 16

// Host is an address that answered on at least one probed port.
type Host struct {
	Address netip.Addr
	SSH     bool
	Web     bool   // pveproxy answered: this is very likely a Proxmox node
	Name    string // first label of the reverse DNS name, if any
}

// Scanner probes addresses. A port of zero is not probed.
type Scanner struct {
	SSHPort     int
	WebPort     int
	Concurrency int
	Timeout     time.Duration
	// LookupAddr resolves reverse DNS names. nil skips the lookup.
	LookupAddr func(ctx context.Context, addr string) ([]string, error)
}

// NewScanner returns a Scanner for the standard ports.
func NewScanner() *Scanner {
	return &Scanner{
		SSHPort:     22,
		WebPort:     8006,
		Concurrency: 64,
		Timeout:     500 * time.Millisecond,
		LookupAddr:  net.DefaultResolver.LookupAddr,
	}
}

// Scan probes every usable address of cidr and returns the hosts that
// answered, in address order.
func (s *Scanner) Scan(ctx context.Context, cidr string) ([]Host, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	addrs, err := EnumerateHosts(prefix)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		found []Host
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Concurrency, 1))

	for _, addr := range addrs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			h := Host{
				Address: addr,
				SSH:     s.probe(gctx, addr, s.SSHPort),
				Web:     s.probe(gctx, addr, s.WebPort),
			}
			if !h.SSH && !h.Web {
				return nil
			}
			if s.LookupAddr != nil {
				if names, err := s.LookupAddr(gctx, addr.String()); err == nil {
					h.Name = NodeName(names)
				}
			}
			mu.Lock()
			found = append(found, h)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Address.Less(found[j].Address) })
	return found, nil
}

func (s *Scanner) probe(ctx context.Context, addr netip.Addr, port int) bool {
	if port <= 0 {
		return false
	}
	d := net.Dialer{Timeout: s.Timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(addr.String(), strconv.Itoa(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// EnumerateHosts returns the usable IPv4 addresses of prefix. For
// prefixes shorter than /31 the network and broadcast addresses are
// skipped; /31 and /32 use every address.
func EnumerateHosts(prefix netip.Prefix) ([]netip.Addr, error) {
	prefix = prefix.Masked()
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("only IPv4 ranges can be scanned, got %s", prefix)
	}
	hostBits := 32 - prefix.Bits()
	if hostBits > 16 {
		return nil, fmt.Errorf("range %s has more than %d addresses", prefix, maxHosts)
	}

	size := 1 << hostBits
	first, last := 0, size-1
	if hostBits >= 2 {
		first, last = 1, size-2
	}

	addrs := make([]netip.Addr, 0, last-first+1)
	addr := prefix.Addr()
	for i := 0; i < first; i++ {
		addr = addr.Next()
	}
	for i := first; i <= last; i++ {
		addrs = append(addrs, addr)
		addr = addr.Next()
	}
	return addrs, nil
}

// NodeName derives a node name from reverse DNS names: the first label of
// the first name, as Proxmox names nodes by their short hostname.
func NodeName(names []string) string {
	for _, n := range names {
		n = strings.TrimSuffix(n, ".")
		if label, _, _ := strings.Cut(n, "."); label != "" {
			return label
		}
	}
	return ""
}

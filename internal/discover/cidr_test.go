package discover

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"testing"
	"time"
)

func TestEnumerateHosts(t *testing.T) {
	tests := []struct {
		cidr  string
		count int
		first string
		last  string
	}{
		{"192.168.1.1/32", 1, "192.168.1.1", "192.168.1.1"},
		{"192.168.1.0/31", 2, "192.168.1.0", "192.168.1.1"},
		{"192.168.1.0/30", 2, "192.168.1.1", "192.168.1.2"},
		{"10.0.0.0/24", 254, "10.0.0.1", "10.0.0.254"},
		{"10.0.0.77/24", 254, "10.0.0.1", "10.0.0.254"},
	}
	for _, tc := range tests {
		t.Run(tc.cidr, func(t *testing.T) {
			addrs, err := EnumerateHosts(netip.MustParsePrefix(tc.cidr))
			if err != nil {
				t.Fatal(err)
			}
			if len(addrs) != tc.count {
				t.Fatalf("got %d addresses, want %d", len(addrs), tc.count)
			}
			if addrs[0].String() != tc.first || addrs[len(addrs)-1].String() != tc.last {
				t.Errorf("range %s..%s, want %s..%s", addrs[0], addrs[len(addrs)-1], tc.first, tc.last)
			}
		})
	}
}

func TestEnumerateHostsRejects(t *testing.T) {
	for _, cidr := range []string{"10.0.0.0/8", "2001:db8::/120"} {
		if _, err := EnumerateHosts(netip.MustParsePrefix(cidr)); err == nil {
			t.Errorf("EnumerateHosts(%s) succeeded, want error", cidr)
		}
	}
}

func TestNodeName(t *testing.T) {
	tests := []struct {
		names []string
		want  string
	}{
		{[]string{"pve1.lab.example."}, "pve1"},
		{[]string{"pve2"}, "pve2"},
		{[]string{"", "pve3.lab.example."}, "pve3"},
		{nil, ""},
	}
	for _, tc := range tests {
		if got := NodeName(tc.names); got != tc.want {
			t.Errorf("NodeName(%q) = %q, want %q", tc.names, got, tc.want)
		}
	}
}

func listen(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()
	p, _ := strconv.Atoi(port)
	return p
}

func TestScan(t *testing.T) {
	s := &Scanner{
		SSHPort:     listen(t),
		WebPort:     listen(t),
		Concurrency: 4,
		Timeout:     time.Second,
		LookupAddr: func(_ context.Context, addr string) ([]string, error) {
			if addr != "127.0.0.1" {
				return nil, errors.New("unexpected lookup")
			}
			return []string{"pve1.lab.example."}, nil
		},
	}

	hosts, err := s.Scan(context.Background(), "127.0.0.1/32")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(hosts) != 1 {
		t.Fatalf("got %d hosts, want 1", len(hosts))
	}
	want := Host{Address: netip.MustParseAddr("127.0.0.1"), SSH: true, Web: true, Name: "pve1"}
	if hosts[0] != want {
		t.Errorf("got %+v, want %+v", hosts[0], want)
	}
}

func TestScanSSHOnly(t *testing.T) {
	s := &Scanner{SSHPort: listen(t), WebPort: closedPort(t), Concurrency: 1, Timeout: time.Second}

	hosts, err := s.Scan(context.Background(), "127.0.0.1/32")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(hosts) != 1 || !hosts[0].SSH || hosts[0].Web || hosts[0].Name != "" {
		t.Errorf("hosts = %+v", hosts)
	}
}

func TestScanNothingOpen(t *testing.T) {
	s := &Scanner{SSHPort: closedPort(t), WebPort: closedPort(t), Concurrency: 1, Timeout: time.Second}

	hosts, err := s.Scan(context.Background(), "127.0.0.1/32")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(hosts) != 0 {
		t.Errorf("hosts = %+v, want none", hosts)
	}
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner()
	if _, err := s.Scan(ctx, "127.0.0.0/30"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestScanInvalidCIDR(t *testing.T) {
	if _, err := NewScanner().Scan(context.Background(), "not-a-cidr"); err == nil {
		t.Error("expected an error")
	}
}

package exec

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agent462/pvectl/internal/executor"
	"github.com/agent462/pvectl/internal/grouper"
	"github.com/agent462/pvectl/internal/ui/style"
)

func plain() style.Styles { return style.New(false) }

func result(node, output string, exit int) grouper.NodeResult {
	return grouper.NodeResult{Node: node, Result: executor.Result{Output: output, ExitCode: exit}}
}

func TestFormatIdentical(t *testing.T) {
	grouped := grouper.Group([]grouper.NodeResult{
		result("pve1", "6.8.8-2-pve\n", 0),
		result("pve2", "6.8.8-2-pve\n", 0),
		result("pve3", "6.8.8-2-pve\n", 0),
	})
	out := NewFormatter(false, false, plain()).Format(grouped)

	for _, want := range []string{"3 nodes identical:", "pve1, pve2, pve3", "   6.8.8-2-pve", "3 succeeded"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatSingleNode(t *testing.T) {
	out := NewFormatter(false, false, plain()).Format(grouper.Group([]grouper.NodeResult{result("pve1", "up\n", 0)}))
	if !strings.HasPrefix(out, " 1 node:\n") {
		t.Errorf("got:\n%s", out)
	}
}

func TestFormatWithDiff(t *testing.T) {
	grouped := grouper.Group([]grouper.NodeResult{
		result("pve1", "Debian 12\n", 0),
		result("pve2", "Debian 12\n", 0),
		result("pve3", "Debian 11\n", 0),
	})
	out := NewFormatter(false, false, plain()).Format(grouped)

	for _, want := range []string{"2 nodes identical:", "1 node differs:", "-Debian 12", "+Debian 11", "3 succeeded"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatErrorsOnly(t *testing.T) {
	grouped := grouper.Group([]grouper.NodeResult{
		result("pve1", "active\n", 0),
		result("pve2", "failed\n", 3),
		{Node: "pve3", Err: &executor.ConnectionError{Host: "pve3.lab.example", Err: errors.New("connection refused"), Hint: "check that the SSH daemon is running"}},
		{Node: "pve4", Err: context.DeadlineExceeded},
	})
	out := NewFormatter(false, true, plain()).Format(grouped)

	if strings.Contains(out, "active") {
		t.Errorf("errors-only output shows the successful group:\n%s", out)
	}
	for _, want := range []string{
		"1 node exited with status 3:",
		"1 node failed:",
		"pve3 (pve3.lab.example: connection refused\n     hint: check that the SSH daemon is running)",
		"1 node timed out:",
		"1 succeeded, 1 non-zero exit, 1 failed, 1 timeout",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatOutcomes(t *testing.T) {
	outcomes := []executor.NodeOutcome{
		{Node: "pve1", Duration: 42 * time.Second},
		{Node: "pve2", Err: &executor.CommandFailure{Step: "act", Command: "apt-get upgrade -y", ExitCode: 100}},
	}
	out := NewFormatter(false, false, plain()).FormatOutcomes("updates", outcomes)

	for _, want := range []string{"✓ pve1 42s", "✗ pve2 act: \"apt-get upgrade -y\" exited with status 100", "updates: 1 succeeded, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	out = NewFormatter(false, true, plain()).FormatOutcomes("updates", outcomes)
	if strings.Contains(out, "pve1") {
		t.Errorf("errors-only output lists a successful node:\n%s", out)
	}
}

func TestFormatJSON(t *testing.T) {
	results := []grouper.NodeResult{
		{Node: "pve1", Result: executor.Result{Output: "ok\n", Duration: 2 * time.Second}},
		{Node: "pve2", Result: executor.Result{ExitCode: -1}, Err: errors.New("connection refused")},
	}

	data, err := NewFormatter(true, false, plain()).FormatJSON(results)
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}

	var parsed []map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(parsed))
	}
	if parsed[0]["node"] != "pve1" || parsed[0]["output"] != "ok\n" || parsed[0]["duration"] != "2s" {
		t.Errorf("first entry = %v", parsed[0])
	}
	if _, ok := parsed[0]["error"]; ok {
		t.Error("error key present for a successful node")
	}
	if parsed[1]["error"] != "connection refused" || parsed[1]["exit_code"] != float64(-1) {
		t.Errorf("second entry = %v", parsed[1])
	}
}

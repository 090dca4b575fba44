package main

import (
	"context"
	"fmt"

	"github.com/agent462/pvectl/internal/ui/exec"
)

// errSomeFailed is returned when at least one of several nodes failed;
// the per-node errors have already been printed.
type errSomeFailed struct {
	op     string
	failed int
	total  int
	first  error
}

func (e *errSomeFailed) Error() string {
	return fmt.Sprintf("%s failed on %d of %d nodes", e.op, e.failed, e.total)
}

func (e *errSomeFailed) Unwrap() error { return e.first }

// onEach runs fn for every node through the fleet. With one node its
// error is returned unchanged; several nodes get a per-node summary.
func (a *app) onEach(ctx context.Context, op string, nodes []string, fn func(ctx context.Context, node string) error) error {
	outcomes := a.fleet.Each(ctx, nodes, fn)
	if len(outcomes) == 1 {
		return outcomes[0].Err
	}

	fmt.Fprint(a.out, exec.NewFormatter(false, false, a.styles).FormatOutcomes(op, outcomes))

	var failed *errSomeFailed
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		if failed == nil {
			failed = &errSomeFailed{op: op, total: len(nodes), first: o.Err}
		}
		failed.failed++
	}
	if failed != nil {
		return failed
	}
	return nil
}

package executor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// NodeOutcome holds the result of running a task against a single node.
type NodeOutcome struct {
	Node     string
	Duration time.Duration
	Err      error
}

// Fleet fans independent per-node tasks out with bounded concurrency.
// Tasks share no state; each one is expected to do its own sequencing.
type Fleet struct {
	concurrency int
	timeout     time.Duration
}

// Option configures a Fleet.
type Option func(*Fleet)

// WithConcurrency sets the maximum number of nodes worked on at once.
func WithConcurrency(n int) Option {
	return func(f *Fleet) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithTimeout sets a per-node deadline. Zero leaves tasks unbounded.
func WithTimeout(d time.Duration) Option {
	return func(f *Fleet) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// NewFleet creates a Fleet with the given options.
func NewFleet(opts ...Option) *Fleet {
	f := &Fleet{concurrency: 20}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Each runs fn once per node. Outcomes are returned in the same order as
// nodes, and a failing node never stops the others.
func (f *Fleet) Each(ctx context.Context, nodes []string, fn func(ctx context.Context, node string) error) []NodeOutcome {
	outcomes := make([]NodeOutcome, len(nodes))
	if len(nodes) == 0 {
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for i, node := range nodes {
		g.Go(func() error {
			// Nodes still queued when the parent is cancelled are not started.
			if err := ctx.Err(); err != nil {
				outcomes[i] = NodeOutcome{Node: node, Err: err}
				return nil
			}

			nodeCtx := ctx
			if f.timeout > 0 {
				var cancel context.CancelFunc
				nodeCtx, cancel = context.WithTimeout(ctx, f.timeout)
				defer cancel()
			}

			start := time.Now()
			err := fn(nodeCtx, node)
			if err == nil && nodeCtx.Err() == context.DeadlineExceeded {
				err = context.DeadlineExceeded
			}
			outcomes[i] = NodeOutcome{Node: node, Duration: time.Since(start), Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

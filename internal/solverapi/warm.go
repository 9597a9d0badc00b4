package solverapi

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WarmResult pairs a batch index with the outcome of building its spec,
// so a caller can tell which entry in its original slice failed.
type WarmResult struct {
	Index    int
	Solver   *Solver
	Feasible bool
	Err      error
}

// WarmCatalogue builds every spec in specs concurrently, bounded by
// maxParallel (0 or less means no bound: every spec gets its own
// goroutine at once). This is the one place
// outside the single-threaded kernel where fan-out helps: building N
// independent solvers from a fixed startup catalogue is embarrassingly
// parallel, unlike driving a single Solver's own search (never shared
// across goroutines; the engine's single-threaded rules still hold
// per-Solver).
func WarmCatalogue(ctx context.Context, specs []ConstraintSpec, maxParallel int) []WarmResult {
	results := make([]WarmResult, len(specs))
	g, ctx := errgroup.WithContext(ctx)
	if maxParallel > 0 {
		g.SetLimit(maxParallel)
	}

	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			select {
			case <-ctx.Done():
				results[i] = WarmResult{Index: i, Err: ctx.Err()}
				return nil
			default:
			}
			s, err := Build(spec, DebugOptions{})
			if err != nil {
				results[i] = WarmResult{Index: i, Err: err}
				return nil
			}
			results[i] = WarmResult{Index: i, Solver: s, Feasible: s.Feasible()}
			return nil
		})
	}
	_ = g.Wait() // errors are carried per-result; Wait's error is always nil above
	return results
}

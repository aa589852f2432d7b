package stepper

import (
	"context"

	"golang.org/x/sync/errgroup"

	"taylorode/scalar"
)

// RunParallel propagates every Stepper in steppers to tEnd concurrently.
// The steppers are independent instances (see the Stepper doc comment);
// this is the recommended way to run a swarm of single-lane or
// small-batch trajectories across multiple goroutines, rather than
// sharing one Stepper across goroutines. ctx cancellation stops every
// steppers[i].PropagateUntil at its next step boundary via keepGoing.
//
// results[i] receives steppers[i]'s final per-lane StepResult slice.
// RunParallel returns the first error encountered, but does not cancel
// sibling propagations early beyond what ctx cancellation already
// triggers — a construction-time validation error can't occur here
// since every Stepper is already constructed, so the error return is
// reserved for future fallible per-instance work.
func RunParallel[F scalar.Float](ctx context.Context, steppers []*Stepper[F], tEnd F) ([][]StepResult, error) {
	results := make([][]StepResult, len(steppers))
	g, gctx := errgroup.WithContext(ctx)
	for idx, st := range steppers {
		idx, st := idx, st
		g.Go(func() error {
			keepGoing := func() bool {
				return gctx.Err() == nil
			}
			results[idx] = st.PropagateUntil(tEnd, keepGoing)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

package dtsynth

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jward/dtsynth/internal/trace"
	"github.com/jward/dtsynth/internal/typing"
)

// deduceAll deduces a signature for every function in calls and returns
// them in reconstruction order.
//
// Parallel mode: one task per function on an errgroup bounded by the worker
// count. Workers share no mutable state; each writes only its own slot of
// the result slice, so the merge is just the slice itself once Wait returns.
// The first failure cancels the remaining tasks.
func (e *Engine) deduceAll(ctx context.Context, d typing.Deducer, calls *trace.Calls) ([]*typing.Signature, error) {
	ids := calls.Functions()
	if !e.useParallel || len(ids) < 2 {
		return deduceSerial(ctx, d, calls, ids)
	}

	sigs := make([]*typing.Signature, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workerCount())
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sig, err := d.Deduce(id.Name, calls.Of(id))
			if err != nil {
				return err
			}
			sigs[i] = sig
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.log.WithField("workers", e.workerCount()).Debug("parallel deduction finished")
	return sigs, nil
}

func deduceSerial(ctx context.Context, d typing.Deducer, calls *trace.Calls, ids []trace.FunctionID) ([]*typing.Signature, error) {
	sigs := make([]*typing.Signature, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sig, err := d.Deduce(id.Name, calls.Of(id))
		if err != nil {
			return nil, err
		}
		sigs[i] = sig
	}
	return sigs, nil
}

func (e *Engine) workerCount() int {
	if e.workers > 0 {
		return e.workers
	}
	return runtime.NumCPU()
}

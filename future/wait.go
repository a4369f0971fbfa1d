package future

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// WaitAll blocks until every future has resolved or ctx ends. It keeps
// waiting for the rest after one fails; the first non-nil error
// (a job failure, a lost status source, or ctx expiry) is returned.
func WaitAll(ctx context.Context, futures ...*Future) error {
	var g errgroup.Group
	for _, f := range futures {
		g.Go(func() error {
			_, err := f.Result(ctx)
			return err
		})
	}
	return g.Wait()
}

// WaitAny blocks until any one future resolves and returns it. Futures
// that were already resolved when WaitAny is called qualify. With an
// empty set it returns an error immediately.
func WaitAny(ctx context.Context, futures ...*Future) (*Future, error) {
	if len(futures) == 0 {
		return nil, errors.New("future: WaitAny on empty set")
	}

	done := make(chan *Future, len(futures))
	for _, f := range futures {
		f.AddDoneCallback(func(resolved *Future) {
			select {
			case done <- resolved:
			default:
			}
		})
	}

	select {
	case f := <-done:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

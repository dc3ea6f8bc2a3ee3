package batch

import (
	"context"
	"time"

	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"
)

type outcome[T any] struct {
	value T
	err   error
}

// WithTimeout waits at most d for fn. When the timer fires first, the context given
// to fn is cancelled and onTimeout supplies the result instead; a nil onTimeout makes
// the call fail with ErrTimeout. Errors returned by onTimeout are passed through.
//
// If the parent context ends first, its error is returned.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error), onTimeout func(ctx context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn(callCtx)
		done <- outcome[T]{value: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.value, o.err
	case <-timer.C:
		cancel()
		if onTimeout == nil {
			var zero T
			return zero, contextutils.WrapErrorf(contextutils.ErrTimeout, "operation exceeded %s", d)
		}
		return onTimeout(ctx)
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

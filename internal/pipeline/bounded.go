package pipeline

import (
	"context"
	"time"
)

// DefaultTimeout bounds downstream calls when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Bounded runs call with a deadline of timeout and returns as soon as the
// deadline passes, even when call ignores its context. The abandoned call
// is left to finish on its own; its result is dropped. There is no retry.
func Bounded[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := call(ctx)
		ch <- outcome{v, err}
	}()

	select {
	case o := <-ch:
		return o.v, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Package capability runs calls to external services (language models, speech
// engines) so that their failures reach the dialogue core as values rather
// than as errors or panics.
package capability

import (
	"context"
	"fmt"
	"time"
)

// Result carries the outcome of one capability call.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Or returns the value on success and fallback otherwise.
func (r Result[T]) Or(fallback T) T {
	if r.Err != nil {
		return fallback
	}
	return r.Value
}

// Call invokes fn with a context bounded by timeout. A non-positive timeout
// leaves ctx unchanged. A panic inside fn is recovered and reported as Err.
func Call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (res Result[T]) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			var zero T
			res = Result[T]{Value: zero, Err: fmt.Errorf("capability panicked: %v", r)}
		}
	}()

	v, err := fn(ctx)
	if err != nil {
		var zero T
		return Result[T]{Value: zero, Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		var zero T
		return Result[T]{Value: zero, Err: ctxErr}
	}
	return Result[T]{Value: v}
}

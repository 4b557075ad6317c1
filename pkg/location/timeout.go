package location

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout bounds a position request when the caller does not configure one.
const DefaultTimeout = 15 * time.Second

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds every request to next so that a hang surfaces as a Timeout failure.
func WithTimeout(next Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &timeoutProvider{next: next, timeout: timeout}
}

func (t *timeoutProvider) RequestPosition(ctx context.Context, opts Options) (Coordinate, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		coord Coordinate
		err   error
	}
	done := make(chan result, 1)
	go func() {
		c, err := t.next.RequestPosition(ctx, opts)
		done <- result{c, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Coordinate{}, NewPositionError(Timeout, r.err)
		}
		return r.coord, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Coordinate{}, NewPositionError(Timeout, ctx.Err())
		}
		return Coordinate{}, ctx.Err()
	}
}

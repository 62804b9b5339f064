package timelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angeloszaimis/resilience/internal/clock"
)

// ErrTimeout is returned when the operation misses the configured deadline.
var ErrTimeout = errors.New("operation timed out")

// DefaultTimeout bounds operations when no explicit timeout is configured.
const DefaultTimeout = 5 * time.Second

// Operation is a unit of work raced against the deadline. It should honor
// ctx for cancellation to take effect; otherwise it keeps running in the
// background after a timeout.
type Operation func(ctx context.Context) (any, error)

type Limiter struct {
	timeout time.Duration
	clock   clock.Clock
}

func New(timeout time.Duration, clk clock.Clock) *Limiter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Limiter{timeout: timeout, clock: clk}
}

func (l *Limiter) Timeout() time.Duration {
	return l.timeout
}

type result struct {
	value any
	err   error
}

// Run executes op and returns whichever comes first: the operation's own
// result, ErrTimeout once the deadline fires, or ctx.Err() if the caller's
// context is cancelled. Exactly one of these is delivered. On timeout or
// cancellation the operation's context is cancelled and the operation is
// left to wind down on its own.
func (l *Limiter) Run(ctx context.Context, op Operation) (any, error) {
	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so the operation can finish after the caller has gone
	done := make(chan result, 1)
	go func() {
		value, err := op(opCtx)
		done <- result{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-l.clock.After(l.timeout):
		return nil, fmt.Errorf("%w after %s", ErrTimeout, l.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

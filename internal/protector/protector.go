package protector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/angeloszaimis/resilience/internal/circuitbreaker"
	"github.com/angeloszaimis/resilience/internal/metrics"
	"github.com/angeloszaimis/resilience/internal/timelimiter"
)

// Operation is the protected unit of work.
type Operation = timelimiter.Operation

// Fallback supplies the degraded response when the operation is rejected,
// fails, or times out. The cause carries the originating error.
type Fallback func(ctx context.Context, cause error) (any, error)

// FallbackError reports a fallback that itself failed. It is always
// surfaced to the caller, never swallowed.
type FallbackError struct {
	Operation string
	Err       error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("fallback for operation %q failed: %v", e.Operation, e.Err)
}

func (e *FallbackError) Unwrap() error {
	return e.Err
}

// Protector guards calls to named operations. All per-operation state lives
// in the registry; the protector only orchestrates.
type Protector struct {
	registry  *Registry
	logger    *slog.Logger
	collector *metrics.Collector
}

func New(registry *Registry, logger *slog.Logger, collector *metrics.Collector) *Protector {
	return &Protector{
		registry:  registry,
		logger:    logger,
		collector: collector,
	}
}

// Execute runs op under the operation's breaker and time limiter.
//
// A rejected call records no outcome and goes straight to the fallback. An
// admitted call records exactly one outcome: success, failure, or timeout.
// On success the operation's value is returned; otherwise the fallback's.
// When no fallback is available (neither the argument nor a registered
// default), the originating error is returned instead.
func (p *Protector) Execute(ctx context.Context, name string, op Operation, fallback Fallback) (any, error) {
	entry := p.registry.Get(name)

	permit, err := entry.Breaker.Acquire()
	if err != nil {
		p.logger.Warn("Call rejected by open circuit", slog.String("operation", name))
		p.emit(metrics.Event{
			Type:      metrics.EventCallRejected,
			Timestamp: p.registry.clock.Now(),
			Operation: name,
		})
		return p.invokeFallback(ctx, name, entry, fallback, fmt.Errorf("operation %q: %w", name, err))
	}

	start := p.registry.clock.Now()
	value, err := entry.Limiter.Run(ctx, op)
	elapsed := p.registry.clock.Now().Sub(start)

	outcome := classify(err)
	entry.Breaker.Record(permit, outcome, elapsed)

	p.logger.Debug("Call settled",
		slog.String("operation", name),
		slog.String("outcome", outcome.String()),
		slog.Duration("elapsed", elapsed))
	p.emit(metrics.Event{
		Type:      eventType(outcome),
		Timestamp: p.registry.clock.Now(),
		Operation: name,
		Duration:  elapsed,
	})

	if err == nil {
		return value, nil
	}

	return p.invokeFallback(ctx, name, entry, fallback, err)
}

// Do is the typed variant of Execute.
func Do[T any](ctx context.Context, p *Protector, name string, op func(context.Context) (T, error), fallback func(context.Context, error) (T, error)) (T, error) {
	var zero T

	var genericFallback Fallback
	if fallback != nil {
		genericFallback = func(ctx context.Context, cause error) (any, error) {
			return fallback(ctx, cause)
		}
	}

	value, err := p.Execute(ctx, name, func(ctx context.Context) (any, error) {
		return op(ctx)
	}, genericFallback)
	if err != nil {
		return zero, err
	}
	if value == nil {
		return zero, nil
	}

	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("operation %q: unexpected result type %T", name, value)
	}
	return typed, nil
}

func classify(err error) circuitbreaker.Outcome {
	switch {
	case err == nil:
		return circuitbreaker.OutcomeSuccess
	case errors.Is(err, timelimiter.ErrTimeout):
		return circuitbreaker.OutcomeTimeout
	default:
		return circuitbreaker.OutcomeFailure
	}
}

func eventType(outcome circuitbreaker.Outcome) metrics.EventType {
	switch outcome {
	case circuitbreaker.OutcomeSuccess:
		return metrics.EventCallSucceeded
	case circuitbreaker.OutcomeTimeout:
		return metrics.EventCallTimedOut
	default:
		return metrics.EventCallFailed
	}
}

func (p *Protector) invokeFallback(ctx context.Context, name string, entry *Entry, fallback Fallback, cause error) (any, error) {
	fb := fallback
	if fb == nil {
		fb = entry.Fallback
	}
	if fb == nil {
		return nil, cause
	}

	value, err := fb(ctx, cause)
	if err != nil {
		return nil, &FallbackError{Operation: name, Err: err}
	}
	return value, nil
}

func (p *Protector) emit(event metrics.Event) {
	if p.collector == nil {
		return
	}

	select {
	case p.collector.EventChannel() <- event:
	default:
	}
}

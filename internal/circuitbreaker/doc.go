// Package circuitbreaker implements a windowed circuit breaker for guarding
// calls to an unreliable downstream operation.
//
// A circuit breaker prevents cascading failures by rejecting calls once the
// recent failure rate crosses a threshold. It has three states:
//
//   - CLOSED: normal operation, calls admitted, outcomes recorded
//   - OPEN: failure rate too high, calls rejected without executing
//   - HALF-OPEN: limited probes test whether the downstream recovered
//
// Admission uses a permit discipline: Acquire grants a Permit (or rejects
// with ErrOpen), and the caller settles it with Record exactly once. Permits
// granted before a state transition are invalidated, so late outcomes never
// pollute a fresh window.
//
// Usage:
//
//	cb := circuitbreaker.New(circuitbreaker.DefaultConfig(), clock.NewSystem())
//	permit, err := cb.Acquire()
//	if err != nil {
//	    // Rejected, serve a fallback...
//	    return
//	}
//	start := time.Now()
//	err = call()
//	if err != nil {
//	    cb.Record(permit, circuitbreaker.OutcomeFailure, time.Since(start))
//	} else {
//	    cb.Record(permit, circuitbreaker.OutcomeSuccess, time.Since(start))
//	}
//
// All transitions are evaluated synchronously inside Acquire and Record.
// The OPEN to HALF-OPEN move happens lazily on the first Acquire after the
// open wait elapses, never on a background timer.
package circuitbreaker

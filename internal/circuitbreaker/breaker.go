package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/angeloszaimis/resilience/internal/clock"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Rejecting calls
	StateHalfOpen              // Probing recovery
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// Outcome classifies one admitted call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Acquire when the breaker refuses admission.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds the breaker thresholds. It is immutable once the breaker is
// created.
type Config struct {
	// FailureRateThreshold is the failure percentage at or above which the
	// breaker opens, evaluated once the window holds MinimumCalls records.
	FailureRateThreshold float64
	MinimumCalls         int
	WindowSize           int
	// OpenStateWait is how long the breaker stays open before the next
	// acquire is allowed to probe.
	OpenStateWait          time.Duration
	HalfOpenPermittedCalls int
	// SlowCallDurationThreshold marks calls at or above this duration as
	// slow. Zero disables slow-call detection.
	SlowCallDurationThreshold time.Duration
	SlowCallRateThreshold     float64
	// OnStateChange, if set, is invoked on every transition while the
	// breaker's mutex is held. It must not call back into the breaker.
	OnStateChange func(from, to State)
}

// DefaultConfig returns the standard thresholds: open at a 50% failure rate
// over a 100-call window with at least 100 recorded calls, wait 60s before
// probing, and admit 10 half-open probes.
func DefaultConfig() Config {
	return Config{
		FailureRateThreshold:   50,
		MinimumCalls:           100,
		WindowSize:             100,
		OpenStateWait:          60 * time.Second,
		HalfOpenPermittedCalls: 10,
	}
}

// CircuitBreaker is a CLOSED/OPEN/HALF-OPEN state machine over a sliding
// window of call outcomes. Transitions happen synchronously inside Acquire
// and Record; there are no background timers.
type CircuitBreaker struct {
	mutex  sync.Mutex
	config Config
	clock  clock.Clock

	state      State
	generation uint64
	window     *window
	openedAt   time.Time

	halfOpenTrials    int
	halfOpenSuccesses int
}

// Permit is the token for one admitted call. It must be passed to Record
// exactly once; a second Record on the same permit is a no-op.
type Permit struct {
	generation uint64
	recorded   bool
}

func New(cfg Config, clk clock.Clock) *CircuitBreaker {
	if cfg.WindowSize < 1 {
		cfg.WindowSize = 1
	}
	if cfg.MinimumCalls < 1 {
		cfg.MinimumCalls = 1
	}
	if cfg.HalfOpenPermittedCalls < 1 {
		cfg.HalfOpenPermittedCalls = 1
	}
	if clk == nil {
		clk = clock.NewSystem()
	}

	return &CircuitBreaker{
		config: cfg,
		clock:  clk,
		state:  StateClosed,
		window: newWindow(cfg.WindowSize),
	}
}

// Acquire asks for admission. It never records outcomes: a granted permit
// must be settled with Record, a rejection means no call was made. The
// OPEN to HALF-OPEN transition is evaluated lazily here once the open wait
// has elapsed, and the transitioning acquire is granted as the first probe.
func (cb *CircuitBreaker) Acquire() (*Permit, error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.clock.Now().Sub(cb.openedAt) < cb.config.OpenStateWait {
			return nil, ErrOpen
		}
		cb.setState(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenTrials >= cb.config.HalfOpenPermittedCalls {
			return nil, ErrOpen
		}
		cb.halfOpenTrials++
	}

	return &Permit{generation: cb.generation}, nil
}

// Record settles a permit with the call's outcome. Outcomes belonging to a
// generation that has since been reset are dropped. The window update and
// any resulting transition complete before the mutex is released, so the
// next Acquire observes the new state.
func (cb *CircuitBreaker) Record(p *Permit, out Outcome, elapsed time.Duration) {
	if p == nil {
		return
	}

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if p.recorded {
		return
	}
	p.recorded = true

	if p.generation != cb.generation {
		return
	}

	failed := out != OutcomeSuccess
	slow := cb.config.SlowCallDurationThreshold > 0 && elapsed >= cb.config.SlowCallDurationThreshold
	cb.window.add(failed, slow)

	switch cb.state {
	case StateClosed:
		if cb.shouldTrip() {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		if failed || slow {
			cb.setState(StateOpen)
			return
		}
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.config.HalfOpenPermittedCalls {
			cb.setState(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) shouldTrip() bool {
	if cb.window.len() < cb.config.MinimumCalls {
		return false
	}
	if cb.window.failureRate() >= cb.config.FailureRateThreshold {
		return true
	}
	if cb.config.SlowCallDurationThreshold > 0 && cb.window.slowRate() >= cb.config.SlowCallRateThreshold {
		return true
	}
	return false
}

// setState must be called with the mutex held. Every transition bumps the
// generation, invalidating permits granted before it.
func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to
	cb.generation++
	cb.window.reset()
	cb.halfOpenTrials = 0
	cb.halfOpenSuccesses = 0

	if to == StateOpen {
		cb.openedAt = cb.clock.Now()
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Counts is a point-in-time view of the breaker.
type Counts struct {
	State          State
	WindowLen      int
	FailureRate    float64
	HalfOpenTrials int
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return Counts{
		State:          cb.state,
		WindowLen:      cb.window.len(),
		FailureRate:    cb.window.failureRate(),
		HalfOpenTrials: cb.halfOpenTrials,
	}
}

package protector

import (
	"log/slog"
	"sync"
	"time"

	"github.com/angeloszaimis/resilience/internal/circuitbreaker"
	"github.com/angeloszaimis/resilience/internal/clock"
	"github.com/angeloszaimis/resilience/internal/metrics"
	"github.com/angeloszaimis/resilience/internal/timelimiter"
)

// Settings configures one operation's protection triple. Zero fields
// inherit the registry defaults.
type Settings struct {
	Breaker  circuitbreaker.Config
	Timeout  time.Duration
	Fallback Fallback
}

// Entry is the materialized triple for one operation, owned exclusively by
// the registry.
type Entry struct {
	Breaker  *circuitbreaker.CircuitBreaker
	Limiter  *timelimiter.Limiter
	Fallback Fallback
}

// Registry maps operation names to their breaker, limiter, and default
// fallback, creating them on first use. Settings become effective when the
// entry is materialized; Register must run before the first Get for a name
// (or after a Reset).
type Registry struct {
	mutex     sync.RWMutex
	entries   map[string]*Entry
	overrides map[string]Settings
	defaults  Settings
	clock     clock.Clock
	logger    *slog.Logger
	collector *metrics.Collector
}

func NewRegistry(defaults Settings, clk clock.Clock, logger *slog.Logger, collector *metrics.Collector) *Registry {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = slog.Default()
	}

	base := Settings{
		Breaker: circuitbreaker.DefaultConfig(),
		Timeout: timelimiter.DefaultTimeout,
	}

	return &Registry{
		entries:   make(map[string]*Entry),
		overrides: make(map[string]Settings),
		defaults:  merge(base, defaults),
		clock:     clk,
		logger:    logger,
		collector: collector,
	}
}

// Register installs per-operation settings layered over the defaults.
func (r *Registry) Register(name string, settings Settings) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.overrides[name] = settings
}

func (r *Registry) Get(name string) *Entry {
	r.mutex.RLock()
	entry, exists := r.entries[name]
	r.mutex.RUnlock()

	if exists {
		return entry
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if entry, exists = r.entries[name]; exists {
		return entry
	}

	settings := merge(r.defaults, r.overrides[name])

	cfg := settings.Breaker
	cfg.OnStateChange = r.stateChangeHook(name)

	entry = &Entry{
		Breaker:  circuitbreaker.New(cfg, r.clock),
		Limiter:  timelimiter.New(settings.Timeout, r.clock),
		Fallback: settings.Fallback,
	}
	r.entries[name] = entry
	return entry
}

func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries = make(map[string]*Entry)
}

func (r *Registry) Stats() map[string]circuitbreaker.State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]circuitbreaker.State, len(r.entries))
	for name, entry := range r.entries {
		stats[name] = entry.Breaker.State()
	}
	return stats
}

// stateChangeHook logs and emits every breaker transition. The breaker
// invokes it with its mutex held, so the hook stays non-blocking.
func (r *Registry) stateChangeHook(name string) func(from, to circuitbreaker.State) {
	return func(from, to circuitbreaker.State) {
		r.logger.Info("Circuit breaker state changed",
			slog.String("operation", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))

		if r.collector == nil {
			return
		}
		select {
		case r.collector.EventChannel() <- metrics.Event{
			Type:      metrics.EventStateChanged,
			Timestamp: r.clock.Now(),
			Operation: name,
			From:      from.String(),
			To:        to.String(),
		}:
		default:
		}
	}
}

// merge layers the set fields of override on top of base. OnStateChange is
// not merged: the registry owns state-change notification.
func merge(base, override Settings) Settings {
	out := base

	if override.Breaker.FailureRateThreshold > 0 {
		out.Breaker.FailureRateThreshold = override.Breaker.FailureRateThreshold
	}
	if override.Breaker.MinimumCalls > 0 {
		out.Breaker.MinimumCalls = override.Breaker.MinimumCalls
	}
	if override.Breaker.WindowSize > 0 {
		out.Breaker.WindowSize = override.Breaker.WindowSize
	}
	if override.Breaker.OpenStateWait > 0 {
		out.Breaker.OpenStateWait = override.Breaker.OpenStateWait
	}
	if override.Breaker.HalfOpenPermittedCalls > 0 {
		out.Breaker.HalfOpenPermittedCalls = override.Breaker.HalfOpenPermittedCalls
	}
	if override.Breaker.SlowCallDurationThreshold > 0 {
		out.Breaker.SlowCallDurationThreshold = override.Breaker.SlowCallDurationThreshold
	}
	if override.Breaker.SlowCallRateThreshold > 0 {
		out.Breaker.SlowCallRateThreshold = override.Breaker.SlowCallRateThreshold
	}
	if override.Timeout > 0 {
		out.Timeout = override.Timeout
	}
	if override.Fallback != nil {
		out.Fallback = override.Fallback
	}

	return out
}

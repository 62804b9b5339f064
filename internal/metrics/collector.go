package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventCallSucceeded EventType = "call_succeeded"
	EventCallFailed    EventType = "call_failed"
	EventCallTimedOut  EventType = "call_timed_out"
	EventCallRejected  EventType = "call_rejected"
	EventStateChanged  EventType = "state_changed"
)

// Event describes one observation on a protected operation. From and To are
// breaker state names, set only on state changes.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Operation string
	Duration  time.Duration
	From      string
	To        string
}

type Collector struct {
	eventCh chan Event
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- Event {
	return c.eventCh
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventCallSucceeded:
		c.metrics.RecordSuccess(event.Operation, event.Duration)

	case EventCallFailed:
		c.metrics.RecordFailure(event.Operation, event.Duration)

	case EventCallTimedOut:
		c.metrics.RecordTimeout(event.Operation, event.Duration)

	case EventCallRejected:
		c.metrics.RecordRejection(event.Operation)

	case EventStateChanged:
		c.metrics.RecordStateChange(event.Operation, event.To)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}

// Package metrics provides real-time metrics collection for protected calls.
//
// It uses a channel-based event pipeline to asynchronously collect metrics
// about:
//   - Call counts and outcomes (success/failure/timeout) per operation
//   - Rejections short-circuited by an open breaker
//   - Response times with percentile calculations (P50, P95, P99)
//   - Breaker state and state-change counts per operation
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the call path. Events are sent via buffered channels with
// non-blocking semantics to prevent performance degradation under load.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	// Emit events while handling calls
//	collector.EventChannel() <- metrics.Event{
//		Type:      metrics.EventCallSucceeded,
//		Operation: "greet",
//		Duration:  150 * time.Millisecond,
//	}
//
//	// Get metrics snapshot
//	snapshot := collector.Snapshot()
//
// The package provides thread-safe metrics storage using sync.RWMutex and
// supports graceful shutdown with event draining to prevent data loss.
package metrics

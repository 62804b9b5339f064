package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex         sync.RWMutex
	calls         map[string]int64
	successes     map[string]int64
	failures      map[string]int64
	timeouts      map[string]int64
	rejections    map[string]int64
	responseTimes map[string][]time.Duration
	states        map[string]string
	stateChanges  map[string]int64
	startTime     time.Time
}

type Snapshot struct {
	TotalCalls int64                       `json:"total_calls"`
	Uptime     time.Duration               `json:"uptime"`
	Operations map[string]OperationMetrics `json:"operations"`
}

type OperationMetrics struct {
	Calls        int64         `json:"calls"`
	Successes    int64         `json:"successes"`
	Failures     int64         `json:"failures"`
	Timeouts     int64         `json:"timeouts"`
	Rejections   int64         `json:"rejections"`
	State        string        `json:"state"`
	StateChanges int64         `json:"state_changes"`
	AvgResponse  time.Duration `json:"avg_response"`
	P50Response  time.Duration `json:"p50_response"`
	P95Response  time.Duration `json:"p95_response"`
	P99Response  time.Duration `json:"p99_response"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		calls:         make(map[string]int64),
		successes:     make(map[string]int64),
		failures:      make(map[string]int64),
		timeouts:      make(map[string]int64),
		rejections:    make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		states:        make(map[string]string),
		stateChanges:  make(map[string]int64),
		startTime:     time.Now(),
	}
}

func (m *Metrics) RecordSuccess(operation string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls[operation]++
	m.successes[operation]++
	m.recordResponse(operation, duration)
}

func (m *Metrics) RecordFailure(operation string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls[operation]++
	m.failures[operation]++
	m.recordResponse(operation, duration)
}

func (m *Metrics) RecordTimeout(operation string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls[operation]++
	m.timeouts[operation]++
	m.recordResponse(operation, duration)
}

// RecordRejection counts a short-circuited call. Rejections carry no
// response time: no call was made.
func (m *Metrics) RecordRejection(operation string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejections[operation]++
}

func (m *Metrics) RecordStateChange(operation, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.states[operation] = state
	m.stateChanges[operation]++
}

// recordResponse must be called with the mutex held.
func (m *Metrics) recordResponse(operation string, duration time.Duration) {
	m.responseTimes[operation] = append(m.responseTimes[operation], duration)

	if len(m.responseTimes[operation]) > 1000 {
		m.responseTimes[operation] = m.responseTimes[operation][1:]
	}
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:     time.Since(m.startTime),
		Operations: make(map[string]OperationMetrics),
	}

	// Collect all operation names seen on any path
	allOperations := make(map[string]bool)
	for operation := range m.calls {
		allOperations[operation] = true
	}
	for operation := range m.rejections {
		allOperations[operation] = true
	}
	for operation := range m.states {
		allOperations[operation] = true
	}

	for operation := range allOperations {
		snap.TotalCalls += m.calls[operation]

		om := OperationMetrics{
			Calls:        m.calls[operation],
			Successes:    m.successes[operation],
			Failures:     m.failures[operation],
			Timeouts:     m.timeouts[operation],
			Rejections:   m.rejections[operation],
			State:        m.states[operation],
			StateChanges: m.stateChanges[operation],
		}

		durations := m.responseTimes[operation]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			om.AvgResponse = average(sorted)
			om.P50Response = percentile(sorted, 0.50)
			om.P95Response = percentile(sorted, 0.95)
			om.P99Response = percentile(sorted, 0.99)
		}

		snap.Operations[operation] = om
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}

package circuitbreaker

// window is a count-based ring of the most recent call records. Once full,
// each add overwrites the oldest record. The breaker mutates it only while
// holding its own mutex, so the window itself carries no locking.
type window struct {
	records   []record
	pos       int
	size      int
	failures  int
	slowCalls int
}

type record struct {
	failed bool
	slow   bool
}

func newWindow(capacity int) *window {
	if capacity < 1 {
		capacity = 1
	}
	return &window{records: make([]record, capacity)}
}

func (w *window) add(failed, slow bool) {
	if w.size == len(w.records) {
		old := w.records[w.pos]
		if old.failed {
			w.failures--
		}
		if old.slow {
			w.slowCalls--
		}
	} else {
		w.size++
	}

	w.records[w.pos] = record{failed: failed, slow: slow}
	w.pos = (w.pos + 1) % len(w.records)

	if failed {
		w.failures++
	}
	if slow {
		w.slowCalls++
	}
}

func (w *window) len() int {
	return w.size
}

// failureRate returns the failed share of recorded calls as a percentage.
// An empty window reports 0.
func (w *window) failureRate() float64 {
	if w.size == 0 {
		return 0
	}
	return float64(w.failures) / float64(w.size) * 100
}

func (w *window) slowRate() float64 {
	if w.size == 0 {
		return 0
	}
	return float64(w.slowCalls) / float64(w.size) * 100
}

func (w *window) reset() {
	w.pos = 0
	w.size = 0
	w.failures = 0
	w.slowCalls = 0
}

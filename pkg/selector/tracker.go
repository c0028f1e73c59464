package selector

import (
	"sort"
	"sync"
	"time"
)

// defaultWindowSize bounds the per-backend latency sample window.
const defaultWindowSize = 64

// LatencyTracker maintains a sliding window of recent request latencies
// per backend and reports the window median. The orchestrator feeds it
// after every dispatch and reads it when assembling a Stats snapshot.
type LatencyTracker struct {
	mu      sync.RWMutex
	window  int
	samples map[string]*latencyWindow
}

type latencyWindow struct {
	buf  []time.Duration
	next int
	full bool
}

// NewLatencyTracker creates a tracker with the given window size per
// backend. A non-positive size falls back to the default.
func NewLatencyTracker(window int) *LatencyTracker {
	if window <= 0 {
		window = defaultWindowSize
	}
	return &LatencyTracker{
		window:  window,
		samples: make(map[string]*latencyWindow),
	}
}

// Observe records one latency sample for a backend, displacing the oldest
// sample once the window is full.
func (t *LatencyTracker) Observe(backend string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.samples[backend]
	if !ok {
		w = &latencyWindow{buf: make([]time.Duration, t.window)}
		t.samples[backend] = w
	}

	w.buf[w.next] = latency
	w.next++
	if w.next == len(w.buf) {
		w.next = 0
		w.full = true
	}
}

// P50 returns the median latency over the backend's current window. The
// second return is false when no samples have been recorded.
func (t *LatencyTracker) P50(backend string) (time.Duration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	w, ok := t.samples[backend]
	if !ok {
		return 0, false
	}

	n := w.next
	if w.full {
		n = len(w.buf)
	}
	if n == 0 {
		return 0, false
	}

	sorted := make([]time.Duration, n)
	copy(sorted, w.buf[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return sorted[n/2], true
}

// Reset drops all samples for a backend, for example after it is
// unregistered.
func (t *LatencyTracker) Reset(backend string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.samples, backend)
}

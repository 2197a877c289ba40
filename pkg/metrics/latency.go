package metrics

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps the most recent maxSize durations and answers
// percentile queries over them. Safe for concurrent use.
type LatencyTracker struct {
	mu      sync.Mutex
	values  []time.Duration
	maxSize int
}

// NewLatencyTracker creates a new latency tracker. maxSize below 1 is
// treated as 1.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LatencyTracker{
		values:  make([]time.Duration, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record records a latency value, evicting the oldest one when full.
func (l *LatencyTracker) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) >= l.maxSize {
		l.values = l.values[1:]
	}
	l.values = append(l.values, d)
}

// Len returns the number of retained values.
func (l *LatencyTracker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.values)
}

// Percentile returns the nearest-rank percentile p (0-100) of the retained
// values, or 0 when nothing was recorded.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.Lock()
	sorted := make([]time.Duration, len(l.values))
	copy(sorted, l.values)
	l.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(float64(len(sorted)) * p / 100)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	if index < 0 {
		index = 0
	}
	return sorted[index]
}

package monitor

import (
	"sync"
	"sync/atomic"
)

// queryStats counts service operations in process. The key set is bounded
// at maxKeys entries, one of which is the overflow bucket: once the map is
// full, unknown names land there instead of growing it.
type queryStats struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
	maxKeys  int
}

const statsOverflowKey = "other"

func newQueryStats(maxKeys int) *queryStats {
	q := &queryStats{
		counters: make(map[string]*atomic.Int64, maxKeys),
		maxKeys:  maxKeys,
	}
	// The overflow bucket is reserved up front so the map never exceeds
	// maxKeys entries.
	q.counters[statsOverflowKey] = &atomic.Int64{}
	return q
}

func (q *queryStats) record(op string) {
	q.mu.RLock()
	counter, ok := q.counters[op]
	q.mu.RUnlock()

	if !ok {
		q.mu.Lock()
		counter, ok = q.counters[op]
		if !ok {
			if len(q.counters) >= q.maxKeys {
				counter = q.counters[statsOverflowKey]
			} else {
				counter = &atomic.Int64{}
				q.counters[op] = counter
			}
		}
		q.mu.Unlock()
	}

	counter.Add(1)
}

// snapshot returns a copy of the current counters.
func (q *queryStats) snapshot() map[string]int64 {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make(map[string]int64, len(q.counters))
	for op, counter := range q.counters {
		out[op] = counter.Load()
	}
	return out
}

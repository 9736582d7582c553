package storage

import (
	"sync"
	"time"
)

// LatencyBucket is a coarse search-latency histogram bucket, kept to the
// five ranges the Storage Engine adapter actually reports (§9.3).
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch ms := d.Milliseconds(); {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryKind classifies which retrieval sources contributed to a search, so
// the histogram can be read alongside "was this a lexical, semantic, or
// mixed hit" the way §9.3's placeholder analytics wanted broken out.
type QueryKind string

const (
	QueryLexical  QueryKind = "lexical"
	QuerySemantic QueryKind = "semantic"
	QueryMixed    QueryKind = "mixed"
)

// QueryMetricsSnapshot is an immutable read of the rolling counters below.
type QueryMetricsSnapshot struct {
	TotalQueries     int64
	ZeroResultCount  int64
	KindCounts       map[QueryKind]int64
	LatencyHistogram map[LatencyBucket]int64
	Since            time.Time
}

// ZeroResultRate returns the fraction of queries that returned no results.
func (s QueryMetricsSnapshot) ZeroResultRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries)
}

// QueryMetrics is the rolling latency histogram and query-pattern counter
// the Storage Engine adapter keeps per SPEC_FULL.md §9.3, replacing the
// hard-coded placeholder analytics the original returned. It is an
// in-memory-only rolling window: no persistence, no background flush loop —
// every SPEC_FULL component that reads it (graph analytics, `status`) wants
// the process's current session, not a historical store.
type QueryMetrics struct {
	mu          sync.RWMutex
	total       int64
	zeroResults int64
	kinds       map[QueryKind]int64
	latencies   map[LatencyBucket]int64
	since       time.Time
}

// NewQueryMetrics returns an empty metrics collector.
func NewQueryMetrics() *QueryMetrics {
	return &QueryMetrics{
		kinds:     make(map[QueryKind]int64),
		latencies: make(map[LatencyBucket]int64),
		since:     time.Now(),
	}
}

// Record captures one completed search: its retrieval kind, result count,
// and latency. Safe for concurrent use.
func (m *QueryMetrics) Record(kind QueryKind, resultCount int, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.kinds[kind]++
	m.latencies[LatencyToBucket(latency)]++
	if resultCount == 0 {
		m.zeroResults++
	}
}

// Snapshot returns a copy of the current counters.
func (m *QueryMetrics) Snapshot() QueryMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kinds := make(map[QueryKind]int64, len(m.kinds))
	for k, v := range m.kinds {
		kinds[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	return QueryMetricsSnapshot{
		TotalQueries:     m.total,
		ZeroResultCount:  m.zeroResults,
		KindCounts:       kinds,
		LatencyHistogram: latencies,
		Since:            m.since,
	}
}

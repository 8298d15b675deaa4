package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one Manager counter or histogram.
type MetricID uint16

const (
	// MetricSessionCreated counts CreateSession calls that stored a new session.
	MetricSessionCreated MetricID = iota
	// MetricSessionExisting counts CreateSession calls that found a live session.
	MetricSessionExisting
	// MetricSessionTouched counts successful activity refreshes.
	MetricSessionTouched
	// MetricSessionTouchMiss counts activity refreshes for absent sessions.
	MetricSessionTouchMiss
	// MetricSessionDeleted counts deletions of live sessions.
	MetricSessionDeleted
	// MetricSessionDeleteMiss counts deletions of absent sessions.
	MetricSessionDeleteMiss
	// MetricTokenLookupHit counts token lookups that resolved a user.
	MetricTokenLookupHit
	// MetricTokenLookupMiss counts token lookups with no owner.
	MetricTokenLookupMiss
	// MetricTokenWriteUnverified counts creates whose token key read back empty.
	MetricTokenWriteUnverified
	// MetricBackendError counts operations that failed on Redis.
	MetricBackendError
	// MetricKeysExported counts keys written by Export.
	MetricKeysExported
	// MetricFlushAll counts FlushAll calls.
	MetricFlushAll
	// MetricOperationLatency is the latency histogram of session operations.
	MetricOperationLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and one latency histogram.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metric values.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a Metrics set. Everything is a no-op when disabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to a counter.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to a counter.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the latency histogram. Only MetricOperationLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricOperationLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of a counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
//
//	Performance: allocates two maps; intended for scrape paths.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricOperationLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricOperationLatency].buckets[i])
		}
		s.Histograms[MetricOperationLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}

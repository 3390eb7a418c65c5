package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks pipeline and provider performance.
type SystemMetrics struct {
	// Latency histograms
	WorkflowLatency *LatencyHistogram
	NewsLatency     *LatencyHistogram
	MarketLatency   *LatencyHistogram
	AdvisorLatency  *LatencyHistogram
	APILatency      *LatencyHistogram

	// Counters
	apiRequests      uint64
	apiErrors        uint64
	workflowsStarted uint64
	workflowsFailed  uint64
	breakerTrips     uint64
	newsItems        uint64
	snapshots        uint64

	startedAt time.Time
}

// LatencyHistogram tracks latency samples over a sliding window.
// Stats are recomputed lazily when samples change.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewSystemMetrics creates a new metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		WorkflowLatency: NewLatencyHistogram(1000),
		NewsLatency:     NewLatencyHistogram(1000),
		MarketLatency:   NewLatencyHistogram(1000),
		AdvisorLatency:  NewLatencyHistogram(1000),
		APILatency:      NewLatencyHistogram(1000),
		startedAt:       time.Now(),
	}
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// IncrementWorkflows counts a started pipeline run.
func (m *SystemMetrics) IncrementWorkflows() {
	atomic.AddUint64(&m.workflowsStarted, 1)
}

// IncrementFailures counts a run that ended with an error event.
func (m *SystemMetrics) IncrementFailures() {
	atomic.AddUint64(&m.workflowsFailed, 1)
}

// IncrementBreakerTrips counts a provider breaker opening.
func (m *SystemMetrics) IncrementBreakerTrips() {
	atomic.AddUint64(&m.breakerTrips, 1)
}

// AddResults records how much data a run gathered.
func (m *SystemMetrics) AddResults(news, snapshots int) {
	atomic.AddUint64(&m.newsItems, uint64(news))
	atomic.AddUint64(&m.snapshots, uint64(snapshots))
}

// IncrementAPI counts an HTTP request.
func (m *SystemMetrics) IncrementAPI() {
	atomic.AddUint64(&m.apiRequests, 1)
}

// IncrementAPIErrors counts an HTTP response with status >= 400.
func (m *SystemMetrics) IncrementAPIErrors() {
	atomic.AddUint64(&m.apiErrors, 1)
}

// MetricsSnapshot is a point-in-time view served by /api/metrics.
type MetricsSnapshot struct {
	WorkflowLatency  LatencyStats `json:"workflow_latency"`
	NewsLatency      LatencyStats `json:"news_latency"`
	MarketLatency    LatencyStats `json:"market_latency"`
	AdvisorLatency   LatencyStats `json:"advisor_latency"`
	APILatency       LatencyStats `json:"api_latency"`
	APIRequests      uint64       `json:"api_requests"`
	APIErrors        uint64       `json:"api_errors"`
	WorkflowsStarted uint64       `json:"workflows_started"`
	WorkflowsFailed  uint64       `json:"workflows_failed"`
	BreakerTrips     uint64       `json:"breaker_trips"`
	NewsItems        uint64       `json:"news_items"`
	Snapshots        uint64       `json:"market_snapshots"`
	GoroutineCount   int          `json:"goroutine_count"`
	HeapAlloc        uint64       `json:"heap_alloc_bytes"`
	Uptime           string       `json:"uptime"`
	Timestamp        time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return MetricsSnapshot{
		WorkflowLatency:  m.WorkflowLatency.Stats(),
		NewsLatency:      m.NewsLatency.Stats(),
		MarketLatency:    m.MarketLatency.Stats(),
		AdvisorLatency:   m.AdvisorLatency.Stats(),
		APILatency:       m.APILatency.Stats(),
		APIRequests:      atomic.LoadUint64(&m.apiRequests),
		APIErrors:        atomic.LoadUint64(&m.apiErrors),
		WorkflowsStarted: atomic.LoadUint64(&m.workflowsStarted),
		WorkflowsFailed:  atomic.LoadUint64(&m.workflowsFailed),
		BreakerTrips:     atomic.LoadUint64(&m.breakerTrips),
		NewsItems:        atomic.LoadUint64(&m.newsItems),
		Snapshots:        atomic.LoadUint64(&m.snapshots),
		GoroutineCount:   runtime.NumGoroutine(),
		HeapAlloc:        memStats.HeapAlloc,
		Uptime:           time.Since(m.startedAt).Truncate(time.Second).String(),
		Timestamp:        time.Now(),
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{
		start:     time.Now(),
		histogram: h,
	}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}

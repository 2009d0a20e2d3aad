package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks execution-core performance: placement/fill latency
// histograms and lifecycle counters.
type Metrics struct {
	PlacementLatency  *LatencyHistogram
	FillLatency       *LatencyHistogram
	ProtectionLatency *LatencyHistogram

	ordersPlaced    uint64
	ordersFilled    uint64
	ordersCancelled uint64
	riskRejections  uint64
	ticksProcessed  uint64
	errorsCount     uint64
}

// NewMetrics creates a metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		PlacementLatency:  NewLatencyHistogram(1000),
		FillLatency:       NewLatencyHistogram(1000),
		ProtectionLatency: NewLatencyHistogram(1000),
	}
}

// LatencyHistogram tracks latency samples in a sliding window. Stats are
// recomputed lazily, only when samples have changed since the last call.
type LatencyHistogram struct {
	mu      sync.Mutex
	samples []float64
	maxSize int
	dirty   bool
	cached  LatencyStats
}

// NewLatencyHistogram creates a sliding-window histogram.
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

// RecordDuration converts a duration to ms and records it.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
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

// Stats returns min/max/avg and percentiles over the window.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cached.Count > 0 {
		return h.cached
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
	h.cached = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cached
}

func (m *Metrics) IncrementPlaced()        { atomic.AddUint64(&m.ordersPlaced, 1) }
func (m *Metrics) IncrementFilled()        { atomic.AddUint64(&m.ordersFilled, 1) }
func (m *Metrics) IncrementCancelled()     { atomic.AddUint64(&m.ordersCancelled, 1) }
func (m *Metrics) IncrementRiskRejection() { atomic.AddUint64(&m.riskRejections, 1) }
func (m *Metrics) IncrementTicks()         { atomic.AddUint64(&m.ticksProcessed, 1) }
func (m *Metrics) IncrementErrors()        { atomic.AddUint64(&m.errorsCount, 1) }

// Snapshot is a point-in-time metrics view for the observability API.
type Snapshot struct {
	PlacementLatency  LatencyStats `json:"placement_latency"`
	FillLatency       LatencyStats `json:"fill_latency"`
	ProtectionLatency LatencyStats `json:"protection_latency"`
	OrdersPlaced      uint64       `json:"orders_placed"`
	OrdersFilled      uint64       `json:"orders_filled"`
	OrdersCancelled   uint64       `json:"orders_cancelled"`
	RiskRejections    uint64       `json:"risk_rejections"`
	TicksProcessed    uint64       `json:"ticks_processed"`
	ErrorsCount       uint64       `json:"errors_count"`
	GoroutineCount    int          `json:"goroutine_count"`
	HeapAlloc         uint64       `json:"heap_alloc_bytes"`
	Timestamp         time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time snapshot.
func (m *Metrics) GetSnapshot() Snapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return Snapshot{
		PlacementLatency:  m.PlacementLatency.Stats(),
		FillLatency:       m.FillLatency.Stats(),
		ProtectionLatency: m.ProtectionLatency.Stats(),
		OrdersPlaced:      atomic.LoadUint64(&m.ordersPlaced),
		OrdersFilled:      atomic.LoadUint64(&m.ordersFilled),
		OrdersCancelled:   atomic.LoadUint64(&m.ordersCancelled),
		RiskRejections:    atomic.LoadUint64(&m.riskRejections),
		TicksProcessed:    atomic.LoadUint64(&m.ticksProcessed),
		ErrorsCount:       atomic.LoadUint64(&m.errorsCount),
		GoroutineCount:    runtime.NumGoroutine(),
		HeapAlloc:         memStats.HeapAlloc,
		Timestamp:         time.Now(),
	}
}

// Timer measures one operation's duration into a histogram.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer starts a timer recording into h.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{start: time.Now(), histogram: h}
}

// Stop records the elapsed time.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}

package common

import (
	"log"
	"strconv"
	"sync"
	"time"
)

// WeightTracker follows the venue's request-weight budget as reported in
// response headers. It does not gate requests itself; callers consult
// ShouldDelay before bursts of non-critical calls.
type WeightTracker struct {
	used      int
	limit     int
	lastReset time.Time
	window    time.Duration
	mu        sync.RWMutex
}

// NewWeightTracker creates a tracker for the given weight budget per window
// (Binance USDT-M futures allows 2400 per minute).
func NewWeightTracker(limit int, window time.Duration) *WeightTracker {
	return &WeightTracker{
		limit:     limit,
		window:    window,
		lastReset: time.Now(),
	}
}

// Observe records the used weight reported by a response header.
func (w *WeightTracker) Observe(headerValue string) {
	if headerValue == "" {
		return
	}
	used, err := strconv.Atoi(headerValue)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if time.Since(w.lastReset) >= w.window {
		w.used = 0
		w.lastReset = time.Now()
	}
	w.used = used

	pct := float64(w.used) / float64(w.limit) * 100
	if pct >= 95 {
		log.Printf("[exchange] weight critical: %d/%d (%.1f%%)", w.used, w.limit, pct)
	} else if pct >= 80 {
		log.Printf("[exchange] weight high: %d/%d (%.1f%%)", w.used, w.limit, pct)
	}
}

// Usage returns the weight consumed in the current window.
func (w *WeightTracker) Usage() (used, limit int, pct float64) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if time.Since(w.lastReset) >= w.window {
		return 0, w.limit, 0
	}
	return w.used, w.limit, float64(w.used) / float64(w.limit) * 100
}

// ShouldDelay reports whether non-critical requests should back off.
func (w *WeightTracker) ShouldDelay() bool {
	_, _, pct := w.Usage()
	return pct >= 90
}

package market

import (
	"context"
	"math/rand"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/events"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/monitor"
)

// MockFeed generates a random walk per symbol so the core can run
// without a venue.
type MockFeed struct {
	symbols  map[string]float64
	interval time.Duration
	bus      *events.Bus
	metrics  *monitor.Metrics
	cache    *priceCache
	rng      *rand.Rand
}

// NewMockFeed creates a walk starting from the given per-symbol prices.
func NewMockFeed(start map[string]float64, interval time.Duration, bus *events.Bus, metrics *monitor.Metrics) *MockFeed {
	if interval <= 0 {
		interval = time.Second
	}
	return &MockFeed{
		symbols:  start,
		interval: interval,
		bus:      bus,
		metrics:  metrics,
		cache:    newPriceCache(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start walks prices until ctx is cancelled.
func (f *MockFeed) Start(ctx context.Context) {
	current := make(map[string]float64, len(f.symbols))
	for s, p := range f.symbols {
		current[s] = p
		f.cache.set(s, p)
	}

	go func() {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for s, p := range current {
					// ±0.1% step
					p *= 1 + (f.rng.Float64()-0.5)*0.002
					current[s] = p
					f.cache.set(s, p)
					f.metrics.IncrementTicks()
					f.bus.Publish(events.EventPriceTick, events.PriceTick{
						Symbol: s,
						Price:  p,
						TimeMs: time.Now().UnixMilli(),
					})
				}
			}
		}
	}()
}

// LastPrice returns the latest walked price.
func (f *MockFeed) LastPrice(symbol string) (float64, bool) {
	return f.cache.get(symbol)
}

// Package market supplies price ticks to the scan loop, either from the
// venue's mark-price stream or from a local mock walk.
package market

import (
	"context"
	"sync"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/events"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/monitor"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/binance/futures"
)

// Feed delivers prices for the configured symbols.
type Feed interface {
	// Start begins publishing EventPriceTick on the bus until ctx ends.
	Start(ctx context.Context)
	// LastPrice returns the most recent price for a symbol.
	LastPrice(symbol string) (float64, bool)
}

// priceCache is shared by feed implementations.
type priceCache struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func newPriceCache() *priceCache {
	return &priceCache{prices: make(map[string]float64)}
}

func (c *priceCache) set(symbol string, price float64) {
	c.mu.Lock()
	c.prices[symbol] = price
	c.mu.Unlock()
}

func (c *priceCache) get(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	return p, ok
}

// BinanceFeed streams venue mark prices onto the bus.
type BinanceFeed struct {
	client  *futures.Client
	symbols []string
	bus     *events.Bus
	metrics *monitor.Metrics
	cache   *priceCache
}

// NewBinanceFeed creates a mark-price feed.
func NewBinanceFeed(client *futures.Client, symbols []string, bus *events.Bus, metrics *monitor.Metrics) *BinanceFeed {
	return &BinanceFeed{
		client:  client,
		symbols: symbols,
		bus:     bus,
		metrics: metrics,
		cache:   newPriceCache(),
	}
}

// Start begins streaming; reconnects are handled by the client.
func (f *BinanceFeed) Start(ctx context.Context) {
	f.client.StreamMarkPrices(ctx, f.symbols, func(tick futures.MarkPriceTick) {
		f.cache.set(tick.Symbol, tick.Price)
		f.metrics.IncrementTicks()
		f.bus.Publish(events.EventPriceTick, events.PriceTick{
			Symbol: tick.Symbol,
			Price:  tick.Price,
			TimeMs: tick.Time.UnixMilli(),
		})
	})
}

// LastPrice returns the latest mark price.
func (f *BinanceFeed) LastPrice(symbol string) (float64, bool) {
	return f.cache.get(symbol)
}

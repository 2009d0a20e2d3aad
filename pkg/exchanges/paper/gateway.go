// Package paper implements common.Gateway against no venue at all:
// orders fill instantly at the requested price plus simulated slippage,
// protection legs are tracked in memory. It lets the full placement
// protocol run in mock mode.
package paper

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
)

// Config tunes the simulation.
type Config struct {
	FeeRate     float64 // decimal, e.g. 0.0004
	SlippageBps float64 // basis points applied against the taker
	LatencyMs   int     // simulated venue round-trip
}

// Gateway is an in-memory venue.
type Gateway struct {
	cfg Config
	rng *rand.Rand

	mu        sync.Mutex
	nextID    int64
	fills     map[string]common.Fill         // keyed by order id
	positions map[string]common.PositionInfo // keyed by symbol
	stops     map[string]common.ProtectionRequest
}

// New creates a paper gateway.
func New(cfg Config) *Gateway {
	return &Gateway{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		fills:     make(map[string]common.Fill),
		positions: make(map[string]common.PositionInfo),
		stops:     make(map[string]common.ProtectionRequest),
	}
}

func (g *Gateway) latency() {
	if g.cfg.LatencyMs > 0 {
		time.Sleep(time.Duration(g.rng.Intn(g.cfg.LatencyMs)+1) * time.Millisecond)
	}
}

func (g *Gateway) slip(side common.Side, price float64) float64 {
	frac := g.cfg.SlippageBps / 10000
	if frac <= 0 || price <= 0 {
		return price
	}
	noise := g.rng.Float64() * frac
	if side == common.SideBuy {
		return price * (1 + noise)
	}
	return price * (1 - noise)
}

// SubmitOrder fills entry orders immediately; reduce-only market orders
// flatten the tracked position.
func (g *Gateway) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	g.latency()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	id := strconv.FormatInt(g.nextID, 10)

	if req.ReduceOnly && req.Type == common.OrderTypeMarket {
		delete(g.positions, req.Symbol)
		delete(g.stops, req.Symbol)
		return common.OrderResult{ExchangeOrderID: id, Status: common.StatusFilled, ClientID: req.ClientID}, nil
	}

	// Protection legs rest; they are tracked via SetProtection.
	if req.Type == common.OrderTypeStopMarket || req.Type == common.OrderTypeTakeProfitMarket {
		return common.OrderResult{ExchangeOrderID: id, Status: common.StatusNew, ClientID: req.ClientID}, nil
	}

	price := req.Price
	if price <= 0 {
		return common.OrderResult{}, &common.Error{Op: "submit order", Message: "paper gateway needs a price on entries"}
	}
	fillPrice := g.slip(req.Side, price)

	g.fills[id] = common.Fill{
		ExchangeOrderID: id,
		TradeID:         "t-" + id,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Qty:             req.Qty,
		Price:           fillPrice,
		Fee:             fillPrice * req.Qty * g.cfg.FeeRate,
	}
	g.positions[req.Symbol] = common.PositionInfo{
		Symbol:     req.Symbol,
		Side:       req.Side,
		Qty:        req.Qty,
		EntryPrice: fillPrice,
	}
	return common.OrderResult{ExchangeOrderID: id, Status: common.StatusFilled, ClientID: req.ClientID}, nil
}

// CancelOrder forgets a pending fill.
func (g *Gateway) CancelOrder(ctx context.Context, symbol, id string) error {
	g.latency()
	g.mu.Lock()
	delete(g.fills, id)
	g.mu.Unlock()
	return nil
}

// WaitForFill returns the recorded fill.
func (g *Gateway) WaitForFill(ctx context.Context, symbol, id string, timeout time.Duration) (common.Fill, error) {
	g.latency()
	g.mu.Lock()
	fill, ok := g.fills[id]
	g.mu.Unlock()
	if !ok {
		return common.Fill{}, fmt.Errorf("paper order %s: %w", id, context.DeadlineExceeded)
	}
	return fill, nil
}

// SetProtection records the stop/take-profit levels.
func (g *Gateway) SetProtection(ctx context.Context, req common.ProtectionRequest) error {
	g.latency()
	if req.StopLoss <= 0 {
		return &common.Error{Op: "set protection", Message: "stop loss required"}
	}
	g.mu.Lock()
	g.stops[req.Symbol] = req
	g.mu.Unlock()
	return nil
}

// CancelAllOpenOrders drops tracked protection for the symbol.
func (g *Gateway) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	g.mu.Lock()
	delete(g.stops, symbol)
	g.mu.Unlock()
	return nil
}

// ListPositions implements common.PositionLister.
func (g *Gateway) ListPositions(ctx context.Context, symbol string) ([]common.PositionInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]common.PositionInfo, 0, len(g.positions))
	for _, p := range g.positions {
		if symbol == "" || p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

// MarkStopOut simulates an exchange-side stop trigger: the position
// disappears from the venue list, as a real stop-market fill would make
// it. Reconciliation picks this up.
func (g *Gateway) MarkStopOut(symbol string) {
	g.mu.Lock()
	delete(g.positions, symbol)
	delete(g.stops, symbol)
	g.mu.Unlock()
}

// Protection returns the tracked protection for tests and inspection.
func (g *Gateway) Protection(symbol string) (common.ProtectionRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.stops[symbol]
	return req, ok
}

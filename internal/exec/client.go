// Package exec drives the order-placement protocol against the venue:
// create with a single bounded retry, wait for fill with a hard deadline
// and active cancel on timeout, then attach protection. A position is
// never reported as placed until its protection is confirmed.
package exec

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/events"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/monitor"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
)

// Sentinel protocol errors.
var (
	// ErrFillTimeout means the order did not fill in time; a cancel was
	// issued but the caller must not assume the position exists.
	ErrFillTimeout = errors.New("fill timeout")

	// ErrProtectionFailed means the order filled but stop/take-profit
	// attachment failed. The fill is NOT rolled back; the caller decides
	// whether to force-close the unprotected position.
	ErrProtectionFailed = errors.New("protection failed")
)

// Request is one placement intent, already sized and risk-approved.
type Request struct {
	Symbol      string
	Side        common.Side
	EntryType   common.OrderType // MARKET or LIMIT
	EntryPrice  float64          // limit price; ignored for market entries
	Qty         float64
	StopLoss    float64
	TakeProfits []common.TakeProfitLevel
}

// Result reports how far the protocol got. Created distinguishes "nothing
// happened" failures from ones that left venue-side state behind;
// Cancelled reports whether a timed-out entry was confirmed cancelled,
// so callers know if the order may still fill venue-side.
type Result struct {
	OrderID   string
	ClientID  string
	Fill      common.Fill
	Created   bool
	Cancelled bool
	Protected bool
}

// Client sequences the placement protocol over a Gateway. Order
// submission is paced by a shared limiter so the account stays under its
// orders-per-minute cap across all symbols.
type Client struct {
	gw          common.Gateway
	limiter     *rate.Limiter
	fillTimeout time.Duration
	bus         *events.Bus
	metrics     *monitor.Metrics
}

// NewClient creates an execution client. maxOrdersPerMin caps order
// submission rate across all symbols; fillTimeout bounds the fill wait.
func NewClient(gw common.Gateway, maxOrdersPerMin int, fillTimeout time.Duration, bus *events.Bus, metrics *monitor.Metrics) *Client {
	if maxOrdersPerMin <= 0 {
		maxOrdersPerMin = 60
	}
	return &Client{
		gw:          gw,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(maxOrdersPerMin)), maxOrdersPerMin),
		fillTimeout: fillTimeout,
		bus:         bus,
		metrics:     metrics,
	}
}

// PlaceProtected runs the full protocol: create → wait for fill → attach
// protection. Every exit path leaves the venue in a known state: either
// no order, a cancelled order, or a filled order (protected on success,
// flagged unprotected via ErrProtectionFailed otherwise).
func (c *Client) PlaceProtected(ctx context.Context, req Request) (Result, error) {
	var res Result

	order, err := c.createOrder(ctx, req)
	if err != nil {
		return res, err
	}
	res.OrderID = order.ExchangeOrderID
	res.ClientID = order.ClientID
	res.Created = true

	fill, cancelled, err := c.awaitFill(ctx, req.Symbol, order.ExchangeOrderID)
	res.Cancelled = cancelled
	if err != nil {
		return res, err
	}
	res.Fill = fill

	if err := c.protect(ctx, req, fill); err != nil {
		return res, err
	}
	res.Protected = true
	return res, nil
}

// createOrder submits the entry order, retrying exactly once when the
// venue reports a transient failure. A second failure propagates.
func (c *Client) createOrder(ctx context.Context, req Request) (common.OrderResult, error) {
	order := common.OrderRequest{
		Symbol:   req.Symbol,
		Side:     req.Side,
		Type:     req.EntryType,
		Qty:      req.Qty,
		ClientID: "amb-" + uuid.NewString(),
	}
	if req.EntryType == common.OrderTypeLimit {
		order.Price = req.EntryPrice
		order.TimeInForce = common.TIFGTC
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return common.OrderResult{}, fmt.Errorf("order pacing: %w", err)
	}

	timer := monitor.NewTimer(c.metrics.PlacementLatency)
	result, err := c.gw.SubmitOrder(ctx, order)
	timer.Stop()
	if err != nil {
		if !common.IsTemporary(err) {
			return common.OrderResult{}, fmt.Errorf("create order %s: %w", req.Symbol, err)
		}
		log.Printf("[exec] %s transient create failure, retrying once: %v", req.Symbol, err)
		if werr := c.limiter.Wait(ctx); werr != nil {
			return common.OrderResult{}, fmt.Errorf("order pacing: %w", werr)
		}
		result, err = c.gw.SubmitOrder(ctx, order)
		if err != nil {
			return common.OrderResult{}, fmt.Errorf("create order %s (after retry): %w", req.Symbol, err)
		}
	}

	c.metrics.IncrementPlaced()
	c.bus.Publish(events.EventOrderSubmitted, result)
	return result, nil
}

// awaitFill waits for the entry order to fill. On timeout it issues a
// cancel and reports whether the cancel was confirmed; an unconfirmed
// cancel means the order may still fill venue-side.
func (c *Client) awaitFill(ctx context.Context, symbol, orderID string) (common.Fill, bool, error) {
	timer := monitor.NewTimer(c.metrics.FillLatency)
	fill, err := c.gw.WaitForFill(ctx, symbol, orderID, c.fillTimeout)
	timer.Stop()
	if err == nil {
		c.metrics.IncrementFilled()
		c.bus.Publish(events.EventOrderFilled, fill)
		return fill, false, nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		cancelled := false
		if cerr := c.gw.CancelOrder(ctx, symbol, orderID); cerr != nil {
			log.Printf("[exec] %s cancel after timeout failed, order may still fill: %v", symbol, cerr)
		} else {
			cancelled = true
			c.metrics.IncrementCancelled()
			c.bus.Publish(events.EventOrderCancelled, orderID)
		}
		return common.Fill{}, cancelled, fmt.Errorf("order %s: %w", orderID, ErrFillTimeout)
	}
	return common.Fill{}, false, fmt.Errorf("wait for fill %s: %w", orderID, err)
}

// protect attaches stop-loss/take-profit. No retry: an unprotected open
// position is a safety emergency the caller must act on immediately, not
// a condition to poll through.
func (c *Client) protect(ctx context.Context, req Request, fill common.Fill) error {
	timer := monitor.NewTimer(c.metrics.ProtectionLatency)
	err := c.gw.SetProtection(ctx, common.ProtectionRequest{
		Symbol:      req.Symbol,
		Side:        req.Side,
		Qty:         fill.Qty,
		StopLoss:    req.StopLoss,
		TakeProfits: req.TakeProfits,
	})
	timer.Stop()
	if err != nil {
		c.metrics.IncrementErrors()
		c.bus.Publish(events.EventProtectionFailed, req.Symbol)
		return fmt.Errorf("%s: %v: %w", req.Symbol, err, ErrProtectionFailed)
	}
	c.bus.Publish(events.EventPositionProtected, req.Symbol)
	return nil
}

// Reprotect replaces protection after a stop adjustment: cancels resting
// protection legs and attaches fresh ones at the new stop.
func (c *Client) Reprotect(ctx context.Context, symbol string, side common.Side, qty, newStop float64, tps []common.TakeProfitLevel) error {
	type orderCanceller interface {
		CancelAllOpenOrders(ctx context.Context, symbol string) error
	}
	if oc, ok := c.gw.(orderCanceller); ok {
		if err := oc.CancelAllOpenOrders(ctx, symbol); err != nil {
			return fmt.Errorf("cancel stale protection %s: %w", symbol, err)
		}
	}
	err := c.gw.SetProtection(ctx, common.ProtectionRequest{
		Symbol:      symbol,
		Side:        side,
		Qty:         qty,
		StopLoss:    newStop,
		TakeProfits: tps,
	})
	if err != nil {
		return fmt.Errorf("%s: %v: %w", symbol, err, ErrProtectionFailed)
	}
	return nil
}

// ClosePosition submits a reduce-only market order to flatten a position
// immediately. Used as the compensating action when protection fails.
func (c *Client) ClosePosition(ctx context.Context, symbol string, side common.Side, qty float64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("order pacing: %w", err)
	}
	_, err := c.gw.SubmitOrder(ctx, common.OrderRequest{
		Symbol:     symbol,
		Side:       side.Opposite(),
		Type:       common.OrderTypeMarket,
		Qty:        qty,
		ReduceOnly: true,
		ClientID:   "amb-close-" + uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("close position %s: %w", symbol, err)
	}
	c.bus.Publish(events.EventPositionClosed, symbol)
	return nil
}

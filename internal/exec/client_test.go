package exec

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/events"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/monitor"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
)

// fakeGateway scripts venue behavior per protocol step.
type fakeGateway struct {
	submitCalls  int
	cancelCalls  int
	protectCalls int

	failSubmitTimes int  // first N submits fail
	transient       bool // whether scripted submit failures are transient
	neverFill       bool
	failCancel      bool
	failProtect     bool
}

func (f *fakeGateway) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	f.submitCalls++
	if f.submitCalls <= f.failSubmitTimes {
		return common.OrderResult{}, &common.Error{Op: "submit order", Code: -1001, Message: "scripted failure", Temporary: f.transient}
	}
	return common.OrderResult{ExchangeOrderID: "ord-1", Status: common.StatusNew, ClientID: req.ClientID}, nil
}

func (f *fakeGateway) CancelOrder(ctx context.Context, symbol, id string) error {
	f.cancelCalls++
	if f.failCancel {
		return &common.Error{Op: "cancel order", Code: -1001, Message: "scripted failure"}
	}
	return nil
}

func (f *fakeGateway) WaitForFill(ctx context.Context, symbol, id string, timeout time.Duration) (common.Fill, error) {
	if f.neverFill {
		time.Sleep(timeout)
		return common.Fill{}, context.DeadlineExceeded
	}
	return common.Fill{ExchangeOrderID: id, Symbol: symbol, Side: common.SideBuy, Qty: 0.5, Price: 50000}, nil
}

func (f *fakeGateway) SetProtection(ctx context.Context, req common.ProtectionRequest) error {
	f.protectCalls++
	if f.failProtect {
		return &common.Error{Op: "set protection", Code: -2021, Message: "would trigger immediately"}
	}
	return nil
}

func newTestClient(gw common.Gateway) *Client {
	return NewClient(gw, 600, 50*time.Millisecond, events.NewBus(), monitor.NewMetrics())
}

func testRequest() Request {
	return Request{
		Symbol:     "BTCUSDT",
		Side:       common.SideBuy,
		EntryType:  common.OrderTypeLimit,
		EntryPrice: 50000,
		Qty:        0.5,
		StopLoss:   49000,
		TakeProfits: []common.TakeProfitLevel{
			{Price: 52000, SizePct: 0.5},
			{Price: 54000, SizePct: 0.5},
		},
	}
}

func TestPlaceProtectedHappyPath(t *testing.T) {
	gw := &fakeGateway{}
	res, err := newTestClient(gw).PlaceProtected(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("PlaceProtected: %v", err)
	}
	if !res.Created || !res.Protected {
		t.Fatalf("result %+v, want created and protected", res)
	}
	if gw.submitCalls != 1 || gw.protectCalls != 1 || gw.cancelCalls != 0 {
		t.Fatalf("calls submit=%d protect=%d cancel=%d", gw.submitCalls, gw.protectCalls, gw.cancelCalls)
	}
	if res.Fill.Price != 50000 {
		t.Fatalf("fill price %v", res.Fill.Price)
	}
}

func TestPlaceProtectedRetriesTransientOnce(t *testing.T) {
	gw := &fakeGateway{failSubmitTimes: 1, transient: true}
	res, err := newTestClient(gw).PlaceProtected(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("PlaceProtected: %v", err)
	}
	if gw.submitCalls != 2 {
		t.Fatalf("submit calls %d, want exactly 2", gw.submitCalls)
	}
	if !res.Protected {
		t.Fatal("expected protected result after retry")
	}
}

func TestPlaceProtectedSecondTransientFailurePropagates(t *testing.T) {
	gw := &fakeGateway{failSubmitTimes: 2, transient: true}
	res, err := newTestClient(gw).PlaceProtected(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error after exhausted retry")
	}
	if gw.submitCalls != 2 {
		t.Fatalf("submit calls %d, want exactly 2 (single retry)", gw.submitCalls)
	}
	if res.Created {
		t.Fatal("no order should be recorded as created")
	}
}

func TestPlaceProtectedNonTransientNotRetried(t *testing.T) {
	gw := &fakeGateway{failSubmitTimes: 1, transient: false}
	_, err := newTestClient(gw).PlaceProtected(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if gw.submitCalls != 1 {
		t.Fatalf("submit calls %d, want 1 (no retry on permanent failure)", gw.submitCalls)
	}
}

func TestPlaceProtectedFillTimeoutCancels(t *testing.T) {
	gw := &fakeGateway{neverFill: true}
	c := NewClient(gw, 600, 10*time.Millisecond, events.NewBus(), monitor.NewMetrics())
	res, err := c.PlaceProtected(context.Background(), testRequest())
	if !errors.Is(err, ErrFillTimeout) {
		t.Fatalf("got %v, want ErrFillTimeout", err)
	}
	if gw.cancelCalls != 1 {
		t.Fatalf("cancel calls %d, want exactly 1", gw.cancelCalls)
	}
	if !res.Created {
		t.Fatal("order was created before the timeout; result must say so")
	}
	if !res.Cancelled {
		t.Fatal("confirmed cancel must be reported")
	}
	if res.Protected {
		t.Fatal("timed-out order must not be protected")
	}
}

func TestPlaceProtectedTimeoutCancelFailureReported(t *testing.T) {
	gw := &fakeGateway{neverFill: true, failCancel: true}
	c := NewClient(gw, 600, 10*time.Millisecond, events.NewBus(), monitor.NewMetrics())
	res, err := c.PlaceProtected(context.Background(), testRequest())
	if !errors.Is(err, ErrFillTimeout) {
		t.Fatalf("got %v, want ErrFillTimeout", err)
	}
	if res.Cancelled {
		t.Fatal("cancel failed; result must not claim the order was cancelled")
	}
	if !res.Created {
		t.Fatal("order was created; the caller must know venue-side state may remain")
	}
}

func TestPlaceProtectedProtectionFailureIsFatal(t *testing.T) {
	gw := &fakeGateway{failProtect: true}
	res, err := newTestClient(gw).PlaceProtected(context.Background(), testRequest())
	if !errors.Is(err, ErrProtectionFailed) {
		t.Fatalf("got %v, want ErrProtectionFailed", err)
	}
	if !res.Created {
		t.Fatal("order creation must not be rolled back")
	}
	if res.Protected {
		t.Fatal("result must not claim protection")
	}
	if gw.protectCalls != 1 {
		t.Fatalf("protect calls %d, want 1 (no retry)", gw.protectCalls)
	}
	if res.Fill.Qty == 0 {
		t.Fatal("fill should be reported so the caller can force-close")
	}
}

func TestClosePositionIsReduceOnlyOpposite(t *testing.T) {
	gw := &recordingGateway{}
	c := NewClient(gw, 600, time.Second, events.NewBus(), monitor.NewMetrics())
	if err := c.ClosePosition(context.Background(), "BTCUSDT", common.SideBuy, 0.5); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if gw.last.Side != common.SideSell || !gw.last.ReduceOnly || gw.last.Type != common.OrderTypeMarket {
		t.Fatalf("close order %+v, want reduce-only SELL MARKET", gw.last)
	}
}

type recordingGateway struct {
	fakeGateway
	last common.OrderRequest
}

func (r *recordingGateway) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	r.last = req
	return r.fakeGateway.SubmitOrder(ctx, req)
}

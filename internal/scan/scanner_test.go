package scan

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/events"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/exec"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/gates"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/market"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/monitor"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/risk"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/runtime"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/signal"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/state"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
)

type stubGateway struct {
	mu          sync.Mutex
	nextID      int
	submits     []common.OrderRequest
	cancels     int
	neverFill   bool
	failCancel  bool
	failProtect bool
}

func (g *stubGateway) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	g.mu.Lock()
	g.nextID++
	id := "ord-" + strconv.Itoa(g.nextID)
	g.submits = append(g.submits, req)
	g.mu.Unlock()
	return common.OrderResult{ExchangeOrderID: id, Status: common.StatusNew, ClientID: req.ClientID}, nil
}

func (g *stubGateway) CancelOrder(ctx context.Context, symbol, id string) error {
	g.mu.Lock()
	g.cancels++
	g.mu.Unlock()
	if g.failCancel {
		return &common.Error{Op: "cancel order", Message: "scripted"}
	}
	return nil
}

func (g *stubGateway) WaitForFill(ctx context.Context, symbol, id string, timeout time.Duration) (common.Fill, error) {
	if g.neverFill {
		return common.Fill{}, context.DeadlineExceeded
	}
	return common.Fill{ExchangeOrderID: id, Symbol: symbol, Side: common.SideBuy, Qty: 0.004, Price: 50000}, nil
}

func (g *stubGateway) SetProtection(ctx context.Context, req common.ProtectionRequest) error {
	if g.failProtect {
		return &common.Error{Op: "set protection", Message: "scripted"}
	}
	return nil
}

func (g *stubGateway) closeOrders() []common.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []common.OrderRequest
	for _, o := range g.submits {
		if o.ReduceOnly && o.Type == common.OrderTypeMarket {
			out = append(out, o)
		}
	}
	return out
}

func (g *stubGateway) submitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.submits)
}

type stubSource struct{ sig signal.Signal }

func (s stubSource) Next(symbol string) (signal.Signal, bool) {
	if s.sig.Symbol != symbol {
		return signal.Signal{}, false
	}
	return s.sig, true
}

type readyDiags struct{}

func (readyDiags) Diagnostics(symbol string) gates.Diagnostic {
	return gates.Diagnostic{
		Symbol:     symbol,
		Gates:      map[string]gates.Gate{"feed_fresh": {OK: true}},
		RelayState: gates.RelayReady,
	}
}

type stubFeed struct{ price float64 }

func (stubFeed) Start(ctx context.Context)                 {}
func (f stubFeed) LastPrice(symbol string) (float64, bool) { return f.price, f.price > 0 }

// varFeed lets a test move the price between ticks.
type varFeed struct {
	mu    sync.Mutex
	price float64
}

func (*varFeed) Start(ctx context.Context) {}

func (f *varFeed) LastPrice(symbol string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, f.price > 0
}

func (f *varFeed) set(price float64) {
	f.mu.Lock()
	f.price = price
	f.mu.Unlock()
}

func newTestScanner(gw common.Gateway) (*Scanner, *runtime.Runtime, *risk.Ledger) {
	return newTestScannerWithFeed(gw, stubFeed{price: 50500})
}

func newTestScannerWithFeed(gw common.Gateway, feed market.Feed) (*Scanner, *runtime.Runtime, *risk.Ledger) {
	limits := risk.Limits{
		RiskPerTradeUsd:   4,
		MaxAllowedRiskUsd: 8,
		MaxPositions:      2,
		LotStep:           0.001,
		MinQty:            0.001,
	}
	ledger := risk.NewLedger(limits, 1000)
	bus := events.NewBus()
	metrics := monitor.NewMetrics()
	rt := runtime.New(ledger, runtime.NewKillSwitch(), bus, nil)
	sc := New(Config{
		Symbols:  []string{"BTCUSDT"},
		Interval: time.Second,
		Runtime:  rt,
		Ledger:   ledger,
		Exec:     exec.NewClient(gw, 600, 20*time.Millisecond, bus, metrics),
		Profile: gates.Profile{
			Name:     "test",
			Required: 1,
			Gates:    map[string]gates.GateConfig{"feed_fresh": {Enabled: true}},
		},
		Diags:   readyDiags{},
		Source:  stubSource{sig: testSignal()},
		Trailer: risk.NewTrailer(0.01),
		Feed:    feed,
		Store:   state.NewManager(nil),
		Metrics: metrics,
	})
	return sc, rt, ledger
}

func testSignal() signal.Signal {
	return signal.Signal{
		Symbol:     "BTCUSDT",
		Direction:  signal.DirectionLong,
		EntryZone:  signal.EntryZone{High: 50100, Low: 49900},
		Invalidate: 49000,
	}
}

func TestTickPlacesWhenReady(t *testing.T) {
	gw := &stubGateway{}
	sc, rt, ledger := newTestScanner(gw)

	sc.tick(context.Background(), "BTCUSDT")

	if got := rt.StateOf("BTCUSDT"); got != runtime.StateManage {
		t.Fatalf("state %s, want MANAGE after filled+protected placement", got)
	}
	if !ledger.Open("BTCUSDT") {
		t.Fatal("ledger must hold the reservation while position is open")
	}
	pos, ok := rt.Position("BTCUSDT")
	if !ok || pos.StopLoss != 49000 {
		t.Fatalf("position %+v ok=%v", pos, ok)
	}
}

func TestTickFillTimeoutReturnsToScan(t *testing.T) {
	gw := &stubGateway{neverFill: true}
	sc, rt, ledger := newTestScanner(gw)

	sc.tick(context.Background(), "BTCUSDT")

	if got := rt.StateOf("BTCUSDT"); got != runtime.StateScan {
		t.Fatalf("state %s, want SCAN after timeout abort", got)
	}
	if ledger.Open("BTCUSDT") {
		t.Fatal("reservation must be released after timeout")
	}
	if gw.cancels != 1 {
		t.Fatalf("cancels %d, want 1", gw.cancels)
	}
}

func TestTickProtectionFailureForceCloses(t *testing.T) {
	gw := &stubGateway{failProtect: true}
	sc, rt, ledger := newTestScanner(gw)

	sc.tick(context.Background(), "BTCUSDT")

	closes := gw.closeOrders()
	if len(closes) != 1 {
		t.Fatalf("close orders %d, want exactly 1 compensating reduce-only close", len(closes))
	}
	if closes[0].Side != common.SideSell {
		t.Fatalf("close side %s, want SELL to flatten a long", closes[0].Side)
	}
	if got := rt.StateOf("BTCUSDT"); got != runtime.StateScan {
		t.Fatalf("state %s, want SCAN after force-close", got)
	}
	if ledger.Open("BTCUSDT") {
		t.Fatal("reservation must be released after force-close")
	}
}

func TestTickTrailsManagedPosition(t *testing.T) {
	gw := &stubGateway{}
	sc, rt, _ := newTestScanner(gw)

	sc.tick(context.Background(), "BTCUSDT") // places, fills at 50000
	before, _ := rt.Position("BTCUSDT")

	sc.tick(context.Background(), "BTCUSDT") // price 50500 via stub feed
	after, _ := rt.Position("BTCUSDT")
	if after.StopLoss <= before.StopLoss {
		t.Fatalf("stop %v -> %v, want tightened", before.StopLoss, after.StopLoss)
	}
}

func TestTickTimeoutCancelFailureHoldsReservation(t *testing.T) {
	gw := &stubGateway{neverFill: true, failCancel: true}
	sc, rt, ledger := newTestScanner(gw)

	sc.tick(context.Background(), "BTCUSDT")

	if got := rt.StateOf("BTCUSDT"); got != runtime.StatePlace {
		t.Fatalf("state %s, want PLACE while the order may still fill", got)
	}
	if !ledger.Open("BTCUSDT") {
		t.Fatal("reservation must be held when the cancel is unconfirmed")
	}

	// Further ticks must not stack new risk on the unresolved symbol.
	sc.tick(context.Background(), "BTCUSDT")
	if n := gw.submitCount(); n != 1 {
		t.Fatalf("submits %d, want 1 (no re-placement while unresolved)", n)
	}
}

func TestReentryTrailsFromOwnPrices(t *testing.T) {
	gw := &stubGateway{}
	feed := &varFeed{price: 50000}
	sc, rt, _ := newTestScannerWithFeed(gw, feed)

	sc.tick(context.Background(), "BTCUSDT") // fills at 50000, stop 49000
	feed.set(60000)
	sc.tick(context.Background(), "BTCUSDT")
	pos, _ := rt.Position("BTCUSDT")
	if pos.StopLoss != 59400 {
		t.Fatalf("stop %v, want 59400 trailed behind 60000", pos.StopLoss)
	}

	if err := rt.ExitPosition("BTCUSDT"); err != nil {
		t.Fatalf("ExitPosition: %v", err)
	}

	feed.set(50000)
	sc.tick(context.Background(), "BTCUSDT") // re-enters at 50000
	pos, ok := rt.Position("BTCUSDT")
	if !ok || pos.StopLoss != 49000 {
		t.Fatalf("re-entry stop %v ok=%v, want 49000 from its own plan", pos.StopLoss, ok)
	}

	sc.tick(context.Background(), "BTCUSDT") // manage at 50000
	pos, _ = rt.Position("BTCUSDT")
	if pos.StopLoss >= pos.EntryPrice {
		t.Fatalf("stop %v above entry %v: trail state leaked across positions", pos.StopLoss, pos.EntryPrice)
	}
	if pos.StopLoss != 49500 {
		t.Fatalf("stop %v, want 49500 trailed from the re-entry's prices", pos.StopLoss)
	}
}

func TestTickDoesNothingWithoutReadiness(t *testing.T) {
	gw := &stubGateway{}
	sc, rt, _ := newTestScanner(gw)
	sc.diags = pendingDiags{}

	sc.tick(context.Background(), "BTCUSDT")

	if got := rt.StateOf("BTCUSDT"); got != runtime.StateScan {
		t.Fatalf("state %s, want SCAN while gates pending", got)
	}
	if len(gw.submits) != 0 {
		t.Fatalf("submits %d, want 0", len(gw.submits))
	}
	rep := sc.Reports()["BTCUSDT"]
	if rep.Readiness != gates.ReadinessWaiting {
		t.Fatalf("readiness %s, want WAITING", rep.Readiness)
	}
}

type pendingDiags struct{}

func (pendingDiags) Diagnostics(symbol string) gates.Diagnostic {
	return gates.Diagnostic{
		Symbol:     symbol,
		Gates:      map[string]gates.Gate{"feed_fresh": {Pending: true}},
		RelayState: gates.RelayReady,
	}
}

package reconciliation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/events"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/risk"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/runtime"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/signal"
	"github.com/Adamcza88/ai-matic-bot-sub002/internal/state"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/db"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/paper"
)

func newTestStore(t *testing.T) *state.Manager {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "core.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return state.NewManager(conn)
}

func newTestRuntime() (*runtime.Runtime, *risk.Ledger) {
	limits := risk.Limits{
		RiskPerTradeUsd:   4,
		MaxAllowedRiskUsd: 8,
		MaxPositions:      2,
		LotStep:           0.001,
		MinQty:            0.001,
	}
	ledger := risk.NewLedger(limits, 1000)
	rt := runtime.New(ledger, runtime.NewKillSwitch(), events.NewBus(), nil)
	return rt, ledger
}

func testSignal(symbol string) signal.Signal {
	return signal.Signal{
		Symbol:     symbol,
		Direction:  signal.DirectionLong,
		EntryZone:  signal.EntryZone{High: 50100, Low: 49900},
		Invalidate: 49000,
	}
}

// openPosition drives a full placement on both the runtime and the paper
// venue so the two views agree.
func openPosition(t *testing.T, rt *runtime.Runtime, ledger *risk.Ledger, pg *paper.Gateway, symbol string) {
	t.Helper()
	sig := testSignal(symbol)
	if _, err := rt.RequestPlace(sig, ledger.Snapshot(), "", sig.Invalidate); err != nil {
		t.Fatalf("RequestPlace: %v", err)
	}
	res, err := pg.SubmitOrder(context.Background(), common.OrderRequest{
		Symbol: symbol,
		Side:   common.SideBuy,
		Type:   common.OrderTypeLimit,
		Qty:    0.004,
		Price:  50000,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if err := rt.HandleOrderAck(symbol, res.ExchangeOrderID); err != nil {
		t.Fatalf("HandleOrderAck: %v", err)
	}
	if err := rt.HandleFill(res.ExchangeOrderID, symbol, common.SideBuy, 50000, 0.004, 49000); err != nil {
		t.Fatalf("HandleFill: %v", err)
	}
}

func journaledKinds(t *testing.T, store *state.Manager) map[string]bool {
	t.Helper()
	rows, err := store.RecentRiskEvents(20)
	if err != nil {
		t.Fatalf("RecentRiskEvents: %v", err)
	}
	kinds := make(map[string]bool, len(rows))
	for _, r := range rows {
		kinds[r.Kind] = true
	}
	return kinds
}

func TestReconcileClosesExchangeSideStopOut(t *testing.T) {
	rt, ledger := newTestRuntime()
	store := newTestStore(t)
	pg := paper.New(paper.Config{})
	svc := New(pg, rt, store, time.Minute)

	openPosition(t, rt, ledger, pg, "BTCUSDT")

	// Both sides hold the position: nothing to do.
	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := rt.StateOf("BTCUSDT"); got != runtime.StateManage {
		t.Fatalf("state %s, want MANAGE while venue holds the position", got)
	}

	// Venue-side stop trigger: the position vanishes from the venue list.
	pg.MarkStopOut("BTCUSDT")
	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := rt.StateOf("BTCUSDT"); got != runtime.StateScan {
		t.Fatalf("state %s, want SCAN after exchange-side close", got)
	}
	if ledger.Open("BTCUSDT") {
		t.Fatal("reservation must be released after exchange-side close")
	}
	if !journaledKinds(t, store)["closed_exchange_side"] {
		t.Fatal("exchange-side close must be journaled")
	}
}

func TestReconcileFlagsOrphanWithoutAdopting(t *testing.T) {
	rt, _ := newTestRuntime()
	store := newTestStore(t)
	pg := paper.New(paper.Config{})
	svc := New(pg, rt, store, time.Minute)

	// Venue holds a position the runtime never placed.
	if _, err := pg.SubmitOrder(context.Background(), common.OrderRequest{
		Symbol: "ETHUSDT",
		Side:   common.SideBuy,
		Type:   common.OrderTypeLimit,
		Qty:    0.1,
		Price:  3000,
	}); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := len(rt.Positions()); got != 0 {
		t.Fatalf("positions %d, want 0: orphans must never be adopted", got)
	}
	if got := rt.StateOf("ETHUSDT"); got != runtime.StateScan {
		t.Fatalf("state %s, want SCAN", got)
	}
	if !journaledKinds(t, store)["orphan_position"] {
		t.Fatal("orphan must be journaled")
	}
}

func TestReconcileIgnoresInFlightPlacement(t *testing.T) {
	rt, ledger := newTestRuntime()
	store := newTestStore(t)
	pg := paper.New(paper.Config{})
	svc := New(pg, rt, store, time.Minute)

	// Placement in flight: the venue already filled the entry but the
	// fill has not reached the runtime yet.
	sig := testSignal("BTCUSDT")
	if _, err := rt.RequestPlace(sig, ledger.Snapshot(), "", sig.Invalidate); err != nil {
		t.Fatalf("RequestPlace: %v", err)
	}
	if _, err := pg.SubmitOrder(context.Background(), common.OrderRequest{
		Symbol: "BTCUSDT",
		Side:   common.SideBuy,
		Type:   common.OrderTypeLimit,
		Qty:    0.004,
		Price:  50000,
	}); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if journaledKinds(t, store)["orphan_position"] {
		t.Fatal("in-flight placement must not be flagged as an orphan")
	}
	if got := rt.StateOf("BTCUSDT"); got != runtime.StatePlace {
		t.Fatalf("state %s, want PLACE left untouched", got)
	}
}

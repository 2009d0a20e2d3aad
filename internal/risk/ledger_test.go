package risk

import (
	"errors"
	"testing"
)

func testLimits() Limits {
	return Limits{
		RiskPerTradeUsd:   4,
		MaxAllowedRiskUsd: 8,
		MaxPositions:      2,
		LotStep:           0.001,
		MinQty:            0.001,
	}
}

func TestLedgerReserveWithinBudget(t *testing.T) {
	l := NewLedger(testLimits(), 1000)
	if err := l.Reserve("BTCUSDT", 4); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := l.Reserve("ETHUSDT", 4); err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	snap := l.Snapshot()
	if snap.TotalOpenRiskUsd != 8 || snap.OpenPositions != 2 {
		t.Fatalf("snapshot %+v, want 8 open risk, 2 positions", snap)
	}
}

func TestLedgerRejectsBudgetExceeded(t *testing.T) {
	lim := testLimits()
	lim.MaxPositions = 3
	l := NewLedger(lim, 1000)
	if err := l.Reserve("BTCUSDT", 8); err != nil {
		t.Fatalf("reserve full budget: %v", err)
	}
	err := l.Reserve("ETHUSDT", 0.01)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("got %v, want ErrBudgetExceeded", err)
	}
}

func TestLedgerRejectsMaxPositions(t *testing.T) {
	lim := testLimits()
	lim.MaxPositions = 1
	lim.MaxAllowedRiskUsd = 8
	l := NewLedger(lim, 1000)
	if err := l.Reserve("BTCUSDT", 8); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	err := l.Reserve("ETHUSDT", 1)
	if !errors.Is(err, ErrMaxPositions) {
		t.Fatalf("got %v, want ErrMaxPositions", err)
	}
}

func TestLedgerRejectsDuplicateSymbol(t *testing.T) {
	l := NewLedger(testLimits(), 1000)
	if err := l.Reserve("BTCUSDT", 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	err := l.Reserve("BTCUSDT", 2)
	if !errors.Is(err, ErrSymbolOpen) {
		t.Fatalf("got %v, want ErrSymbolOpen", err)
	}
}

func TestLedgerReleaseFreesBudget(t *testing.T) {
	lim := testLimits()
	lim.MaxPositions = 1
	l := NewLedger(lim, 1000)
	if err := l.Reserve("BTCUSDT", 8); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	l.Release("BTCUSDT")
	if l.Open("BTCUSDT") {
		t.Fatal("still open after release")
	}
	if err := l.Reserve("ETHUSDT", 8); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	// releasing twice must be harmless
	l.Release("BTCUSDT")
}

func TestTrailerTightensOnly(t *testing.T) {
	tr := NewTrailer(0.01)

	// long: rising price lifts the proposed stop
	stop, ok := tr.Observe("BTCUSDT", true, 50000, 49000)
	if !ok || stop <= 49000 {
		t.Fatalf("expected lifted stop, got %v ok=%v", stop, ok)
	}
	// falling price never loosens
	if _, ok := tr.Observe("BTCUSDT", true, 49600, stop); ok {
		t.Fatal("proposed a looser stop on pullback")
	}
	// new high tightens again
	stop2, ok := tr.Observe("BTCUSDT", true, 51000, stop)
	if !ok || stop2 <= stop {
		t.Fatalf("expected tighter stop than %v, got %v ok=%v", stop, stop2, ok)
	}

	// short: falling price lowers the proposed stop
	tr2 := NewTrailer(0.01)
	sstop, ok := tr2.Observe("ETHUSDT", false, 3000, 3100)
	if !ok || sstop >= 3100 {
		t.Fatalf("expected lowered stop, got %v ok=%v", sstop, ok)
	}
	if _, ok := tr2.Observe("ETHUSDT", false, 3050, sstop); ok {
		t.Fatal("proposed a looser short stop on bounce")
	}
}

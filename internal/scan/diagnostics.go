package scan

import (
	"sync"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/gates"
)

// DiagnosticsProvider supplies the per-symbol fact set consumed by the
// gate evaluator, refreshed once per scan tick.
type DiagnosticsProvider interface {
	Diagnostics(symbol string) gates.Diagnostic
}

// FeedDiagnostics derives gate facts from feed liveness. External
// checklist systems can replace it; the evaluator only sees the
// Diagnostic shape.
type FeedDiagnostics struct {
	mu         sync.RWMutex
	lastTick   map[string]time.Time
	staleAfter time.Duration
}

// NewFeedDiagnostics creates a provider that marks the feed gate pending
// until the first tick and failing once ticks go stale.
func NewFeedDiagnostics(staleAfter time.Duration) *FeedDiagnostics {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Second
	}
	return &FeedDiagnostics{
		lastTick:   make(map[string]time.Time),
		staleAfter: staleAfter,
	}
}

// ObserveTick records feed liveness for a symbol.
func (d *FeedDiagnostics) ObserveTick(symbol string) {
	d.mu.Lock()
	d.lastTick[symbol] = time.Now()
	d.mu.Unlock()
}

// Diagnostics implements DiagnosticsProvider.
func (d *FeedDiagnostics) Diagnostics(symbol string) gates.Diagnostic {
	d.mu.RLock()
	last, seen := d.lastTick[symbol]
	d.mu.RUnlock()

	feedGate := gates.Gate{Pending: true, Detail: "no tick yet"}
	relay := gates.RelayWaiting
	if seen {
		if time.Since(last) > d.staleAfter {
			feedGate = gates.Gate{OK: false, Detail: "feed stale"}
			relay = gates.RelayPaused
		} else {
			feedGate = gates.Gate{OK: true}
			relay = gates.RelayReady
		}
	}

	return gates.Diagnostic{
		Symbol: symbol,
		Gates: map[string]gates.Gate{
			"feed_fresh": feedGate,
		},
		RelayState: relay,
	}
}

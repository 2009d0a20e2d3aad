package risk

import (
	"fmt"
	"sync"
	"time"
)

// Reservation is one accepted slice of the risk budget, keyed by symbol.
type Reservation struct {
	Symbol     string
	RiskUsd    float64
	ReservedAt time.Time
}

// Ledger tracks aggregate open risk and position count across all symbols.
// Reserve and Release are single atomic operations; admission arithmetic
// never races between symbols.
type Ledger struct {
	mu           sync.RWMutex
	limits       Limits
	balance      float64
	reservations map[string]Reservation
}

// NewLedger creates a ledger with the given limits and starting balance.
func NewLedger(limits Limits, balance float64) *Ledger {
	return &Ledger{
		limits:       limits,
		balance:      balance,
		reservations: make(map[string]Reservation),
	}
}

// SetBalance updates the account balance used in snapshots.
func (l *Ledger) SetBalance(balance float64) {
	l.mu.Lock()
	l.balance = balance
	l.mu.Unlock()
}

// Snapshot returns a fresh point-in-time view for one admission decision.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Balance:           l.balance,
		TotalOpenRiskUsd:  l.totalLocked(),
		MaxAllowedRiskUsd: l.limits.MaxAllowedRiskUsd,
		RiskPerTradeUsd:   l.limits.RiskPerTradeUsd,
		MaxPositions:      l.limits.MaxPositions,
		OpenPositions:     len(l.reservations),
	}
}

func (l *Ledger) totalLocked() float64 {
	var total float64
	for _, r := range l.reservations {
		total += r.RiskUsd
	}
	return total
}

// Reserve admits riskUsd for symbol or rejects with a sentinel error.
// Checks run in a fixed order so rejections are deterministic: symbol
// uniqueness, position count, then budget.
func (l *Ledger) Reserve(symbol string, riskUsd float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, open := l.reservations[symbol]; open {
		return fmt.Errorf("%s: %w", symbol, ErrSymbolOpen)
	}
	if len(l.reservations) >= l.limits.MaxPositions {
		return fmt.Errorf("%d open: %w", len(l.reservations), ErrMaxPositions)
	}
	if l.totalLocked()+riskUsd > l.limits.MaxAllowedRiskUsd {
		return fmt.Errorf("open %.2f + new %.2f > max %.2f: %w",
			l.totalLocked(), riskUsd, l.limits.MaxAllowedRiskUsd, ErrBudgetExceeded)
	}

	l.reservations[symbol] = Reservation{
		Symbol:     symbol,
		RiskUsd:    riskUsd,
		ReservedAt: time.Now(),
	}
	return nil
}

// Release frees the reservation for symbol. Releasing an unknown symbol is
// a no-op: release paths run on abort as well as exit and must be safe to
// repeat.
func (l *Ledger) Release(symbol string) {
	l.mu.Lock()
	delete(l.reservations, symbol)
	l.mu.Unlock()
}

// Open reports whether symbol currently holds a reservation.
func (l *Ledger) Open(symbol string) bool {
	l.mu.RLock()
	_, ok := l.reservations[symbol]
	l.mu.RUnlock()
	return ok
}

// Limits returns a copy of the configured limits.
func (l *Ledger) Limits() Limits {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limits
}

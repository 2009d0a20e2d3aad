// Package balance tracks the account margin balance that sizing math
// reads. With a venue attached it refreshes periodically; without one it
// serves a fixed configured balance.
package balance

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/exchanges/common"
)

// Manager serves the current account balance in the margin asset.
type Manager struct {
	mu      sync.RWMutex
	asset   string
	balance float64
	reader  common.BalanceReader // nil = fixed balance
	onNew   func(balance float64)
}

// NewManager creates a manager with a starting balance. reader may be
// nil; onNew (may be nil) fires after every refresh that changes the
// balance, letting the ledger stay current.
func NewManager(asset string, initial float64, reader common.BalanceReader, onNew func(float64)) *Manager {
	return &Manager{
		asset:   asset,
		balance: initial,
		reader:  reader,
		onNew:   onNew,
	}
}

// Balance returns the current balance.
func (m *Manager) Balance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance
}

// Refresh pulls the balance from the venue once.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.reader == nil {
		return nil
	}
	balances, err := m.reader.GetBalance(ctx)
	if err != nil {
		return err
	}
	for _, b := range balances {
		if b.Asset != m.asset {
			continue
		}
		m.mu.Lock()
		changed := m.balance != b.Available
		m.balance = b.Available
		m.mu.Unlock()
		if changed && m.onNew != nil {
			m.onNew(b.Available)
		}
		return nil
	}
	return nil
}

// Start refreshes periodically until ctx is cancelled.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	if m.reader == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Refresh(ctx); err != nil {
					log.Printf("[balance] refresh failed: %v", err)
				}
			}
		}
	}()
}

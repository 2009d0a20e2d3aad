// Package state keeps the durable view of positions and journals risk
// events. In-memory reads stay cheap; SQLite carries state across
// restarts.
package state

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/Adamcza88/ai-matic-bot-sub002/internal/runtime"
	"github.com/Adamcza88/ai-matic-bot-sub002/pkg/db"
)

// Manager mirrors runtime position snapshots into SQLite and caches the
// latest snapshot per symbol for API reads.
type Manager struct {
	mu    sync.RWMutex
	conn  *sql.DB
	cache map[string]runtime.PositionState
}

// NewManager creates a manager over an open database; conn may be nil
// for memory-only operation (tests, mock runs).
func NewManager(conn *sql.DB) *Manager {
	return &Manager{
		conn:  conn,
		cache: make(map[string]runtime.PositionState),
	}
}

// SavePosition implements runtime.PositionSink.
func (m *Manager) SavePosition(p runtime.PositionState) error {
	m.mu.Lock()
	if p.Status == runtime.PositionClosed {
		delete(m.cache, p.Symbol)
	} else {
		m.cache[p.Symbol] = p
	}
	m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	row := db.PositionRow{
		Symbol:     p.Symbol,
		Side:       string(p.Side),
		EntryPrice: p.EntryPrice,
		Size:       p.Size,
		StopLoss:   p.StopLoss,
		Status:     string(p.Status),
	}
	if p.Status == runtime.PositionClosed {
		row.ClosedMs = p.LastUpdate.UnixMilli()
	}
	if err := db.UpsertPosition(m.conn, row); err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// OpenPositions returns cached open position snapshots.
func (m *Manager) OpenPositions() []runtime.PositionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]runtime.PositionState, 0, len(m.cache))
	for _, p := range m.cache {
		out = append(out, p)
	}
	return out
}

// JournalRiskEvent records an admission rejection or safety event.
func (m *Manager) JournalRiskEvent(symbol, kind, detail string) {
	if m.conn == nil {
		return
	}
	// Journal failures must never affect the trading path.
	_ = db.InsertRiskEvent(m.conn, symbol, kind, detail)
}

// RecentRiskEvents returns the latest journaled events for the API.
func (m *Manager) RecentRiskEvents(limit int) ([]db.RiskEventRow, error) {
	if m.conn == nil {
		return nil, nil
	}
	return db.ListRiskEvents(m.conn, limit)
}

// RecordOrder persists a submitted order.
func (m *Manager) RecordOrder(exchangeID, clientID, symbol, side, orderType string, qty, price float64, status string) {
	if m.conn == nil {
		return
	}
	_ = db.InsertOrder(m.conn, db.OrderRow{
		ExchangeID: exchangeID,
		ClientID:   clientID,
		Symbol:     symbol,
		Side:       side,
		Type:       orderType,
		Qty:        qty,
		Price:      price,
		Status:     status,
	})
}

// UpdateOrderStatus updates a persisted order's status.
func (m *Manager) UpdateOrderStatus(exchangeID, status string) {
	if m.conn == nil {
		return
	}
	_ = db.UpdateOrderStatus(m.conn, exchangeID, status)
}

package db

import (
	"database/sql"
	"fmt"
)

// OrderRow is one persisted order record.
type OrderRow struct {
	ID         int64
	ExchangeID string
	ClientID   string
	Symbol     string
	Side       string
	Type       string
	Qty        float64
	Price      float64
	Status     string
	CreatedMs  int64
	UpdatedMs  int64
}

// PositionRow is one persisted position snapshot.
type PositionRow struct {
	Symbol     string
	Side       string
	EntryPrice float64
	Size       float64
	StopLoss   float64
	Status     string
	UpdatedMs  int64
	ClosedMs   int64
}

// RiskEventRow is one journaled risk event.
type RiskEventRow struct {
	ID        int64
	Symbol    string
	Kind      string
	Detail    string
	CreatedMs int64
}

// InsertOrder records a submitted order.
func InsertOrder(conn *sql.DB, o OrderRow) error {
	now := nowMs()
	_, err := conn.Exec(`INSERT INTO orders
		(exchange_id, client_id, symbol, side, type, qty, price, status, created_ms, updated_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ExchangeID, o.ClientID, o.Symbol, o.Side, o.Type, o.Qty, o.Price, o.Status, now, now)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// UpdateOrderStatus updates the status of an order by exchange id.
func UpdateOrderStatus(conn *sql.DB, exchangeID, status string) error {
	_, err := conn.Exec(`UPDATE orders SET status = ?, updated_ms = ? WHERE exchange_id = ?`,
		status, nowMs(), exchangeID)
	if err != nil {
		return fmt.Errorf("update order %s: %w", exchangeID, err)
	}
	return nil
}

// UpsertPosition writes a position snapshot keyed by symbol.
func UpsertPosition(conn *sql.DB, p PositionRow) error {
	_, err := conn.Exec(`INSERT INTO positions
		(symbol, side, entry_price, size, stop_loss, status, updated_ms, closed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			side = excluded.side,
			entry_price = excluded.entry_price,
			size = excluded.size,
			stop_loss = excluded.stop_loss,
			status = excluded.status,
			updated_ms = excluded.updated_ms,
			closed_ms = excluded.closed_ms`,
		p.Symbol, p.Side, p.EntryPrice, p.Size, p.StopLoss, p.Status, nowMs(), p.ClosedMs)
	if err != nil {
		return fmt.Errorf("upsert position %s: %w", p.Symbol, err)
	}
	return nil
}

// ListPositions returns persisted positions, optionally filtered by status.
func ListPositions(conn *sql.DB, status string) ([]PositionRow, error) {
	query := `SELECT symbol, side, entry_price, size, stop_loss, status, updated_ms, closed_ms FROM positions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	rows, err := conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var p PositionRow
		if err := rows.Scan(&p.Symbol, &p.Side, &p.EntryPrice, &p.Size, &p.StopLoss, &p.Status, &p.UpdatedMs, &p.ClosedMs); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertRiskEvent journals an admission rejection or safety event.
func InsertRiskEvent(conn *sql.DB, symbol, kind, detail string) error {
	_, err := conn.Exec(`INSERT INTO risk_events (symbol, kind, detail, created_ms) VALUES (?, ?, ?, ?)`,
		symbol, kind, detail, nowMs())
	if err != nil {
		return fmt.Errorf("insert risk event: %w", err)
	}
	return nil
}

// ListRiskEvents returns the most recent risk events, newest first.
func ListRiskEvents(conn *sql.DB, limit int) ([]RiskEventRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := conn.Query(`SELECT id, symbol, kind, detail, created_ms
		FROM risk_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list risk events: %w", err)
	}
	defer rows.Close()

	var out []RiskEventRow
	for rows.Next() {
		var e RiskEventRow
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Kind, &e.Detail, &e.CreatedMs); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

package db

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    exchange_id     TEXT NOT NULL DEFAULT '',
    client_id       TEXT NOT NULL DEFAULT '',
    symbol          TEXT NOT NULL,
    side            TEXT NOT NULL,
    type            TEXT NOT NULL,
    qty             REAL NOT NULL,
    price           REAL NOT NULL DEFAULT 0,
    status          TEXT NOT NULL,
    created_ms      INTEGER NOT NULL,
    updated_ms      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_exchange ON orders(exchange_id) WHERE exchange_id != '';

CREATE TABLE IF NOT EXISTS positions (
    symbol          TEXT PRIMARY KEY,
    side            TEXT NOT NULL,
    entry_price     REAL NOT NULL,
    size            REAL NOT NULL,
    stop_loss       REAL NOT NULL DEFAULT 0,
    status          TEXT NOT NULL,
    updated_ms      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_events (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol          TEXT NOT NULL,
    kind            TEXT NOT NULL,
    detail          TEXT NOT NULL DEFAULT '',
    created_ms      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_risk_events_symbol ON risk_events(symbol);
`

// ApplyMigrations creates missing tables and columns. Safe to run on
// every start.
func ApplyMigrations(conn *sql.DB) error {
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	// Columns added after the initial schema shipped.
	if err := ensureColumn(conn, "positions", "closed_ms", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	return nil
}

func ensureColumn(conn *sql.DB, table, column, decl string) error {
	exists, err := columnExists(conn, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = conn.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	if err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

func columnExists(conn *sql.DB, table, column string) (bool, error) {
	rows, err := conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

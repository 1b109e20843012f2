// Package blotter persists executed trades to a local SQLite database. The
// blotter is an audit artifact: feed and recovery state are never persisted,
// only the fills the strategy produced during the session.
package blotter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jz1452/market-exchange-simulator/internal/strategy"
)

// Store provides the trade blotter
type Store struct {
	db *sql.DB
}

// FillRow is one recorded trade.
type FillRow struct {
	FillID   string
	Symbol   string
	Side     string
	Reason   string
	Price    float64
	Quantity int64
	PnL      float64
	Sequence int64
	TsUnixNs int64
}

// Open creates or opens the blotter database
func Open(path string) (*Store, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate creates the necessary tables
func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS fills (
			fill_id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			reason TEXT NOT NULL,
			price REAL NOT NULL,
			qty INTEGER NOT NULL,
			pnl REAL NOT NULL,
			sequence INTEGER NOT NULL,
			ts_unix_nanos INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fills_symbol ON fills(symbol)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// RecordFill inserts one executed trade and returns its generated fill ID.
func (s *Store) RecordFill(ctx context.Context, fill strategy.Fill) (string, error) {
	fillID := uuid.New().String()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fills (fill_id, symbol, side, reason, price, qty, pnl, sequence, ts_unix_nanos)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fillID, fill.Symbol, fill.Side, string(fill.Reason),
		fill.Price, fill.Quantity, fill.PnL, int64(fill.Sequence), int64(fill.Timestamp),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert fill: %w", err)
	}

	return fillID, nil
}

// ListFills returns recorded fills in insertion order, most recent last.
func (s *Store) ListFills(ctx context.Context, limit int) ([]FillRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fill_id, symbol, side, reason, price, qty, pnl, sequence, ts_unix_nanos
		 FROM fills
		 ORDER BY sequence ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fills: %w", err)
	}
	defer rows.Close()

	var fills []FillRow
	for rows.Next() {
		var f FillRow
		err := rows.Scan(
			&f.FillID, &f.Symbol, &f.Side, &f.Reason,
			&f.Price, &f.Quantity, &f.PnL, &f.Sequence, &f.TsUnixNs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fill: %w", err)
		}
		fills = append(fills, f)
	}

	return fills, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

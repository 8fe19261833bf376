package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"landscout/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS listings (
	url            TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	title          TEXT NOT NULL,
	price          REAL,
	acres          REAL,
	price_per_acre REAL,
	run_id         TEXT,
	discovered_at  TEXT NOT NULL,
	extras         TEXT
)`

const sqliteInsert = `
INSERT OR IGNORE INTO listings
	(url, source, title, price, acres, price_per_acre, run_id, discovered_at, extras)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLite stores listings in a local database keyed by URL. A listing already
// stored is left untouched.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// sqlite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create listings table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Emit inserts l unless its URL is already stored.
func (s *SQLite) Emit(ctx context.Context, l *models.Listing) error {
	extras, err := encodeExtras(l)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, sqliteInsert,
		l.URL, l.Source, l.Title, l.Price, l.Acres, l.PricePerAcre, l.RunID,
		l.DiscoveredAt.UTC().Format(time.RFC3339), extras,
	)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}

	return nil
}

// Count returns the number of stored listings.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}

	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func encodeExtras(l *models.Listing) (string, error) {
	if len(l.Extras) == 0 {
		return "{}", nil
	}

	data, err := json.Marshal(l.Extras)
	if err != nil {
		return "", fmt.Errorf("failed to encode extras: %w", err)
	}

	return string(data), nil
}

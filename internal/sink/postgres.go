package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"landscout/internal/models"
)

const postgresTable = "land_listings"

// Postgres stores listings in a PostgreSQL table keyed by URL.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres connects to dsn and creates the listings table in schema.
func NewPostgres(ctx context.Context, dsn, schema string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 2

	// PgBouncer in transaction mode cannot keep prepared statements.
	if strings.Contains(dsn, "pgbouncer=true") {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	p := &Postgres{pool: pool, table: tableName(schema)}

	if _, err := pool.Exec(ctx, p.createTableSQL()); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to create listings table: %w", err)
	}

	return p, nil
}

func tableName(schema string) string {
	if strings.TrimSpace(schema) == "" {
		schema = "public"
	}

	return pgx.Identifier{schema, postgresTable}.Sanitize()
}

func (p *Postgres) createTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS ` + p.table + ` (
		url            TEXT PRIMARY KEY,
		source         TEXT NOT NULL,
		title          TEXT NOT NULL,
		price          DOUBLE PRECISION,
		acres          DOUBLE PRECISION,
		price_per_acre DOUBLE PRECISION,
		run_id         TEXT,
		discovered_at  TIMESTAMPTZ NOT NULL,
		extras         JSONB NOT NULL DEFAULT '{}'::jsonb
	)`
}

func (p *Postgres) insertSQL() string {
	return `INSERT INTO ` + p.table + `
		(url, source, title, price, acres, price_per_acre, run_id, discovered_at, extras)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb)
		ON CONFLICT (url) DO NOTHING`
}

// Emit inserts l unless its URL is already stored.
func (p *Postgres) Emit(ctx context.Context, l *models.Listing) error {
	extras, err := encodeExtras(l)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, p.insertSQL(),
		l.URL, l.Source, l.Title, l.Price, l.Acres, l.PricePerAcre, l.RunID, l.DiscoveredAt, extras,
	)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}

	return nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()

	return nil
}

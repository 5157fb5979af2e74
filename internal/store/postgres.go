package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pricetracker/internal/db"
	"pricetracker/internal/model"
)

var productColumns = []string{"position", "url", "locator", "price", "last_updated", "price_changed", "status"}

// PostgresStore keeps the collection in a tracked_products table.
type PostgresStore struct {
	db   *pgxpool.Pool
	path string
}

func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	path := redact(connString)
	pool, err := db.NewPool(ctx, connString)
	if err != nil {
		return nil, &Error{Op: "open", Path: path, Err: err}
	}
	return &PostgresStore{db: pool, path: path}, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tracked_products (
		position      INTEGER PRIMARY KEY,
		url           TEXT NOT NULL,
		locator       TEXT NOT NULL DEFAULT '',
		price         TEXT NOT NULL DEFAULT '',
		last_updated  TEXT NOT NULL DEFAULT '',
		price_changed TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(ctx, schema)
	return err
}

// Load fails when tracked_products does not exist yet.
func (s *PostgresStore) Load(ctx context.Context) ([]model.Record, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT to_regclass('tracked_products') IS NOT NULL`).Scan(&exists); err != nil {
		return nil, &Error{Op: "load", Path: s.path, Err: err}
	}
	if !exists {
		return nil, &Error{Op: "load", Path: s.path, Err: ErrNoCollection}
	}

	rows, err := s.db.Query(ctx, `
		SELECT url, locator, price, last_updated, price_changed, status
		FROM tracked_products ORDER BY position`)
	if err != nil {
		return nil, &Error{Op: "load", Path: s.path, Err: err}
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var r model.Record
		var status string
		if err := rows.Scan(&r.URL, &r.Locator, &r.Price, &r.LastUpdated, &r.Changed, &status); err != nil {
			return nil, &Error{Op: "load", Path: s.path, Err: err}
		}
		r.Status = model.Status(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "load", Path: s.path, Err: err}
	}
	return out, nil
}

// Save replaces the table contents with a COPY inside one transaction.
func (s *PostgresStore) Save(ctx context.Context, records []model.Record) error {
	if err := s.save(ctx, records); err != nil {
		return &Error{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

func (s *PostgresStore) save(ctx context.Context, records []model.Record) error {
	if err := s.migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM tracked_products`); err != nil {
		return fmt.Errorf("failed to clear products: %w", err)
	}
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{i, r.URL, r.Locator, r.Price, r.LastUpdated, r.Changed, string(r.Status)}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"tracked_products"}, productColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("failed to copy products: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

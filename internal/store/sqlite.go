package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"pricetracker/internal/model"
)

// SQLiteStore keeps the collection in a tracked_products table, ordered by position.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLite prepares a handle on path. The file is not touched until Load or Save.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &Error{Op: "open", Path: path, Err: err}
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
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
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Load fails when the file or the table is missing, so a mistyped input
// location never reads as an empty collection.
func (s *SQLiteStore) Load(ctx context.Context) ([]model.Record, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, &Error{Op: "load", Path: s.path, Err: err}
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'tracked_products'`).Scan(&n)
	if err != nil {
		return nil, &Error{Op: "load", Path: s.path, Err: err}
	}
	if n == 0 {
		return nil, &Error{Op: "load", Path: s.path, Err: ErrNoCollection}
	}

	rows, err := s.db.QueryContext(ctx, `
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

// Save replaces the table contents in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, records []model.Record) error {
	if err := s.save(ctx, records); err != nil {
		return &Error{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

func (s *SQLiteStore) save(ctx context.Context, records []model.Record) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := s.migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tracked_products`); err != nil {
		return fmt.Errorf("failed to clear products: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO tracked_products (position, url, locator, price, last_updated, price_changed, status)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, i, r.URL, r.Locator, r.Price, r.LastUpdated, r.Changed, string(r.Status)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", r.URL, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

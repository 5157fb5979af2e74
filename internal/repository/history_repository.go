package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pricetracker/internal/model"
)

// Observation is one price seen for a URL during a run.
type Observation struct {
	ID        string
	RunID     string
	URL       string
	Price     string
	Changed   bool
	CheckedAt time.Time
}

// HistoryRepository appends observed prices to price_history.
type HistoryRepository struct {
	DB *sql.DB
}

func (r *HistoryRepository) Migrate(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS price_history (
			id          UUID PRIMARY KEY,
			run_id      UUID NOT NULL,
			url         TEXT NOT NULL,
			price       NUMERIC(12,2) NOT NULL,
			changed     BOOLEAN NOT NULL,
			checked_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_price_history_url_checked_at ON price_history (url, checked_at DESC);
	`)
	return err
}

// SaveBatch stores every ok record of a run and returns how many rows were written.
func (r *HistoryRepository) SaveBatch(ctx context.Context, runID string, records []model.Record) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_history (id, run_id, url, price, changed, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	n := 0
	for _, rec := range records {
		if rec.Status != model.StatusOK || rec.Price == "" {
			continue
		}
		_, err := stmt.ExecContext(ctx, uuid.New(), runID, rec.URL, rec.Price, rec.Changed == model.ChangedYes, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert history for %s: %w", rec.URL, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return n, nil
}

// List returns the latest observations for url, newest first.
func (r *HistoryRepository) List(ctx context.Context, url string, limit int) ([]Observation, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, run_id, url, price::text, changed, checked_at
		FROM price_history
		WHERE url = $1
		ORDER BY checked_at DESC
		LIMIT $2
	`, url, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.ID, &o.RunID, &o.URL, &o.Price, &o.Changed, &o.CheckedAt); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// Package store loads and persists the ordered record collection. A location
// is a CSV path, a sqlite:// URL or *.db file, or a postgres:// URL.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"pricetracker/internal/model"
)

// Store reads and writes the whole collection in input order.
type Store interface {
	Load(ctx context.Context) ([]model.Record, error)
	Save(ctx context.Context, records []model.Record) error
	Close() error
}

// Error means the collection could not be read or written. It is fatal to a run.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNoCollection means the location holds no saved collection yet.
var ErrNoCollection = errors.New("no tracked_products table")

// Open picks a backend from the shape of location. Opening never creates
// files or tables; Save does that on first write.
func Open(ctx context.Context, location string) (Store, error) {
	switch {
	case strings.HasPrefix(location, "postgres://"), strings.HasPrefix(location, "postgresql://"):
		return NewPostgres(ctx, location)
	case strings.HasPrefix(location, "sqlite://"):
		return NewSQLite(ctx, strings.TrimPrefix(location, "sqlite://"))
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLite(ctx, location)
	}
	return NewCSV(location), nil
}

// redact hides credentials in a connection string before it reaches an error.
func redact(location string) string {
	at := strings.LastIndex(location, "@")
	scheme := strings.Index(location, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return location
	}
	return location[:scheme+3] + "***" + location[at:]
}

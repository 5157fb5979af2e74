package store

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"pricetracker/internal/model"
)

// Header written on save. Column names match the files the tracker has always used.
var csvHeader = []string{"url", "xpath", "current_price", "last_updated", "price_changed", "status"}

type field int

const (
	fieldURL field = iota
	fieldLocator
	fieldPrice
	fieldLastUpdated
	fieldChanged
	fieldStatus
	fieldCount
)

// Accepted input names, including older spellings.
var csvColumns = map[string]field{
	"url":           fieldURL,
	"xpath":         fieldLocator,
	"locator":       fieldLocator,
	"selector":      fieldLocator,
	"current_price": fieldPrice,
	"price":         fieldPrice,
	"last_updated":  fieldLastUpdated,
	"last_checked":  fieldLastUpdated,
	"price_changed": fieldChanged,
	"changed":       fieldChanged,
	"status":        fieldStatus,
}

var errNoURLColumn = errors.New("missing url column")

// CSVStore keeps the collection in a single CSV file.
type CSVStore struct {
	path string
}

func NewCSV(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Load(ctx context.Context) ([]model.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &Error{Op: "load", Path: s.path, Err: err}
	}
	defer f.Close()

	// skip BOM if present
	br := bufio.NewReader(f)
	if b, _ := br.Peek(3); len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		br.Discard(3)
	}
	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, &Error{Op: "load", Path: s.path, Err: err}
	}
	idx := make([]int, fieldCount)
	for i := range idx {
		idx[i] = -1
	}
	for i, h := range header {
		fld, ok := csvColumns[strings.ToLower(strings.TrimSpace(h))]
		if ok && idx[fld] < 0 {
			idx[fld] = i
		}
	}
	if idx[fieldURL] < 0 {
		return nil, &Error{Op: "load", Path: s.path, Err: errNoURLColumn}
	}

	col := func(row []string, fld field) string {
		i := idx[fld]
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []model.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &Error{Op: "load", Path: s.path, Err: err}
		}
		out = append(out, model.Record{
			URL:         col(row, fieldURL),
			Locator:     col(row, fieldLocator),
			Price:       col(row, fieldPrice),
			LastUpdated: col(row, fieldLastUpdated),
			Changed:     col(row, fieldChanged),
			Status:      model.Status(col(row, fieldStatus)),
		})
	}
	log.Debug().Str("path", s.path).Int("records", len(out)).Msg("loaded csv")
	return out, nil
}

// Save replaces the file atomically. A failed save leaves the previous file intact.
func (s *CSVStore) Save(ctx context.Context, records []model.Record) error {
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return &Error{Op: "save", Path: s.path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := writeCSV(tmp, records); err != nil {
		tmp.Close()
		return &Error{Op: "save", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &Error{Op: "save", Path: s.path, Err: err}
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return &Error{Op: "save", Path: s.path, Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return &Error{Op: "save", Path: s.path, Err: err}
	}
	log.Debug().Str("path", s.path).Int("records", len(records)).Msg("saved csv")
	return nil
}

func writeCSV(f *os.File, records []model.Record) error {
	bufw := bufio.NewWriterSize(f, 1<<20)
	w := csv.NewWriter(bufw)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		rec := []string{r.URL, r.Locator, r.Price, r.LastUpdated, r.Changed, string(r.Status)}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := bufw.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func (s *CSVStore) Close() error { return nil }

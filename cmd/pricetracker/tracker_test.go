package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pricetracker/internal/config"
	"pricetracker/internal/model"
	"pricetracker/internal/store"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		Input:        filepath.Join(dir, "products.csv"),
		Output:       filepath.Join(dir, "products.csv"),
		AlertLogFile: filepath.Join(dir, "alerts.log"),
		UserAgent:    "pricetracker-test",
		Thresholds: config.Thresholds{
			DecreaseAlert: 0.1,
			IncreaseAlert: 0.2,
			FetchTimeout:  2 * time.Second,
			MaxAttempts:   2,
			WindowSize:    2,
		},
	}
}

func TestRunOnceUpdatesCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cheap":
			fmt.Fprint(w, `<html><body><span class="price">$89.99</span></body></html>`)
		case "/same":
			fmt.Fprint(w, `<html><body><span class="price">$50.00</span></body></html>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := testConfig(dir)
	input := "url,xpath,current_price,last_updated,price_changed,status\n" +
		srv.URL + "/cheap,.price,100.00,,no,ok\n" +
		srv.URL + "/same,.price,50,,no,ok\n" +
		srv.URL + "/gone,.price,10.00,2026-01-01 00:00:00,yes,ok\n" +
		"www.example.com/no-scheme,.price,5.00,2026-01-01 00:00:00,no,ok\n"
	if err := os.WriteFile(cfg.Input, []byte(input), 0o644); err != nil {
		t.Fatal(err)
	}

	tr, err := newTracker(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newTracker: %v", err)
	}
	defer tr.Close()
	if err := tr.runOnce(context.Background()); err != nil {
		t.Fatalf("runOnce: %v", err)
	}

	got, err := store.NewCSV(cfg.Output).Load(context.Background())
	if err != nil {
		t.Fatalf("Load output: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d records, want 4", len(got))
	}
	checks := []struct {
		price, changed string
		status         model.Status
	}{
		{"89.99", model.ChangedYes, model.StatusOK},
		{"50.00", model.ChangedNo, model.StatusOK},
		{"10.00", model.ChangedYes, model.StatusFail},
		{"5.00", model.ChangedNo, model.StatusValidationError},
	}
	for i, c := range checks {
		if got[i].Price != c.price || got[i].Changed != c.changed || got[i].Status != c.status {
			t.Errorf("record %d = %+v, want price %s changed %s status %s", i, got[i], c.price, c.changed, c.status)
		}
	}
	if got[3].LastUpdated != "2026-01-01 00:00:00" {
		t.Errorf("rejected record timestamp changed: %q", got[3].LastUpdated)
	}

	alerts, err := os.ReadFile(cfg.AlertLogFile)
	if err != nil {
		t.Fatalf("alert log: %v", err)
	}
	if !strings.Contains(string(alerts), "Price decreased for "+srv.URL+"/cheap") || strings.Count(string(alerts), "Price ") != 1 {
		t.Errorf("unexpected alert log:\n%s", alerts)
	}
}

func TestRunOnceMissingInputAborts(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	tr, err := newTracker(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newTracker: %v", err)
	}
	defer tr.Close()

	err = tr.runOnce(context.Background())
	var serr *store.Error
	if !errors.As(err, &serr) || serr.Op != "load" {
		t.Fatalf("err = %v, want load store error", err)
	}
	if _, err := os.Stat(cfg.Output); !os.IsNotExist(err) {
		t.Errorf("output written after a failed load")
	}
}

func TestRunOnceMissingSQLiteInputAborts(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Input = filepath.Join(dir, "missing.db")

	prior := "url,xpath,current_price,last_updated,price_changed,status\n" +
		"https://shop.example.com/a,.price,10.00,2026-01-01 00:00:00,no,ok\n"
	if err := os.WriteFile(cfg.Output, []byte(prior), 0o644); err != nil {
		t.Fatal(err)
	}

	tr, err := newTracker(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newTracker: %v", err)
	}
	defer tr.Close()

	err = tr.runOnce(context.Background())
	var serr *store.Error
	if !errors.As(err, &serr) || serr.Op != "load" {
		t.Fatalf("err = %v, want load store error", err)
	}
	if _, err := os.Stat(cfg.Input); !os.IsNotExist(err) {
		t.Errorf("missing input was created")
	}
	got, err := os.ReadFile(cfg.Output)
	if err != nil || string(got) != prior {
		t.Fatalf("output changed after a failed load: %q %v", got, err)
	}
}

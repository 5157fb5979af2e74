package alert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pricetracker/internal/model"
)

type countingNotifier struct {
	mu  sync.Mutex
	n   int
	err error
}

func (c *countingNotifier) Notify(ctx context.Context, ev model.AlertEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.err
}

func testEvent(url string) model.AlertEvent {
	return model.AlertEvent{
		URL:      url,
		OldPrice: "100",
		NewPrice: "89.99",
		Percent:  "-10.01",
		At:       time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
	}
}

func TestFormat(t *testing.T) {
	got := Format(testEvent("https://shop.example.com/p/1"))
	want := "[2026-10-17 09:30:00] Price decreased for https://shop.example.com/p/1\n" +
		"Old price: $100\n" +
		"New price: $89.99\n" +
		"Change: -10.01%\n\n"
	if got != want {
		t.Errorf("Format mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestRecordConcurrentEntriesDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.log")
	l := NewLog(path)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Record(context.Background(), testEvent("https://shop.example.com/p/"+strings.Repeat("x", i)))
		}(i)
	}
	wg.Wait()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	blocks := strings.Split(strings.TrimSuffix(string(b), "\n\n"), "\n\n")
	if len(blocks) != n {
		t.Fatalf("got %d blocks, want %d", len(blocks), n)
	}
	if l.Count() != n {
		t.Errorf("Count = %d, want %d", l.Count(), n)
	}
	for _, blk := range blocks {
		lines := strings.Split(blk, "\n")
		if len(lines) != 4 || !strings.HasPrefix(lines[0], "[") || !strings.HasPrefix(lines[3], "Change:") {
			t.Fatalf("malformed block %q", blk)
		}
	}
}

func TestRecordSurvivesUnwritableLogAndNotifierErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "alerts.log")
	good := &countingNotifier{}
	bad := &countingNotifier{err: errors.New("redis down")}
	l := NewLog(path, bad, good)

	l.Record(context.Background(), testEvent("https://shop.example.com/p/1"))

	if bad.n != 1 || good.n != 1 {
		t.Fatalf("every notifier should be called once, got bad=%d good=%d", bad.n, good.n)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no log file, stat err = %v", err)
	}
}

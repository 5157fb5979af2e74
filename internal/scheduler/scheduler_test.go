package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pricetracker/internal/config"
	"pricetracker/internal/crawler"
	"pricetracker/internal/executor"
	"pricetracker/internal/model"
	"pricetracker/internal/reconcile"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

type countingSleeper struct{ n atomic.Int32 }

func (c *countingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	c.n.Add(1)
	return nil
}

// fakeExecutor succeeds with price 10 unless the URL contains "fail" or "panic".
type fakeExecutor struct {
	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	finished atomic.Int32
	started  map[string]int32
	delay    time.Duration
}

func (f *fakeExecutor) Execute(ctx context.Context, t crawler.Target) executor.Outcome {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, t.URL)
	if f.started != nil {
		f.started[t.URL] = f.finished.Load()
	}
	f.mu.Unlock()
	defer f.finished.Add(1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	switch {
	case strings.Contains(t.URL, "panic"):
		panic("boom")
	case strings.Contains(t.URL, "fail"):
		return executor.Outcome{Err: executor.ErrExhausted, Attempts: 3}
	}
	return executor.Outcome{Price: decimal.NewFromInt(10), Attempts: 1}
}

func thresholds(window int) config.Thresholds {
	return config.Thresholds{
		WindowSize:    window,
		DecreaseAlert: 0.1,
		IncreaseAlert: 0.2,
		BatchMinDelay: time.Second,
		BatchMaxDelay: 2 * time.Second,
	}
}

func records(urls ...string) []model.Record {
	out := make([]model.Record, len(urls))
	for i, u := range urls {
		out[i] = model.Record{URL: u, Locator: ".price", Price: "12.00", LastUpdated: "2026-01-01 00:00:00", Changed: model.ChangedNo}
	}
	return out
}

func TestRunPreservesOrderAndCardinality(t *testing.T) {
	urls := []string{
		"https://a.example.com/1",
		"https://a.example.com/fail",
		"ftp://bad.example.com/3",
		"https://a.example.com/4",
		"https://a.example.com/panic",
		"",
		"https://a.example.com/7",
	}
	in := records(urls...)
	fe := &fakeExecutor{}
	s := New(fe, reconcile.New(thresholds(3), nil), thresholds(3), WithSleeper(noSleep))

	out, sum := s.Run(context.Background(), in)

	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
	want := []model.Status{
		model.StatusOK, model.StatusFail, model.StatusValidationError, model.StatusOK,
		model.StatusFail, model.StatusValidationError, model.StatusOK,
	}
	for i := range out {
		if out[i].URL != in[i].URL {
			t.Errorf("out[%d].URL = %q, want %q", i, out[i].URL, in[i].URL)
		}
		if out[i].Status != want[i] {
			t.Errorf("out[%d].Status = %s, want %s", i, out[i].Status, want[i])
		}
	}
	if sum.Total != 7 || sum.OK != 3 || sum.Failed != 2 || sum.Invalid != 2 || sum.Windows != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if out[1].Price != "12.00" {
		t.Errorf("failed record lost its price: %q", out[1].Price)
	}
	if out[2] != (func() model.Record { r := in[2]; r.Status = model.StatusValidationError; return r })() {
		t.Errorf("validation error changed fields: %+v", out[2])
	}
}

func TestRunNeverFetchesInvalidRecords(t *testing.T) {
	fe := &fakeExecutor{}
	s := New(fe, reconcile.New(thresholds(2), nil), thresholds(2), WithSleeper(noSleep))
	s.Run(context.Background(), records("www.example.com/no-scheme", "mailto:x@example.com"))
	if len(fe.calls) != 0 {
		t.Fatalf("executor called for invalid records: %v", fe.calls)
	}
}

func TestRunInvalidRecordsTakeNoWindowSlot(t *testing.T) {
	fe := &fakeExecutor{}
	sl := &countingSleeper{}
	s := New(fe, reconcile.New(thresholds(2), nil), thresholds(2), WithSleeper(sl.Sleep))

	out, sum := s.Run(context.Background(), records(
		"bad-1",
		"https://a.example.com/1",
		"bad-2",
		"https://a.example.com/2",
		"bad-3",
	))
	if sum.Windows != 1 || sl.n.Load() != 0 {
		t.Fatalf("windows = %d pacing sleeps = %d, want 1 and 0", sum.Windows, sl.n.Load())
	}
	want := []model.Status{
		model.StatusValidationError, model.StatusOK, model.StatusValidationError,
		model.StatusOK, model.StatusValidationError,
	}
	for i := range want {
		if out[i].Status != want[i] {
			t.Errorf("out[%d].Status = %s, want %s", i, out[i].Status, want[i])
		}
	}

	_, sum = s.Run(context.Background(), records("bad-1", "bad-2", "bad-3"))
	if sum.Windows != 0 || sl.n.Load() != 0 || len(fe.calls) != 2 {
		t.Fatalf("all-invalid run: windows = %d sleeps = %d calls = %d", sum.Windows, sl.n.Load(), len(fe.calls))
	}
}

// panickyReconciler wraps a real engine and panics for one URL.
type panickyReconciler struct {
	*reconcile.Engine
	url string
}

func (p panickyReconciler) Reconcile(ctx context.Context, old model.Record, out executor.Outcome) model.Record {
	if old.URL == p.url {
		panic("reconcile blew up")
	}
	return p.Engine.Reconcile(ctx, old, out)
}

func TestRunRecoversFromReconcilerPanic(t *testing.T) {
	th := thresholds(2)
	rec := panickyReconciler{Engine: reconcile.New(th, nil), url: "https://a.example.com/boom"}
	s := New(&fakeExecutor{}, rec, th, WithSleeper(noSleep))

	in := records("https://a.example.com/boom", "https://a.example.com/fine")
	out, sum := s.Run(context.Background(), in)

	if out[0].Status != model.StatusFail || out[0].Price != in[0].Price || out[0].Changed != in[0].Changed {
		t.Errorf("panicked record = %+v", out[0])
	}
	if out[0].LastUpdated == in[0].LastUpdated {
		t.Error("panicked record timestamp not refreshed")
	}
	if out[1].Status != model.StatusOK {
		t.Errorf("sibling = %+v", out[1])
	}
	if sum.Failed != 1 || sum.OK != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunBoundsConcurrencyAndSequencesWindows(t *testing.T) {
	var urls []string
	for i := 0; i < 10; i++ {
		urls = append(urls, fmt.Sprintf("https://a.example.com/%d", i))
	}
	fe := &fakeExecutor{delay: 20 * time.Millisecond, started: map[string]int32{}}
	sl := &countingSleeper{}
	s := New(fe, reconcile.New(thresholds(4), nil), thresholds(4), WithSleeper(sl.Sleep))

	out, sum := s.Run(context.Background(), records(urls...))

	if got := fe.maxSeen.Load(); got > 4 {
		t.Errorf("max in flight = %d, want <= 4", got)
	}
	for i, u := range urls {
		windowStart := int32((i / 4) * 4)
		if fe.started[u] < windowStart {
			t.Errorf("%s started after %d completions, window needs %d", u, fe.started[u], windowStart)
		}
	}
	if sum.Windows != 3 {
		t.Errorf("windows = %d, want 3", sum.Windows)
	}
	if got := sl.n.Load(); got != 2 {
		t.Errorf("pacing sleeps = %d, want 2 (between windows only)", got)
	}
	for i := range out {
		if out[i].Status != model.StatusOK {
			t.Errorf("out[%d] = %s", i, out[i].Status)
		}
	}
}

func TestRunEmpty(t *testing.T) {
	s := New(&fakeExecutor{}, reconcile.New(thresholds(3), nil), thresholds(3), WithSleeper(noSleep))
	out, sum := s.Run(context.Background(), nil)
	if len(out) != 0 || sum.Total != 0 || sum.Windows != 0 {
		t.Fatalf("unexpected result %v %+v", out, sum)
	}
}

// pageFetcher serves per-URL scripted responses through the real executor.
type pageFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	pages map[string][]string // "" entries mean a timeout, "429" a rate limit
}

func (p *pageFetcher) Open(ctx context.Context) (crawler.Session, error) { return p, nil }
func (p *pageFetcher) Close() error                                      { return nil }

func (p *pageFetcher) Extract(ctx context.Context, t crawler.Target) (string, error) {
	p.mu.Lock()
	i := p.calls[t.URL]
	p.calls[t.URL]++
	p.mu.Unlock()

	script := p.pages[t.URL]
	if i >= len(script) {
		i = len(script) - 1
	}
	switch script[i] {
	case "":
		return "", &crawler.Error{Class: crawler.ErrTimeout}
	case "429":
		return "", &crawler.Error{Class: crawler.ErrRateLimited, StatusCode: 429}
	}
	return script[i], nil
}

func TestRunEndToEndWithExecutor(t *testing.T) {
	th := thresholds(2)
	th.MaxAttempts = 3
	th.FetchTimeout = time.Second

	pf := &pageFetcher{calls: map[string]int{}, pages: map[string][]string{
		"https://a.example.com/same":    {"$12.00"},
		"https://a.example.com/down":    {""},
		"https://a.example.com/limited": {"429", "$9.00"},
	}}
	exec := executor.New(pf, th, executor.WithSleeper(noSleep))
	s := New(exec, reconcile.New(th, nil), th, WithSleeper(noSleep))

	out, _ := s.Run(context.Background(), records(
		"https://a.example.com/same",
		"https://a.example.com/down",
		"https://a.example.com/limited",
	))

	if out[0].Status != model.StatusOK || out[0].Changed != model.ChangedNo {
		t.Errorf("same price: %+v", out[0])
	}
	if out[1].Status != model.StatusFail || out[1].Price != "12.00" {
		t.Errorf("down: %+v", out[1])
	}
	if pf.calls["https://a.example.com/down"] != 3 {
		t.Errorf("down attempts = %d, want 3", pf.calls["https://a.example.com/down"])
	}
	if out[2].Status != model.StatusOK || out[2].Price != "9.00" || out[2].Changed != model.ChangedYes {
		t.Errorf("limited: %+v", out[2])
	}
}

// Package scheduler runs record checks in fixed-size concurrency windows.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pricetracker/internal/config"
	"pricetracker/internal/crawler"
	"pricetracker/internal/executor"
	"pricetracker/internal/model"
	"pricetracker/internal/observability"
	"pricetracker/internal/validate"
)

type Executor interface {
	Execute(ctx context.Context, t crawler.Target) executor.Outcome
}

type Reconciler interface {
	Reconcile(ctx context.Context, old model.Record, out executor.Outcome) model.Record
	Reject(old model.Record, cause error) model.Record
}

// Summary counts what a run produced.
type Summary struct {
	Total    int
	OK       int
	Failed   int
	Invalid  int
	Windows  int
	Duration time.Duration
}

type Scheduler struct {
	exec       Executor
	rec        Reconciler
	windowSize int
	minDelay   time.Duration
	maxDelay   time.Duration
	sleep      executor.Sleeper
}

type Option func(*Scheduler)

func WithSleeper(s executor.Sleeper) Option {
	return func(sch *Scheduler) { sch.sleep = s }
}

func New(exec Executor, rec Reconciler, th config.Thresholds, opts ...Option) *Scheduler {
	s := &Scheduler{
		exec:       exec,
		rec:        rec,
		windowSize: th.WindowSize,
		minDelay:   th.BatchMinDelay,
		maxDelay:   th.BatchMaxDelay,
		sleep:      executor.Sleep,
	}
	if s.windowSize < 1 {
		s.windowSize = 1
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run checks every record and returns the updated collection. Output i
// always corresponds to records[i]; no record is dropped or duplicated.
// Records failing validation are settled up front and take no window slot.
func (s *Scheduler) Run(ctx context.Context, records []model.Record) ([]model.Record, Summary) {
	start := time.Now()
	out := make([]model.Record, len(records))

	valid := make([]int, 0, len(records))
	for i, r := range records {
		if err := validate.Record(r); err != nil {
			out[i] = s.rec.Reject(r, err)
			continue
		}
		valid = append(valid, i)
	}

	total := (len(valid) + s.windowSize - 1) / s.windowSize
	log.Info().
		Int("records", len(records)).
		Int("rejected", len(records)-len(valid)).
		Int("windows", total).
		Int("window_size", s.windowSize).
		Msg("processing in windows")

	for i := 0; i < len(valid); i += s.windowSize {
		end := i + s.windowSize
		if end > len(valid) {
			end = len(valid)
		}
		n := i/s.windowSize + 1

		wstart := time.Now()
		log.Info().Int("window", n).Int("of", total).Int("size", end-i).Msg("starting window")
		s.runWindow(ctx, records, valid[i:end], out)
		observability.WindowDuration.Observe(time.Since(wstart).Seconds())
		log.Info().Int("window", n).Int("of", total).Dur("took", time.Since(wstart)).Msg("completed window")

		if end < len(valid) {
			d := executor.Jitter(s.minDelay, s.maxDelay)
			log.Info().Dur("delay", d).Msg("waiting before next window")
			_ = s.sleep(ctx, d)
		}
	}

	sum := Summary{Total: len(out), Windows: total, Duration: time.Since(start)}
	for _, r := range out {
		switch r.Status {
		case model.StatusOK:
			sum.OK++
		case model.StatusFail:
			sum.Failed++
		case model.StatusValidationError:
			sum.Invalid++
		}
	}
	return out, sum
}

// runWindow launches one goroutine per index and waits for all of them.
// Each goroutine writes only out[idx].
func (s *Scheduler) runWindow(ctx context.Context, records []model.Record, window []int, out []model.Record) {
	var wg sync.WaitGroup
	for _, idx := range window {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			r := records[idx]
			defer func() {
				if p := recover(); p != nil {
					log.Error().Str("url", r.URL).Interface("panic", p).Msg("task panicked")
					out[idx] = failed(r)
				}
			}()
			outcome := s.exec.Execute(ctx, crawler.Target{URL: r.URL, Locator: r.Locator})
			out[idx] = s.rec.Reconcile(ctx, r, outcome)
		}(idx)
	}
	wg.Wait()
}

// failed settles a task that panicked without calling back into the reconciler.
func failed(r model.Record) model.Record {
	r.LastUpdated = time.Now().Format(model.TimestampLayout)
	r.Status = model.StatusFail
	observability.Records.WithLabelValues(string(r.Status)).Inc()
	return r
}

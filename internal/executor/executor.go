// Package executor runs one fetch-and-parse task with bounded retries,
// jittered pre-attempt delays and rate-limit cool-downs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"pricetracker/internal/config"
	"pricetracker/internal/crawler"
	"pricetracker/internal/observability"
	"pricetracker/internal/price"
)

// ErrExhausted ends a task whose attempt budget is spent.
var ErrExhausted = errors.New("attempts exhausted")

const defaultCloseTimeout = 10 * time.Second

// Outcome is the terminal result of one task. Err is nil on success.
type Outcome struct {
	Price     decimal.Decimal
	Err       error
	Attempts  int
	Cooldowns int
}

func (o Outcome) OK() bool { return o.Err == nil }

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Jitter draws a duration uniformly from [min, max].
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}

// attempt is the state of the current try. It lives only inside Execute.
type attempt struct {
	n           int
	rateLimited bool
	delay       time.Duration
}

type Executor struct {
	fetcher      crawler.Fetcher
	cfg          config.Thresholds
	sleep        Sleeper
	closeTimeout time.Duration
}

type Option func(*Executor)

// WithSleeper replaces the real clock, mostly for tests.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleep = s }
}

// WithCloseTimeout bounds how long a session Close may block an attempt.
func WithCloseTimeout(d time.Duration) Option {
	return func(e *Executor) { e.closeTimeout = d }
}

func New(f crawler.Fetcher, cfg config.Thresholds, opts ...Option) *Executor {
	e := &Executor{
		fetcher:      f,
		cfg:          cfg,
		sleep:        Sleep,
		closeTimeout: defaultCloseTimeout,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs the task to success or exhaustion. It never panics on fetch
// failures and always returns an Outcome.
func (e *Executor) Execute(ctx context.Context, t crawler.Target) Outcome {
	logger := log.With().Str("url", t.URL).Int("max_attempts", e.cfg.MaxAttempts).Logger()

	var out Outcome
	var lastErr error
	for a := (attempt{}); a.n < e.cfg.MaxAttempts; a.n++ {
		a.delay = Jitter(e.cfg.MinDelay, e.cfg.MaxDelay)
		alog := logger.With().Int("attempt", a.n+1).Logger()
		alog.Debug().Dur("delay", a.delay).Msg("waiting before attempt")
		if err := e.sleep(ctx, a.delay); err != nil {
			lastErr = err
			break
		}

		out.Attempts = a.n + 1
		p, err := e.try(ctx, t, alog)
		if err == nil {
			observability.FetchAttempts.WithLabelValues("success").Inc()
			alog.Info().Str("price", price.Format(p)).Msg("price extracted")
			out.Price = p
			return out
		}

		lastErr = err
		a.rateLimited = crawler.IsRateLimited(err)
		if a.rateLimited {
			observability.FetchAttempts.WithLabelValues("rate_limited").Inc()
		} else {
			observability.FetchAttempts.WithLabelValues("transient").Inc()
		}
		alog.Warn().Err(err).Bool("rate_limited", a.rateLimited).Msg("attempt failed")

		if a.n+1 >= e.cfg.MaxAttempts {
			break
		}
		wait := e.cfg.RetryDelay
		if a.rateLimited {
			wait = e.cfg.RateLimitCooldown
			out.Cooldowns++
			observability.Cooldowns.Inc()
			alog.Info().Dur("cooldown", wait).Msg("rate limited, cooling down")
		} else {
			alog.Info().Dur("retry_delay", wait).Msg("retrying")
		}
		if err := e.sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}

	out.Err = fmt.Errorf("%w after %d attempts: %w", ErrExhausted, out.Attempts, lastErr)
	logger.Error().Err(out.Err).Msg("giving up")
	return out
}

// try runs a single attempt. The session is released before it returns.
func (e *Executor) try(ctx context.Context, t crawler.Target, logger zerolog.Logger) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	sess, err := e.fetcher.Open(ctx)
	if err != nil {
		return decimal.Zero, &crawler.Error{Class: crawler.ErrNavigation, Err: err}
	}
	defer e.release(sess, logger)

	text, err := sess.Extract(ctx, t)
	observability.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, crawler.ErrTimeout) {
			err = &crawler.Error{Class: crawler.ErrTimeout, Err: err}
		}
		return decimal.Zero, err
	}
	return price.Parse(text)
}

// release closes sess without letting a hung Close stall the task.
func (e *Executor) release(sess crawler.Session, logger zerolog.Logger) {
	done := make(chan error, 1)
	go func() { done <- sess.Close() }()

	t := time.NewTimer(e.closeTimeout)
	defer t.Stop()
	select {
	case err := <-done:
		if err != nil {
			logger.Warn().Err(err).Msg("session close failed")
		}
	case <-t.C:
		logger.Warn().Dur("timeout", e.closeTimeout).Msg("session close timed out, abandoning")
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"pricetracker/internal/alert"
	"pricetracker/internal/config"
	"pricetracker/internal/crawler"
	"pricetracker/internal/db"
	"pricetracker/internal/executor"
	"pricetracker/internal/observability"
	"pricetracker/internal/reconcile"
	"pricetracker/internal/repository"
	"pricetracker/internal/scheduler"
	"pricetracker/internal/store"
)

// tracker holds everything a run needs. It is built once per process and
// may run many times in watch mode.
type tracker struct {
	cfg       *config.Config
	alerts    *alert.Log
	scheduler *scheduler.Scheduler
	history   *repository.HistoryRepository

	redis     *redis.Client
	historyDB *sql.DB
}

func newTracker(ctx context.Context, cfg *config.Config) (*tracker, error) {
	if cfg.MetricsPort != "" {
		observability.Start(cfg.MetricsPort)
	}

	proxies, err := crawler.NewProxyPool(cfg.Proxies)
	if err != nil {
		return nil, err
	}
	fetcher := &crawler.HTTPFetcher{
		UserAgent: cfg.UserAgent,
		Proxies:   proxies,
		Timeout:   cfg.Thresholds.FetchTimeout,
	}

	t := &tracker{cfg: cfg}

	var notifiers []alert.Notifier
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		t.redis = redis.NewClient(opts)
		notifiers = append(notifiers, &alert.RedisNotifier{Client: t.redis, Key: cfg.AlertRedisKey})
	}
	t.alerts = alert.NewLog(cfg.AlertLogFile, notifiers...)

	if cfg.HistoryDBURL != "" {
		if err := t.openHistory(ctx); err != nil {
			log.Error().Err(err).Msg("price history disabled")
		}
	}

	exec := executor.New(fetcher, cfg.Thresholds)
	engine := reconcile.New(cfg.Thresholds, t.alerts)
	t.scheduler = scheduler.New(exec, engine, cfg.Thresholds)

	log.Info().
		Str("input", cfg.Input).
		Str("output", cfg.Output).
		Int("window_size", cfg.Thresholds.WindowSize).
		Int("max_attempts", cfg.Thresholds.MaxAttempts).
		Int("proxies", proxies.Len()).
		Bool("redis", t.redis != nil).
		Bool("history", t.history != nil).
		Msg("tracker ready")
	return t, nil
}

func (t *tracker) openHistory(ctx context.Context) error {
	conn, err := db.New(ctx, t.cfg.HistoryDBURL)
	if err != nil {
		return err
	}
	repo := &repository.HistoryRepository{DB: conn}
	if err := repo.Migrate(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("migrate price history: %w", err)
	}
	t.historyDB = conn
	t.history = repo
	return nil
}

// runOnce loads, checks and saves the whole collection. Only store errors
// are returned; per-product failures end up in the status column.
func (t *tracker) runOnce(ctx context.Context) error {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()
	alertsBefore := t.alerts.Count()

	in, err := store.Open(ctx, t.cfg.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	records, err := in.Load(ctx)
	if err != nil {
		return err
	}
	logger.Info().Int("records", len(records)).Str("input", t.cfg.Input).Msg("loaded products")

	updated, sum := t.scheduler.Run(ctx, records)

	out := in
	if t.cfg.Output != t.cfg.Input {
		out, err = store.Open(ctx, t.cfg.Output)
		if err != nil {
			return err
		}
		defer out.Close()
	}
	if err := out.Save(ctx, updated); err != nil {
		return err
	}
	logger.Info().Str("output", t.cfg.Output).Msg("saved products")

	if t.history != nil {
		n, err := t.history.SaveBatch(ctx, runID, updated)
		if err != nil {
			logger.Error().Err(err).Msg("failed to save price history")
		} else {
			logger.Debug().Int("rows", n).Msg("price history saved")
		}
	}

	logger.Info().
		Int("total", sum.Total).
		Int("ok", sum.OK).
		Int("fail", sum.Failed).
		Int("validation_error", sum.Invalid).
		Int64("alerts", t.alerts.Count()-alertsBefore).
		Int("windows", sum.Windows).
		Dur("took", sum.Duration).
		Msg("run complete")
	return nil
}

func (t *tracker) Close() {
	if t.redis != nil {
		if err := t.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close failed")
		}
	}
	if t.historyDB != nil {
		t.historyDB.Close()
	}
}

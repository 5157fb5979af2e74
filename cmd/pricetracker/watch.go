package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pricetracker/internal/scheduler"
)

var intervalFlag time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-check every product on an interval until interrupted",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&intervalFlag, "interval", 0, "time between runs (defaults to WATCH_INTERVAL)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	interval := cfg.WatchInterval
	if intervalFlag > 0 {
		interval = intervalFlag
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := newTracker(ctx, cfg)
	if err != nil {
		return err
	}
	defer t.Close()

	w := scheduler.NewWatcher(interval, func(ctx context.Context) error {
		return t.runOnce(ctx)
	})
	w.Start(ctx)

	<-ctx.Done()
	log.Info().Msg("shutting down, waiting for the current run to finish")
	w.Stop()
	return nil
}

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Watcher repeats a run on a fixed interval until stopped.
type Watcher struct {
	interval time.Duration
	run      func(ctx context.Context) error
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWatcher(interval time.Duration, run func(ctx context.Context) error) *Watcher {
	return &Watcher{
		interval: interval,
		run:      run,
		stopChan: make(chan struct{}),
	}
}

// Start runs once immediately, then on every tick. A run in progress is not
// interrupted by Stop; it completes and writes its output first.
func (w *Watcher) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("starting watcher")
	runCtx := context.WithoutCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.runOnce(runCtx)
		for {
			select {
			case <-ticker.C:
				w.runOnce(runCtx)
			case <-w.stopChan:
				log.Info().Msg("stopping watcher...")
				return
			}
		}
	}()
}

func (w *Watcher) runOnce(ctx context.Context) {
	if err := w.run(ctx); err != nil {
		log.Error().Err(err).Msg("run failed")
	}
}

// Stop waits for the current run, if any, to finish.
func (w *Watcher) Stop() {
	close(w.stopChan)
	w.wg.Wait()
	log.Info().Msg("watcher stopped")
}

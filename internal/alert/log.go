// Package alert records significant price movements to an append-only log
// and fans them out to optional notifiers.
package alert

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"pricetracker/internal/model"
	"pricetracker/internal/observability"
)

const notifyTimeout = 5 * time.Second

// Notifier delivers an alert somewhere other than the log file.
type Notifier interface {
	Notify(ctx context.Context, ev model.AlertEvent) error
}

// Log appends one block per alert. Writes are serialized so entries from
// sibling tasks never interleave.
type Log struct {
	path      string
	notifiers []Notifier
	count     atomic.Int64

	mu sync.Mutex
}

func NewLog(path string, notifiers ...Notifier) *Log {
	return &Log{path: path, notifiers: notifiers}
}

// Format renders the block written for ev.
func Format(ev model.AlertEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Price %s for %s\n", ev.At.Format(model.TimestampLayout), ev.Direction(), ev.URL)
	fmt.Fprintf(&b, "Old price: $%s\n", ev.OldPrice)
	fmt.Fprintf(&b, "New price: $%s\n", ev.NewPrice)
	fmt.Fprintf(&b, "Change: %s%%\n\n", ev.Percent)
	return b.String()
}

// Record writes ev and notifies. Failures are logged and never returned:
// an alert must not fail the task that raised it.
func (l *Log) Record(ctx context.Context, ev model.AlertEvent) {
	l.count.Add(1)
	observability.Alerts.WithLabelValues(ev.Direction()).Inc()
	log.Warn().
		Str("url", ev.URL).
		Str("direction", ev.Direction()).
		Str("old_price", ev.OldPrice).
		Str("new_price", ev.NewPrice).
		Str("change_pct", ev.Percent).
		Msg("price alert")

	if err := l.append(Format(ev)); err != nil {
		log.Error().Err(err).Str("path", l.path).Msg("alert log write failed")
	}

	for _, n := range l.notifiers {
		nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		if err := n.Notify(nctx, ev); err != nil {
			log.Error().Err(err).Str("url", ev.URL).Msg("alert notify failed")
		}
		cancel()
	}
}

// Count is the number of alerts recorded since the Log was created.
func (l *Log) Count() int64 { return l.count.Load() }

func (l *Log) append(entry string) error {
	if l.path == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Package reconcile merges a task outcome into the next version of a record.
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"pricetracker/internal/config"
	"pricetracker/internal/executor"
	"pricetracker/internal/model"
	"pricetracker/internal/observability"
	"pricetracker/internal/price"
)

var hundred = decimal.NewFromInt(100)

// Recorder receives alerts. It must not block for long and never fails the caller.
type Recorder interface {
	Record(ctx context.Context, ev model.AlertEvent)
}

type Engine struct {
	decreasePct decimal.Decimal
	increasePct decimal.Decimal
	alerts      Recorder
	now         func() time.Time
}

func New(th config.Thresholds, alerts Recorder) *Engine {
	return &Engine{
		decreasePct: decimal.NewFromFloat(th.DecreaseAlert).Mul(hundred),
		increasePct: decimal.NewFromFloat(th.IncreaseAlert).Mul(hundred),
		alerts:      alerts,
		now:         time.Now,
	}
}

// Reconcile returns a new record for old given the task outcome. old is not modified.
func (e *Engine) Reconcile(ctx context.Context, old model.Record, out executor.Outcome) model.Record {
	now := e.now()
	next := old
	next.LastUpdated = now.Format(model.TimestampLayout)

	if !out.OK() {
		next.Status = model.StatusFail
		observability.Records.WithLabelValues(string(next.Status)).Inc()
		log.Info().Str("url", old.URL).Msg("failed to get price, keeping old values")
		return next
	}

	// An absent or unreadable stored price compares as zero.
	oldPrice, _, err := price.ParseStored(old.Price)
	if err != nil {
		oldPrice = decimal.Zero
	}
	newPrice := out.Price
	changed := !newPrice.Equal(oldPrice)

	if oldPrice.IsPositive() && changed {
		pct := price.PercentChange(oldPrice, newPrice)
		if pct.LessThanOrEqual(e.decreasePct.Neg()) || pct.GreaterThanOrEqual(e.increasePct) {
			if e.alerts != nil {
				e.alerts.Record(ctx, model.AlertEvent{
					URL:       old.URL,
					OldPrice:  price.Format(oldPrice),
					NewPrice:  price.Format(newPrice),
					Percent:   pct.StringFixed(2),
					Increased: newPrice.GreaterThan(oldPrice),
					At:        now,
				})
			}
		}
	}

	next.Price = price.Format(newPrice)
	next.Changed = model.ChangedNo
	if changed {
		next.Changed = model.ChangedYes
	}
	next.Status = model.StatusOK
	observability.Records.WithLabelValues(string(next.Status)).Inc()
	log.Info().
		Str("url", old.URL).
		Str("old_price", price.Format(oldPrice)).
		Str("new_price", next.Price).
		Str("changed", next.Changed).
		Msg("price updated")
	return next
}

// Reject tags a record that failed validation. Every other field is kept.
func (e *Engine) Reject(old model.Record, cause error) model.Record {
	next := old
	next.Status = model.StatusValidationError
	observability.Records.WithLabelValues(string(next.Status)).Inc()
	log.Warn().Err(cause).Str("url", old.URL).Msg("validation error")
	return next
}

package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const expiryBatch = 500

// VoucherExpirer stores the expired status of vouchers past their window.
type VoucherExpirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// ExpiryWorker periodically moves elapsed activations to expired.
type ExpiryWorker struct {
	interval time.Duration
	vouchers VoucherExpirer
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, vouchers VoucherExpirer, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		vouchers: vouchers,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick drains due vouchers in batches, bounded by one interval.
func (w *ExpiryWorker) tick(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	total := 0
	for {
		n, err := w.vouchers.ExpireDue(ctx, expiryBatch)
		if err != nil {
			w.log.Error().Err(err).Msg("expiry worker error")
			break
		}
		total += n
		if n < expiryBatch || ctx.Err() != nil {
			break
		}
	}
	if total > 0 {
		w.log.Info().Int("count", total).Msg("vouchers expired")
	}
	return total
}

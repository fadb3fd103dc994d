package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const reconcileBatch = 200

// StaleTransactionFailer fails pending transactions that never got a callback.
type StaleTransactionFailer interface {
	FailStale(ctx context.Context, olderThan time.Duration, limit int) ([]string, error)
}

// TransactionReconciler periodically fails pending transactions whose
// provider callback never arrived. A zero timeout disables it.
type TransactionReconciler struct {
	transactions StaleTransactionFailer
	interval     time.Duration
	staleAfter   time.Duration
	log          *zerolog.Logger
}

func NewTransactionReconciler(transactions StaleTransactionFailer, interval, staleAfter time.Duration, logger *zerolog.Logger) *TransactionReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	l := logger.With().Str("component", "TransactionReconciler").Logger()
	return &TransactionReconciler{transactions: transactions, interval: interval, staleAfter: staleAfter, log: &l}
}

func (w *TransactionReconciler) Enabled() bool { return w.staleAfter > 0 }

func (w *TransactionReconciler) Start(ctx context.Context) {
	if !w.Enabled() {
		w.log.Info().Msg("pending timeout is zero, reconciler disabled")
		return
	}
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting transaction reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping transaction reconciler")
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *TransactionReconciler) tick(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	refs, err := w.transactions.FailStale(ctx, w.staleAfter, reconcileBatch)
	if err != nil {
		w.log.Error().Err(err).Msg("fail stale transactions")
		return nil
	}
	for _, ref := range refs {
		w.log.Info().Str("reference", ref).Msg("pending transaction timed out")
	}
	return refs
}

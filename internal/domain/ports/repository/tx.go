package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and hands the
// transaction handle to fn as tx.
//
// Repository methods accept tx and detect a live transaction on their side
// (pgx.Tx for Postgres) to bind statements to it and to add
// SELECT ... FOR UPDATE where a row must stay locked until commit.
// Repositories MUST accept NoTX (nil) and fall back to the pool.
//
// USAGE
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		t, err := transactions.FindByReference(ctx, tx, ref)
//		...
//		return err
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

type commitHooksKey struct{}

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// WithCommitHooks returns a context that collects AfterCommit callbacks and
// the function that runs them. A TransactionManager calls run only after a
// successful commit; a rolled-back unit drops its hooks. When ctx already
// carries hooks the outer unit owns them and run is a no-op.
func WithCommitHooks(ctx context.Context) (context.Context, func()) {
	if _, ok := ctx.Value(commitHooksKey{}).(*commitHooks); ok {
		return ctx, func() {}
	}
	h := &commitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), h.run
}

// AfterCommit defers fn until the unit of work carried by ctx commits.
// Outside a unit of work fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *commitHooks) run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

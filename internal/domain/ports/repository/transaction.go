package repository

import (
	"context"
	"time"

	"wifi-voucher-portal/internal/domain/model"
)

type TransactionRepository interface {
	// Create inserts a pending transaction. Returns domain.ErrAlreadyExists
	// when the reference collides.
	Create(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByReference(ctx context.Context, tx Tx, ref string) (*model.Transaction, error)
	ListLatest(ctx context.Context, tx Tx, limit int) ([]*model.Transaction, error)

	// ResolveIfPending moves a pending transaction to res.Status and records
	// the callback. Reports false when it was no longer pending.
	ResolveIfPending(ctx context.Context, tx Tx, id string, res model.CallbackResult) (bool, error)
	// LinkVoucher sets voucher_id once; a second link is a no-op (false).
	LinkVoucher(ctx context.Context, tx Tx, id, voucherID string) (bool, error)
	// ReverseIfCompleted moves completed -> reversed.
	ReverseIfCompleted(ctx context.Context, tx Tx, id string, reason *string) (bool, error)
	// FailPendingOlderThan fails pending rows created before cutoff and
	// returns their references.
	FailPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, reason string, limit int) ([]string, error)
}

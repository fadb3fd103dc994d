package repository

import (
	"context"
	"time"

	"wifi-voucher-portal/internal/domain/model"
)

type VoucherRepository interface {
	// Create inserts v. It reports false, without error, when the code or the
	// purchase reference is already taken.
	Create(ctx context.Context, tx Tx, v *model.Voucher) (bool, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Voucher, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Voucher, error)
	FindByPurchaseReference(ctx context.Context, tx Tx, ref string) (*model.Voucher, error)
	// List filters on the effective status at now, so an elapsed activation
	// matches expired and not activated.
	List(ctx context.Context, tx Tx, f model.VoucherFilter, now time.Time) ([]*model.Voucher, error)
	Stats(ctx context.Context, tx Tx, now time.Time) (model.VoucherStats, error)
	ListActiveSessions(ctx context.Context, tx Tx, now time.Time) ([]*model.ActiveSession, error)

	// MarkActivated transitions sold -> activated. Reports false when the
	// voucher was not in sold state.
	MarkActivated(ctx context.Context, tx Tx, id string, activatedAt, expiresAt time.Time, deviceID *string, gatewayUsername string) (bool, error)
	// RevokeIfActivated transitions activated -> revoked while the voucher is
	// still inside its window at now. An elapsed activation is already expired.
	RevokeIfActivated(ctx context.Context, tx Tx, id string, now time.Time) (bool, error)
	// ExpireActivated transitions activated vouchers whose expiry is at or
	// before now to expired, at most limit rows. Returns the number changed.
	ExpireActivated(ctx context.Context, tx Tx, now time.Time, limit int) (int, error)
}

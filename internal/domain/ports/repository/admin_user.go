package repository

import (
	"context"
	"time"

	"wifi-voucher-portal/internal/domain/model"
)

type AdminUserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.AdminUser) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.AdminUser, error)
	FindByUsername(ctx context.Context, tx Tx, username string) (*model.AdminUser, error)
	TouchLastLogin(ctx context.Context, tx Tx, id string, at time.Time) error
	Count(ctx context.Context, tx Tx) (int, error)
}

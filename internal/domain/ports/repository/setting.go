package repository

import (
	"context"

	"wifi-voucher-portal/internal/domain/model"
)

type SettingRepository interface {
	ListAll(ctx context.Context, tx Tx) ([]*model.Setting, error)
	Get(ctx context.Context, tx Tx, key string) (*model.Setting, error)
	// Upsert writes every entry; the last writer wins per key.
	Upsert(ctx context.Context, tx Tx, entries map[string]string, updatedBy *string) error
}

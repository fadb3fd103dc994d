package repository

import (
	"context"

	"wifi-voucher-portal/internal/domain/model"
)

type AuditLogRepository interface {
	Save(ctx context.Context, tx Tx, l *model.AuditLog) error
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.AuditLog, error)
}

package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
	"wifi-voucher-portal/internal/infra/logging"
)

// Audit tables.
const (
	tablePackages     = "packages"
	tableVouchers     = "vouchers"
	tableTransactions = "transactions"
	tableSettings     = "system_settings"
	tableAdminUsers   = "admin_users"
)

func newAuditLog(actor model.Actor, action, table, recordID string, oldV, newV map[string]any) *model.AuditLog {
	l := &model.AuditLog{
		AdminID:   actor.AdminID,
		Actor:     actor.Name,
		Action:    action,
		TableName: table,
		OldValues: oldV,
		NewValues: newV,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		CreatedAt: time.Now(),
	}
	if recordID != "" {
		l.RecordID = &recordID
	}
	return l
}

var _ AuditUseCase = (*auditUC)(nil)

type AuditUseCase interface {
	Recent(ctx context.Context, limit int) ([]*model.AuditLog, error)
}

type auditUC struct {
	logs repository.AuditLogRepository
	log  *zerolog.Logger
}

func NewAuditUseCase(logs repository.AuditLogRepository, logger *zerolog.Logger) *auditUC {
	return &auditUC{logs: logs, log: logger}
}

func (u *auditUC) Recent(ctx context.Context, limit int) ([]*model.AuditLog, error) {
	defer logging.TraceDuration(u.log, "AuditUC.Recent")()
	return u.logs.ListRecent(ctx, repository.NoTX, limit)
}

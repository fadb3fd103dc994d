package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
)

var _ repository.AuditLogRepository = (*auditLogRepo)(nil)

type auditLogRepo struct{ pool *pgxpool.Pool }

func NewAuditLogRepo(pool *pgxpool.Pool) *auditLogRepo {
	return &auditLogRepo{pool: pool}
}

func marshalValues(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: audit values: %v", domain.ErrInvalidArgument, err)
	}
	return b, nil
}

// Save assigns a ULID when the entry has no id yet.
func (r *auditLogRepo) Save(ctx context.Context, tx repository.Tx, l *model.AuditLog) error {
	if l.ID == "" {
		l.ID = ulid.Make().String()
	}
	oldV, err := marshalValues(l.OldValues)
	if err != nil {
		return err
	}
	newV, err := marshalValues(l.NewValues)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO audit_logs (id, admin_user_id, actor, action, table_name, record_id, old_values, new_values, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`
	_, err = execSQL(ctx, r.pool, tx, q,
		l.ID, l.AdminID, l.Actor, l.Action, l.TableName, l.RecordID, oldV, newV, l.IPAddress, l.UserAgent, l.CreatedAt)
	return mapExecErr(err)
}

func (r *auditLogRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `
SELECT id, admin_user_id, actor, action, table_name, record_id, old_values, new_values, ip_address, user_agent, created_at
  FROM audit_logs
 ORDER BY created_at DESC, id DESC
 LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := make([]*model.AuditLog, 0)
	for rows.Next() {
		var (
			l          model.AuditLog
			oldV, newV []byte
		)
		if err := rows.Scan(&l.ID, &l.AdminID, &l.Actor, &l.Action, &l.TableName, &l.RecordID, &oldV, &newV,
			&l.IPAddress, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, mapScanErr(err)
		}
		if len(oldV) > 0 {
			_ = json.Unmarshal(oldV, &l.OldValues)
		}
		if len(newV) > 0 {
			_ = json.Unmarshal(newV, &l.NewValues)
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

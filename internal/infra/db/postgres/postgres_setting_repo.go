package postgres

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v4/pgxpool"

	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
)

var _ repository.SettingRepository = (*settingRepo)(nil)

type settingRepo struct{ pool *pgxpool.Pool }

func NewSettingRepo(pool *pgxpool.Pool) *settingRepo {
	return &settingRepo{pool: pool}
}

func (r *settingRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Setting, error) {
	const q = `SELECT setting_key, setting_value, description, updated_by, updated_at FROM system_settings ORDER BY setting_key;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := make([]*model.Setting, 0)
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedBy, &s.UpdatedAt); err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *settingRepo) Get(ctx context.Context, tx repository.Tx, key string) (*model.Setting, error) {
	const q = `SELECT setting_key, setting_value, description, updated_by, updated_at FROM system_settings WHERE setting_key = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, key)
	if err != nil {
		return nil, err
	}
	var s model.Setting
	if err := row.Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedBy, &s.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return &s, nil
}

func (r *settingRepo) Upsert(ctx context.Context, tx repository.Tx, entries map[string]string, updatedBy *string) error {
	const q = `
INSERT INTO system_settings (setting_key, setting_value, updated_by, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (setting_key) DO UPDATE
  SET setting_value = EXCLUDED.setting_value,
      updated_by    = EXCLUDED.updated_by,
      updated_at    = EXCLUDED.updated_at;`

	// stable order keeps concurrent batches from deadlocking on row locks
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := execSQL(ctx, r.pool, tx, q, k, entries[k], updatedBy); err != nil {
			return mapExecErr(err)
		}
	}
	return nil
}

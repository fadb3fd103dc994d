package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PackageRepository = (*PostgresPackageRepo)(nil)

type PostgresPackageRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPackageRepo(pool *pgxpool.Pool) *PostgresPackageRepo {
	return &PostgresPackageRepo{pool: pool}
}

const packageColumns = `id, package_name, description, data_limit_mb, speed_limit_kbps, validity_hours, price, currency, is_active, created_by, created_at, updated_at`

func scanPackage(row pgx.Row) (*model.Package, error) {
	var p model.Package
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.DataLimitMB, &p.SpeedLimitKbps, &p.ValidityHours,
		&p.Price, &p.Currency, &p.IsActive, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return &p, nil
}

func (r *PostgresPackageRepo) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	const q = `
INSERT INTO packages (id, package_name, description, data_limit_mb, speed_limit_kbps, validity_hours, price, currency, is_active, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE
  SET package_name     = EXCLUDED.package_name,
      description      = EXCLUDED.description,
      data_limit_mb    = EXCLUDED.data_limit_mb,
      speed_limit_kbps = EXCLUDED.speed_limit_kbps,
      validity_hours   = EXCLUDED.validity_hours,
      price            = EXCLUDED.price,
      currency         = EXCLUDED.currency,
      is_active        = EXCLUDED.is_active,
      updated_at       = EXCLUDED.updated_at;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Name, p.Description, p.DataLimitMB, p.SpeedLimitKbps, p.ValidityHours,
		p.Price, p.Currency, p.IsActive, p.CreatedBy, p.CreatedAt, p.UpdatedAt,
	)
	return mapExecErr(err)
}

func (r *PostgresPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	q := `SELECT ` + packageColumns + ` FROM packages WHERE id = $1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPackage(row)
}

func (r *PostgresPackageRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	return r.list(ctx, tx, `SELECT `+packageColumns+` FROM packages WHERE is_active ORDER BY price ASC, package_name ASC;`)
}

func (r *PostgresPackageRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	return r.list(ctx, tx, `SELECT `+packageColumns+` FROM packages ORDER BY is_active DESC, price ASC, package_name ASC;`)
}

func (r *PostgresPackageRepo) list(ctx context.Context, tx repository.Tx, q string) ([]*model.Package, error) {
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := make([]*model.Package, 0)
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *PostgresPackageRepo) CountVouchers(ctx context.Context, tx repository.Tx, id string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(1) FROM vouchers WHERE package_id = $1;`, id)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapScanErr(err)
	}
	return n, nil
}

func (r *PostgresPackageRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	cnt, err := r.CountVouchers(ctx, tx, id)
	if err != nil {
		return err
	}
	if cnt > 0 {
		return fmt.Errorf("%w: package %s is referenced by %d vouchers", domain.ErrConflict, id, cnt)
	}

	// The voucher FK still guards a racing insert. Transactions keep their
	// row with package_id set to NULL.
	ct, err := execSQL(ctx, r.pool, tx, `DELETE FROM packages WHERE id = $1;`, id)
	if err != nil {
		return mapExecErr(err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

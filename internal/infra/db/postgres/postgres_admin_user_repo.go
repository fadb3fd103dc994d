package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
)

var _ repository.AdminUserRepository = (*PostgresAdminUserRepo)(nil)

type PostgresAdminUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAdminUserRepo(pool *pgxpool.Pool) *PostgresAdminUserRepo {
	return &PostgresAdminUserRepo{pool: pool}
}

const adminColumns = `id, username, email, password_hash, full_name, role, is_active, last_login, created_at, updated_at`

func scanAdmin(row pgx.Row) (*model.AdminUser, error) {
	var u model.AdminUser
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive,
		&u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return &u, nil
}

func (r *PostgresAdminUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.AdminUser) error {
	const q = `
INSERT INTO admin_users (id, username, email, password_hash, full_name, role, is_active, last_login, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
  email = $3, password_hash = $4, full_name = $5, role = $6, is_active = $7, updated_at = $10;`
	_, err := execSQL(ctx, r.pool, tx, q,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FullName, u.Role, u.IsActive, u.LastLogin, u.CreatedAt, u.UpdatedAt)
	return mapExecErr(err)
}

func (r *PostgresAdminUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AdminUser, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+adminColumns+` FROM admin_users WHERE id = $1;`, id)
	if err != nil {
		return nil, err
	}
	return scanAdmin(row)
}

func (r *PostgresAdminUserRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.AdminUser, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+adminColumns+` FROM admin_users WHERE username = $1;`, username)
	if err != nil {
		return nil, err
	}
	return scanAdmin(row)
}

func (r *PostgresAdminUserRepo) TouchLastLogin(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	ct, err := execSQL(ctx, r.pool, tx, `UPDATE admin_users SET last_login = $2 WHERE id = $1;`, id, at)
	if err != nil {
		return mapExecErr(err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresAdminUserRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(1) FROM admin_users;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapScanErr(err)
	}
	return n, nil
}

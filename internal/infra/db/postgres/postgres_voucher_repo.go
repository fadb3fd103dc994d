package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
)

var _ repository.VoucherRepository = (*voucherRepo)(nil)

type voucherRepo struct{ pool *pgxpool.Pool }

func NewVoucherRepo(pool *pgxpool.Pool) *voucherRepo {
	return &voucherRepo{pool: pool}
}

const (
	voucherListDefault = 500
	voucherListMax     = 1000
)

const voucherSelect = `
SELECT v.id, v.voucher_code, v.package_id, p.package_name, v.status, v.purchase_reference, v.phone_number,
       v.payment_provider, v.amount_paid, v.purchased_at, v.activated_at, v.expires_at, v.mac_address,
       v.gateway_username, v.created_by, v.created_at
  FROM vouchers v
  JOIN packages p ON p.id = v.package_id`

func scanVoucher(row pgx.Row) (*model.Voucher, error) {
	var v model.Voucher
	if err := row.Scan(&v.ID, &v.Code, &v.PackageID, &v.PackageName, &v.Status, &v.PurchaseReference, &v.PhoneNumber,
		&v.PaymentProvider, &v.AmountPaid, &v.PurchasedAt, &v.ActivatedAt, &v.ExpiresAt, &v.DeviceID,
		&v.GatewayUsername, &v.CreatedBy, &v.CreatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return &v, nil
}

func (r *voucherRepo) Create(ctx context.Context, tx repository.Tx, v *model.Voucher) (bool, error) {
	const q = `
INSERT INTO vouchers (id, voucher_code, package_id, status, purchase_reference, phone_number, payment_provider,
                      amount_paid, purchased_at, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT DO NOTHING;`
	ct, err := execSQL(ctx, r.pool, tx, q,
		v.ID, v.Code, v.PackageID, v.Status, v.PurchaseReference, v.PhoneNumber, v.PaymentProvider,
		v.AmountPaid, v.PurchasedAt, v.CreatedBy, v.CreatedAt,
	)
	if err != nil {
		return false, mapExecErr(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *voucherRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg any) (*model.Voucher, error) {
	q := voucherSelect + " WHERE " + where
	if inTx(tx) {
		q += " FOR UPDATE OF v"
	}
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	return scanVoucher(row)
}

func (r *voucherRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Voucher, error) {
	return r.findOne(ctx, tx, "v.id = $1", id)
}

func (r *voucherRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Voucher, error) {
	return r.findOne(ctx, tx, "v.voucher_code = $1", code)
}

func (r *voucherRepo) FindByPurchaseReference(ctx context.Context, tx repository.Tx, ref string) (*model.Voucher, error) {
	return r.findOne(ctx, tx, "v.purchase_reference = $1", ref)
}

func (r *voucherRepo) List(ctx context.Context, tx repository.Tx, f model.VoucherFilter, now time.Time) ([]*model.Voucher, error) {
	var (
		conds []string
		args  []any
	)
	// Status matches the effective status at now, the same way Stats counts.
	switch f.Status {
	case "":
	case model.VoucherStatusActivated:
		args = append(args, now)
		conds = append(conds, fmt.Sprintf("(v.status = 'activated' AND (v.expires_at IS NULL OR v.expires_at > $%d))", len(args)))
	case model.VoucherStatusExpired:
		args = append(args, now)
		conds = append(conds, fmt.Sprintf("(v.status = 'expired' OR (v.status = 'activated' AND v.expires_at <= $%d))", len(args)))
	default:
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("v.status = $%d", len(args)))
	}
	if f.PackageID != "" {
		args = append(args, f.PackageID)
		conds = append(conds, fmt.Sprintf("v.package_id = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, fmt.Sprintf("(v.voucher_code ILIKE $%d OR v.phone_number ILIKE $%d)", len(args), len(args)))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = voucherListDefault
	}
	if limit > voucherListMax {
		limit = voucherListMax
	}

	q := voucherSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY v.created_at DESC LIMIT $%d;", len(args))

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := make([]*model.Voucher, 0)
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

// Stats counts by effective status: activated rows past expiry count as expired.
func (r *voucherRepo) Stats(ctx context.Context, tx repository.Tx, now time.Time) (model.VoucherStats, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'available'),
       COUNT(*) FILTER (WHERE status = 'sold'),
       COUNT(*) FILTER (WHERE status = 'activated' AND (expires_at IS NULL OR expires_at > $1)),
       COUNT(*) FILTER (WHERE status = 'expired' OR (status = 'activated' AND expires_at <= $1)),
       COUNT(*) FILTER (WHERE status = 'revoked')
  FROM vouchers;`
	var s model.VoucherStats
	row, err := pickRow(ctx, r.pool, tx, q, now)
	if err != nil {
		return s, err
	}
	if err := row.Scan(&s.Total, &s.Available, &s.Sold, &s.Activated, &s.Expired, &s.Revoked); err != nil {
		return model.VoucherStats{}, mapScanErr(err)
	}
	return s, nil
}

func (r *voucherRepo) ListActiveSessions(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.ActiveSession, error) {
	const q = `
SELECT v.voucher_code, v.phone_number, v.gateway_username, p.package_name, p.data_limit_mb, v.activated_at, v.expires_at
  FROM vouchers v
  JOIN packages p ON p.id = v.package_id
 WHERE v.status = 'activated' AND v.expires_at > $1
 ORDER BY v.activated_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, now)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := make([]*model.ActiveSession, 0)
	for rows.Next() {
		var s model.ActiveSession
		if err := rows.Scan(&s.Code, &s.PhoneNumber, &s.GatewayUsername, &s.PackageName, &s.DataLimitMB, &s.ActivatedAt, &s.ExpiresAt); err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *voucherRepo) MarkActivated(ctx context.Context, tx repository.Tx, id string, activatedAt, expiresAt time.Time, deviceID *string, gatewayUsername string) (bool, error) {
	const q = `
UPDATE vouchers
   SET status = 'activated', activated_at = $2, expires_at = $3,
       mac_address = COALESCE($4, mac_address), gateway_username = $5
 WHERE id = $1 AND status = 'sold';`
	ct, err := execSQL(ctx, r.pool, tx, q, id, activatedAt, expiresAt, deviceID, gatewayUsername)
	if err != nil {
		return false, mapExecErr(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *voucherRepo) RevokeIfActivated(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	const q = `
UPDATE vouchers SET status = 'revoked'
 WHERE id = $1 AND status = 'activated' AND (expires_at IS NULL OR expires_at > $2);`
	ct, err := execSQL(ctx, r.pool, tx, q, id, now)
	if err != nil {
		return false, mapExecErr(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *voucherRepo) ExpireActivated(ctx context.Context, tx repository.Tx, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}
	const q = `
UPDATE vouchers SET status = 'expired'
 WHERE status = 'activated'
   AND id IN (SELECT id FROM vouchers
               WHERE status = 'activated' AND expires_at <= $1
               ORDER BY expires_at
               LIMIT $2
               FOR UPDATE SKIP LOCKED);`
	ct, err := execSQL(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return 0, mapExecErr(err)
	}
	return int(ct.RowsAffected()), nil
}

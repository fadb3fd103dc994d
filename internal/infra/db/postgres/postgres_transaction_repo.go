package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionSelect = `
SELECT t.id, t.transaction_reference, COALESCE(t.package_id::text, ''), t.package_name, t.voucher_id, v.voucher_code, t.phone_number,
       t.amount, t.currency, t.payment_provider, t.status, t.provider_transaction_id, t.callback_data,
       t.callback_received_at, t.error_message, t.created_at, t.updated_at
  FROM transactions t
  LEFT JOIN vouchers v ON v.id = t.voucher_id`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t       model.Transaction
		payload []byte
	)
	if err := row.Scan(&t.ID, &t.Reference, &t.PackageID, &t.PackageName, &t.VoucherID, &t.VoucherCode, &t.PhoneNumber,
		&t.Amount, &t.Currency, &t.PaymentProvider, &t.Status, &t.ProviderTransactionID, &payload,
		&t.CallbackReceivedAt, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	if len(payload) > 0 {
		t.CallbackPayload = payload
	}
	return &t, nil
}

func (r *transactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (id, transaction_reference, package_id, package_name, phone_number, amount, currency,
                          payment_provider, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`
	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.Reference, t.PackageID, t.PackageName, t.PhoneNumber, t.Amount, t.Currency, t.PaymentProvider, t.Status, t.CreatedAt, t.UpdatedAt,
	)
	return mapExecErr(err)
}

func (r *transactionRepo) FindByReference(ctx context.Context, tx repository.Tx, ref string) (*model.Transaction, error) {
	q := transactionSelect + " WHERE t.transaction_reference = $1"
	if inTx(tx) {
		q += " FOR UPDATE OF t"
	}
	row, err := pickRow(ctx, r.pool, tx, q, ref)
	if err != nil {
		return nil, err
	}
	return scanTransaction(row)
}

func (r *transactionRepo) ListLatest(ctx context.Context, tx repository.Tx, limit int) ([]*model.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	rows, err := queryRows(ctx, r.pool, tx, transactionSelect+" ORDER BY t.created_at DESC LIMIT $1;", limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := make([]*model.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *transactionRepo) ResolveIfPending(ctx context.Context, tx repository.Tx, id string, res model.CallbackResult) (bool, error) {
	const q = `
UPDATE transactions
   SET status = $2,
       provider_transaction_id = COALESCE($3, provider_transaction_id),
       callback_data = $4,
       callback_received_at = $5,
       error_message = $6,
       updated_at = $5
 WHERE id = $1 AND status = 'pending';`
	var payload []byte
	if len(res.Payload) > 0 {
		payload = []byte(res.Payload)
	}
	ct, err := execSQL(ctx, r.pool, tx, q, id, res.Status, res.ProviderTransactionID, payload, res.ReceivedAt, res.ErrorMessage)
	if err != nil {
		return false, mapExecErr(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *transactionRepo) LinkVoucher(ctx context.Context, tx repository.Tx, id, voucherID string) (bool, error) {
	ct, err := execSQL(ctx, r.pool, tx,
		`UPDATE transactions SET voucher_id = $2, updated_at = NOW() WHERE id = $1 AND voucher_id IS NULL;`, id, voucherID)
	if err != nil {
		return false, mapExecErr(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *transactionRepo) ReverseIfCompleted(ctx context.Context, tx repository.Tx, id string, reason *string) (bool, error) {
	const q = `
UPDATE transactions
   SET status = 'reversed', error_message = COALESCE($2, error_message), updated_at = NOW()
 WHERE id = $1 AND status = 'completed';`
	ct, err := execSQL(ctx, r.pool, tx, q, id, reason)
	if err != nil {
		return false, mapExecErr(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *transactionRepo) FailPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, reason string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
UPDATE transactions
   SET status = 'failed', error_message = $2, updated_at = NOW()
 WHERE status = 'pending'
   AND id IN (SELECT id FROM transactions
               WHERE status = 'pending' AND created_at < $1
               ORDER BY created_at
               LIMIT $3
               FOR UPDATE SKIP LOCKED)
RETURNING transaction_reference;`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff, reason, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, mapScanErr(err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return refs, nil
}

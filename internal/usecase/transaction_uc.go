package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/adapter"
	"wifi-voucher-portal/internal/domain/ports/repository"
	"wifi-voucher-portal/internal/infra/logging"
	"wifi-voucher-portal/internal/infra/metrics"
)

// Compile-time check
var _ TransactionUseCase = (*transactionUC)(nil)

// Tanzanian mobile numbers: +255 or 0, then 6 or 7, then 8 digits.
var phoneRe = regexp.MustCompile(`^(\+255|0)[67]\d{8}$`)

const (
	maxReferenceDraws = 3
	// CallbackStatusSuccess is the only provider status that completes a
	// transaction.
	CallbackStatusSuccess = "success"
	StaleTransactionError = "timed out awaiting provider callback"
	// PackageUnavailableError fails a paid transaction whose package was
	// deleted while the payment was pending.
	PackageUnavailableError = "package no longer available"

	// Metric-only outcomes of a success callback that issued no voucher.
	TransactionStatusLateSuccess   = "late_success"
	TransactionStatusUnfulfillable = "unfulfillable"
)

type InitiateRequest struct {
	PackageID   string                `json:"package_id"`
	PhoneNumber string                `json:"phone_number"`
	Provider    model.PaymentProvider `json:"payment_provider"`
}

type CallbackRequest struct {
	Reference             string
	Status                string
	ProviderTransactionID *string
	Payload               json.RawMessage
}

type TransactionUseCase interface {
	Initiate(ctx context.Context, req InitiateRequest, actor model.Actor) (*model.InitiatedPayment, error)
	// ReconcileCallback applies a provider result exactly once per
	// reference. Replays are reported, not rejected.
	ReconcileCallback(ctx context.Context, req CallbackRequest) (*model.Fulfillment, error)
	Reverse(ctx context.Context, reference string, reason *string, actor model.Actor) (*model.Transaction, error)
	List(ctx context.Context, limit int) ([]*model.Transaction, error)
	// FailStale fails pending transactions older than olderThan.
	FailStale(ctx context.Context, olderThan time.Duration, limit int) ([]string, error)
}

type TransactionOptions struct {
	DefaultPrefix string
	Dev           bool
}

type transactionUC struct {
	transactions repository.TransactionRepository
	packages     repository.PackageRepository
	audit        repository.AuditLogRepository
	tm           repository.TransactionManager
	settings     adapter.SettingsReader
	vouchers     VoucherUseCase
	opts         TransactionOptions
	log          *zerolog.Logger
}

func NewTransactionUseCase(
	transactions repository.TransactionRepository,
	packages repository.PackageRepository,
	audit repository.AuditLogRepository,
	tm repository.TransactionManager,
	settings adapter.SettingsReader,
	vouchers VoucherUseCase,
	opts TransactionOptions,
	logger *zerolog.Logger,
) *transactionUC {
	opts.DefaultPrefix = NormalizePrefix(opts.DefaultPrefix)
	return &transactionUC{
		transactions: transactions,
		packages:     packages,
		audit:        audit,
		tm:           tm,
		settings:     settings,
		vouchers:     vouchers,
		opts:         opts,
		log:          logger,
	}
}

// ValidPhoneNumber reports whether phone is an accepted mobile number.
func ValidPhoneNumber(phone string) bool {
	return phoneRe.MatchString(phone)
}

func (u *transactionUC) Initiate(ctx context.Context, req InitiateRequest, actor model.Actor) (*model.InitiatedPayment, error) {
	defer logging.TraceDuration(u.log, "TransactionUC.Initiate")()

	phone := strings.TrimSpace(req.PhoneNumber)
	if !ValidPhoneNumber(phone) {
		return nil, fmt.Errorf("%w: invalid phone number", domain.ErrInvalidArgument)
	}
	provider := model.PaymentProvider(strings.ToLower(strings.TrimSpace(string(req.Provider))))
	if !provider.Valid() {
		return nil, fmt.Errorf("%w: unsupported payment provider %q", domain.ErrInvalidArgument, req.Provider)
	}
	if err := requireID("package_id", req.PackageID); err != nil {
		return nil, err
	}
	snap, err := u.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.ProviderEnabled(provider) {
		return nil, fmt.Errorf("%w: payment provider %s is disabled", domain.ErrInvalidArgument, provider)
	}

	p, err := u.packages.FindByID(ctx, repository.NoTX, req.PackageID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: package is not available", domain.ErrNotFound)
	}

	var t *model.Transaction
	for draw := 0; draw < maxReferenceDraws; draw++ {
		now := time.Now()
		ref, err := GenerateTransactionReference(now)
		if err != nil {
			return nil, err
		}
		t = &model.Transaction{
			ID:              newID(),
			Reference:       ref,
			PackageID:       p.ID,
			PackageName:     p.Name,
			PhoneNumber:     phone,
			Amount:          p.Price,
			Currency:        p.Currency,
			PaymentProvider: provider,
			Status:          model.TransactionStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := u.transactions.Create(ctx, tx, t); err != nil {
				return err
			}
			return u.audit.Save(ctx, tx, newAuditLog(actor, model.AuditInitiatePayment, tableTransactions, t.ID, nil, map[string]any{
				"transaction_reference": t.Reference,
				"package_id":            t.PackageID,
				"amount":                t.Amount.String(),
				"currency":              t.Currency,
				"payment_provider":      string(t.PaymentProvider),
			}))
		})
		if errors.Is(err, domain.ErrAlreadyExists) {
			u.log.Debug().Int("draw", draw+1).Msg("transaction reference collision, redrawing")
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.IncTransaction(string(model.TransactionStatusPending))
		logging.With(ctx, u.log).Info().
			Str("reference", t.Reference).
			Str("phone", logging.Redact(phone, u.opts.Dev)).
			Str("provider", string(provider)).
			Msg("transaction initiated")
		return &model.InitiatedPayment{
			Reference:       t.Reference,
			Amount:          t.Amount,
			Currency:        t.Currency,
			PaymentProvider: t.PaymentProvider,
			PackageName:     p.Name,
			PhoneNumber:     phone,
		}, nil
	}
	return nil, fmt.Errorf("%w: no unique transaction reference after %d draws", domain.ErrOperationFailed, maxReferenceDraws)
}

func (u *transactionUC) ReconcileCallback(ctx context.Context, req CallbackRequest) (*model.Fulfillment, error) {
	defer logging.TraceDuration(u.log, "TransactionUC.ReconcileCallback")()
	log := logging.With(ctx, u.log)

	ref := strings.TrimSpace(req.Reference)
	if ref == "" {
		return nil, fmt.Errorf("%w: transaction_reference is required", domain.ErrInvalidArgument)
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		return nil, fmt.Errorf("%w: status is required", domain.ErrInvalidArgument)
	}
	payload := req.Payload
	if len(payload) > 0 && !json.Valid(payload) {
		payload = nil
	}

	snap, err := u.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	prefix := NormalizePrefix(snap.VoucherPrefix(u.opts.DefaultPrefix))

	var (
		out        *model.Fulfillment
		completed  *model.Transaction
		lateResult bool
		orphaned   bool
	)
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		lateResult, orphaned = false, false
		t, err := u.transactions.FindByReference(ctx, tx, ref)
		if err != nil {
			return err
		}
		if t.Status != model.TransactionStatusPending {
			out = &model.Fulfillment{Reference: t.Reference, Status: t.Status, VoucherCode: t.VoucherCode, Replayed: true}
			lateResult = status == CallbackStatusSuccess && t.Status == model.TransactionStatusFailed
			return nil
		}

		res := model.CallbackResult{
			ProviderTransactionID: trimmedOrNil(req.ProviderTransactionID),
			Payload:               payload,
			ReceivedAt:            time.Now(),
		}
		newV := map[string]any{"provider_status": status}
		if res.ProviderTransactionID != nil {
			newV["provider_transaction_id"] = *res.ProviderTransactionID
		}

		var p *model.Package
		if status == CallbackStatusSuccess {
			p, err = u.packageOf(ctx, tx, t)
			if err != nil {
				return err
			}
			orphaned = p == nil
		}

		switch {
		case status == CallbackStatusSuccess && !orphaned:
			res.Status = model.TransactionStatusCompleted
		case orphaned:
			res.Status = model.TransactionStatusFailed
			msg := PackageUnavailableError
			res.ErrorMessage = &msg
			newV["error_message"] = msg
		default:
			res.Status = model.TransactionStatusFailed
			msg := providerMessage(payload, status)
			res.ErrorMessage = &msg
			newV["error_message"] = msg
		}
		newV["status"] = string(res.Status)

		ok, err := u.transactions.ResolveIfPending(ctx, tx, t.ID, res)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: transaction %s is no longer pending", domain.ErrInvalidState, ref)
		}
		out = &model.Fulfillment{Reference: t.Reference, Status: res.Status}

		if res.Status == model.TransactionStatusCompleted {
			v, err := u.vouchers.FulfillFromPayment(ctx, tx, t, p, prefix)
			if err != nil {
				return err
			}
			if _, err := u.transactions.LinkVoucher(ctx, tx, t.ID, v.ID); err != nil {
				return err
			}
			code := v.Code
			out.VoucherCode = &code
			newV["voucher_id"] = v.ID
			completed = t
		}

		return u.audit.Save(ctx, tx, newAuditLog(model.ActorPaymentProvider, model.AuditPaymentCallback, tableTransactions, t.ID,
			map[string]any{"status": string(model.TransactionStatusPending)}, newV))
	})
	if err != nil {
		return nil, err
	}

	if out.Replayed {
		if lateResult {
			// Paid after the ledger gave up on it: needs a manual voucher or refund.
			metrics.IncTransaction(TransactionStatusLateSuccess)
			log.Warn().Str("reference", ref).Msg("success callback for a transaction already failed, no voucher issued")
			return out, nil
		}
		log.Info().Str("reference", ref).Str("status", string(out.Status)).Msg("callback replay ignored")
		return out, nil
	}
	metrics.IncTransaction(string(out.Status))
	if orphaned {
		metrics.IncTransaction(TransactionStatusUnfulfillable)
		log.Warn().Str("reference", ref).Msg("success callback for a deleted package, no voucher issued")
		return out, nil
	}
	if completed != nil {
		metrics.AddTransactionRevenue(completed.Currency, completed.Amount)
	}
	log.Info().Str("reference", ref).Str("status", string(out.Status)).Msg("callback reconciled")
	return out, nil
}

// packageOf loads the package a transaction was sold under. It returns nil
// when the package has since been deleted.
func (u *transactionUC) packageOf(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.Package, error) {
	if t.PackageID == "" {
		return nil, nil
	}
	p, err := u.packages.FindByID(ctx, tx, t.PackageID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// providerMessage pulls a human-readable failure reason from the payload.
func providerMessage(payload json.RawMessage, status string) string {
	if len(payload) > 0 {
		var body map[string]any
		if err := json.Unmarshal(payload, &body); err == nil {
			for _, k := range []string{"message", "error"} {
				if s, ok := body[k].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return "payment " + status
}

func (u *transactionUC) Reverse(ctx context.Context, reference string, reason *string, actor model.Actor) (*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "TransactionUC.Reverse")()

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: transaction_reference is required", domain.ErrInvalidArgument)
	}
	reason = trimmedOrNil(reason)

	var t *model.Transaction
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		t, err = u.transactions.FindByReference(ctx, tx, reference)
		if err != nil {
			return err
		}
		ok, err := u.transactions.ReverseIfCompleted(ctx, tx, t.ID, reason)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: only completed transactions can be reversed (transaction is %s)", domain.ErrInvalidState, t.Status)
		}
		newV := map[string]any{"status": string(model.TransactionStatusReversed)}
		if reason != nil {
			newV["reason"] = *reason
		}
		return u.audit.Save(ctx, tx, newAuditLog(actor, model.AuditReverseTransaction, tableTransactions, t.ID,
			map[string]any{"status": string(t.Status)}, newV))
	})
	if err != nil {
		return nil, err
	}

	t.Status = model.TransactionStatusReversed
	if reason != nil {
		t.ErrorMessage = reason
	}
	metrics.IncTransaction(string(model.TransactionStatusReversed))
	logging.With(ctx, u.log).Info().Str("reference", reference).Msg("transaction reversed")
	return t, nil
}

func (u *transactionUC) List(ctx context.Context, limit int) ([]*model.Transaction, error) {
	defer logging.TraceDuration(u.log, "TransactionUC.List")()
	return u.transactions.ListLatest(ctx, repository.NoTX, limit)
}

func (u *transactionUC) FailStale(ctx context.Context, olderThan time.Duration, limit int) ([]string, error) {
	defer logging.TraceDuration(u.log, "TransactionUC.FailStale")()

	if olderThan <= 0 {
		return nil, nil
	}
	var refs []string
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		refs, err = u.transactions.FailPendingOlderThan(ctx, tx, time.Now().Add(-olderThan), StaleTransactionError, limit)
		if err != nil || len(refs) == 0 {
			return err
		}
		return u.audit.Save(ctx, tx, newAuditLog(model.ActorSystem, model.AuditExpireTransactions, tableTransactions, "", nil, map[string]any{
			"references": refs,
			"reason":     StaleTransactionError,
		}))
	})
	if err != nil {
		return nil, err
	}
	for range refs {
		metrics.IncTransaction(string(model.TransactionStatusFailed))
	}
	return refs, nil
}

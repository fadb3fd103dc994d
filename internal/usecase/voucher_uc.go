package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/adapter"
	"wifi-voucher-portal/internal/domain/ports/repository"
	"wifi-voucher-portal/internal/infra/logging"
	"wifi-voucher-portal/internal/infra/metrics"
)

// Compile-time check
var _ VoucherUseCase = (*voucherUC)(nil)

const (
	MaxGenerateQuantity = 100
	maxCodeDraws        = 5
	activationLockTTL   = 30 * time.Second
)

func activationLockKey(code string) string {
	return "lock:voucher:activate:" + code
}

type VoucherUseCase interface {
	// Generate mints quantity available vouchers for a package.
	Generate(ctx context.Context, packageID string, quantity int, actor model.Actor) ([]*model.Voucher, error)
	// FulfillFromPayment mints the sold voucher for a completed transaction
	// inside the caller's transaction. It is idempotent per reference.
	FulfillFromPayment(ctx context.Context, tx repository.Tx, t *model.Transaction, p *model.Package, prefix string) (*model.Voucher, error)
	// Activate provisions a sold voucher on the captive portal and marks it
	// activated.
	Activate(ctx context.Context, code string, deviceID *string) (*model.Voucher, error)
	// Revoke moves an activated voucher to revoked.
	Revoke(ctx context.Context, id string, actor model.Actor) (*model.Voucher, error)
	List(ctx context.Context, f model.VoucherFilter) ([]*model.Voucher, error)
	Stats(ctx context.Context) (model.VoucherStats, error)
	CheckByCode(ctx context.Context, code string) (*model.VoucherCheck, error)
	ActiveSessions(ctx context.Context) ([]*model.ActiveSession, error)
	// ExpireDue stores the expired status for at most limit vouchers past
	// their expiry.
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// VoucherOptions holds the static fallbacks used when a setting is unset.
type VoucherOptions struct {
	DefaultPrefix  string
	Gateway        adapter.Endpoint
	GatewayTimeout time.Duration
	Dev            bool
}

type voucherUC struct {
	vouchers repository.VoucherRepository
	packages repository.PackageRepository
	audit    repository.AuditLogRepository
	tm       repository.TransactionManager
	settings adapter.SettingsReader
	gateway  adapter.CaptivePortalGateway
	locker   Locker
	tasks    TaskSubmitter
	opts     VoucherOptions
	log      *zerolog.Logger
}

func NewVoucherUseCase(
	vouchers repository.VoucherRepository,
	packages repository.PackageRepository,
	audit repository.AuditLogRepository,
	tm repository.TransactionManager,
	settings adapter.SettingsReader,
	gateway adapter.CaptivePortalGateway,
	locker Locker,
	tasks TaskSubmitter,
	opts VoucherOptions,
	logger *zerolog.Logger,
) *voucherUC {
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 10 * time.Second
	}
	opts.DefaultPrefix = NormalizePrefix(opts.DefaultPrefix)
	return &voucherUC{
		vouchers: vouchers,
		packages: packages,
		audit:    audit,
		tm:       tm,
		settings: settings,
		gateway:  gateway,
		locker:   locker,
		tasks:    tasks,
		opts:     opts,
		log:      logger,
	}
}

func (u *voucherUC) Generate(ctx context.Context, packageID string, quantity int, actor model.Actor) ([]*model.Voucher, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.Generate")()

	if quantity < 1 || quantity > MaxGenerateQuantity {
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d", domain.ErrInvalidArgument, MaxGenerateQuantity)
	}
	if err := requireID("package_id", packageID); err != nil {
		return nil, err
	}
	snap, err := u.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	prefix := NormalizePrefix(snap.VoucherPrefix(u.opts.DefaultPrefix))

	out := make([]*model.Voucher, 0, quantity)
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.packages.FindByID(ctx, tx, packageID); err != nil {
			return err
		}
		now := time.Now()
		for i := 0; i < quantity; i++ {
			v := &model.Voucher{
				PackageID: packageID,
				Status:    model.VoucherStatusAvailable,
				CreatedBy: actor.AdminID,
				CreatedAt: now,
			}
			if err := u.insertWithFreshCode(ctx, tx, v, prefix); err != nil {
				return err
			}
			out = append(out, v)
		}
		return u.audit.Save(ctx, tx, newAuditLog(actor, model.AuditGenerateVouchers, tableVouchers, "", nil, map[string]any{
			"package_id": packageID,
			"quantity":   quantity,
		}))
	})
	if err != nil {
		return nil, err
	}

	metrics.AddVouchersGenerated("admin", len(out))
	logging.With(ctx, u.log).Info().Str("package_id", packageID).Int("quantity", len(out)).Msg("vouchers generated")
	return out, nil
}

// insertWithFreshCode draws codes until one inserts. v.ID is assigned here.
func (u *voucherUC) insertWithFreshCode(ctx context.Context, tx repository.Tx, v *model.Voucher, prefix string) error {
	for draw := 0; draw < maxCodeDraws; draw++ {
		code, err := GenerateVoucherCode(prefix)
		if err != nil {
			return err
		}
		v.ID = newID()
		v.Code = code
		ok, err := u.vouchers.Create(ctx, tx, v)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		u.log.Debug().Int("draw", draw+1).Msg("voucher code collision, redrawing")
	}
	return fmt.Errorf("%w: no unique voucher code after %d draws", domain.ErrOperationFailed, maxCodeDraws)
}

func (u *voucherUC) FulfillFromPayment(ctx context.Context, tx repository.Tx, t *model.Transaction, p *model.Package, prefix string) (*model.Voucher, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.FulfillFromPayment")()

	if existing, err := u.findByReference(ctx, tx, t.Reference); err != nil || existing != nil {
		return existing, err
	}

	now := time.Now()
	ref := t.Reference
	phone := t.PhoneNumber
	provider := string(t.PaymentProvider)
	v := &model.Voucher{
		PackageID:         p.ID,
		PackageName:       p.Name,
		Status:            model.VoucherStatusSold,
		PurchaseReference: &ref,
		PhoneNumber:       &phone,
		PaymentProvider:   &provider,
		AmountPaid:        decimal.NewNullDecimal(t.Amount),
		PurchasedAt:       &now,
		CreatedAt:         now,
	}
	for draw := 0; draw < maxCodeDraws; draw++ {
		code, err := GenerateVoucherCode(prefix)
		if err != nil {
			return nil, err
		}
		v.ID = newID()
		v.Code = code
		ok, err := u.vouchers.Create(ctx, tx, v)
		if err != nil {
			return nil, err
		}
		if ok {
			metrics.AddVouchersGenerated("payment", 1)
			return v, nil
		}
		// Either the code or the reference collided. A voucher for the
		// reference means another fulfillment won.
		if existing, err := u.findByReference(ctx, tx, ref); err != nil || existing != nil {
			return existing, err
		}
	}
	return nil, fmt.Errorf("%w: no unique voucher code after %d draws", domain.ErrOperationFailed, maxCodeDraws)
}

func (u *voucherUC) findByReference(ctx context.Context, tx repository.Tx, ref string) (*model.Voucher, error) {
	v, err := u.vouchers.FindByPurchaseReference(ctx, tx, ref)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (u *voucherUC) Activate(ctx context.Context, code string, deviceID *string) (*model.Voucher, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.Activate")()
	log := logging.With(ctx, u.log)

	code = NormalizeVoucherCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: voucher code is required", domain.ErrInvalidArgument)
	}
	if !ValidVoucherCode(code) {
		return nil, fmt.Errorf("%w: malformed voucher code", domain.ErrInvalidArgument)
	}
	deviceID = trimmedOrNil(deviceID)

	key := activationLockKey(code)
	token, err := u.locker.TryLock(ctx, key, activationLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn().Err(err).Msg("release activation lock")
		}
	}()

	v, err := u.vouchers.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if st := v.EffectiveStatus(now); st != model.VoucherStatusSold {
		metrics.IncVoucherActivation("rejected")
		return nil, fmt.Errorf("%w: voucher is %s", domain.ErrInvalidState, st)
	}
	p, err := u.packages.FindByID(ctx, repository.NoTX, v.PackageID)
	if err != nil {
		return nil, err
	}
	snap, err := u.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ep := resolveEndpoint(snap, u.opts.Gateway)

	activatedAt := now
	expiresAt := activatedAt.Add(p.Validity())
	req := adapter.ProvisionRequest{
		Endpoint:      ep,
		Username:      model.GatewayUsernameFor(code),
		Password:      code,
		ExpiresAt:     expiresAt,
		DownloadBytes: p.DataLimitBytes(),
		UploadBytes:   p.DataLimitBytes(),
	}
	if p.SpeedLimitKbps != nil {
		req.BandwidthKbps = *p.SpeedLimitKbps
	}

	gctx, cancel := context.WithTimeout(ctx, u.opts.GatewayTimeout)
	res, err := u.gateway.ProvisionUser(gctx, req)
	cancel()
	if err != nil {
		metrics.IncVoucherActivation("gateway_error")
		log.Error().Err(err).Str("code", logging.Redact(code, u.opts.Dev)).Msg("captive portal provisioning failed")
		if errors.Is(err, domain.ErrGatewayTimeout) || errors.Is(err, context.DeadlineExceeded) {
			// The gateway may have created the user before the deadline.
			u.removeGatewayUser(ep, req.Username, "compensate timed-out provisioning")
		}
		return nil, err
	}
	username := req.Username
	if res != nil && res.Username != "" {
		username = res.Username
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.vouchers.MarkActivated(ctx, tx, v.ID, activatedAt, expiresAt, deviceID, username)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: voucher is no longer sold", domain.ErrInvalidState)
		}
		return u.audit.Save(ctx, tx, newAuditLog(model.ActorPortal, model.AuditActivateVoucher, tableVouchers, v.ID,
			map[string]any{"status": string(model.VoucherStatusSold)},
			map[string]any{
				"status":           string(model.VoucherStatusActivated),
				"activated_at":     activatedAt,
				"expires_at":       expiresAt,
				"gateway_username": username,
			}))
	})
	if err != nil {
		metrics.IncVoucherActivation("store_error")
		u.removeGatewayUser(ep, username, "compensate failed activation")
		return nil, err
	}

	metrics.IncVoucherActivation("success")
	log.Info().Str("code", logging.Redact(code, u.opts.Dev)).Time("expires_at", expiresAt).Msg("voucher activated")

	v.Status = model.VoucherStatusActivated
	v.ActivatedAt = &activatedAt
	v.ExpiresAt = &expiresAt
	v.DeviceID = deviceID
	v.GatewayUsername = &username
	v.PackageName = p.Name
	return v, nil
}

// removeGatewayUser queues a best-effort de-provisioning call.
func (u *voucherUC) removeGatewayUser(ep adapter.Endpoint, username, reason string) {
	err := u.tasks.Submit(func(ctx context.Context) error {
		gctx, cancel := context.WithTimeout(ctx, u.opts.GatewayTimeout)
		defer cancel()
		if err := u.gateway.RemoveUser(gctx, ep, username); err != nil {
			return fmt.Errorf("%s: remove %s: %w", reason, username, err)
		}
		return nil
	})
	if err != nil {
		u.log.Error().Err(err).Str("username", username).Str("reason", reason).Msg("could not queue gateway removal")
	}
}

func (u *voucherUC) Revoke(ctx context.Context, id string, actor model.Actor) (*model.Voucher, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.Revoke")()

	if err := requireID("voucher_id", id); err != nil {
		return nil, err
	}

	var v *model.Voucher
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		v, err = u.vouchers.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		now := time.Now()
		ok, err := u.vouchers.RevokeIfActivated(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: only activated vouchers can be revoked (voucher is %s)", domain.ErrInvalidState, v.EffectiveStatus(now))
		}
		return u.audit.Save(ctx, tx, newAuditLog(actor, model.AuditRevokeVoucher, tableVouchers, id,
			map[string]any{"status": string(v.Status)},
			map[string]any{"status": string(model.VoucherStatusRevoked)}))
	})
	if err != nil {
		return nil, err
	}
	v.Status = model.VoucherStatusRevoked

	if v.GatewayUsername != nil && *v.GatewayUsername != "" {
		snap, err := u.settings.Snapshot(ctx)
		if err != nil {
			u.log.Warn().Err(err).Msg("settings unavailable, using configured gateway endpoint")
		}
		u.removeGatewayUser(resolveEndpoint(snap, u.opts.Gateway), *v.GatewayUsername, "revoke")
	}
	logging.With(ctx, u.log).Info().Str("voucher_id", id).Msg("voucher revoked")
	return v, nil
}

func (u *voucherUC) List(ctx context.Context, f model.VoucherFilter) ([]*model.Voucher, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.List")()

	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, f.Status)
	}
	if f.PackageID != "" {
		if err := requireID("package_id", f.PackageID); err != nil {
			return nil, err
		}
	}
	f.Search = strings.TrimSpace(f.Search)
	now := time.Now()
	items, err := u.vouchers.List(ctx, repository.NoTX, f, now)
	if err != nil {
		return nil, err
	}
	for _, v := range items {
		v.Status = v.EffectiveStatus(now)
	}
	return items, nil
}

func (u *voucherUC) Stats(ctx context.Context) (model.VoucherStats, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.Stats")()

	st, err := u.vouchers.Stats(ctx, repository.NoTX, time.Now())
	if err != nil {
		return model.VoucherStats{}, err
	}
	metrics.SetVouchersByStatus(st.ByStatus())
	return st, nil
}

func (u *voucherUC) CheckByCode(ctx context.Context, code string) (*model.VoucherCheck, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.CheckByCode")()

	code = NormalizeVoucherCode(code)
	if !ValidVoucherCode(code) {
		return nil, fmt.Errorf("%w: malformed voucher code", domain.ErrInvalidArgument)
	}
	v, err := u.vouchers.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		return nil, err
	}
	p, err := u.packages.FindByID(ctx, repository.NoTX, v.PackageID)
	if err != nil {
		return nil, err
	}
	return model.NewVoucherCheck(v, p, time.Now()), nil
}

func (u *voucherUC) ActiveSessions(ctx context.Context) ([]*model.ActiveSession, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.ActiveSessions")()

	items, err := u.vouchers.ListActiveSessions(ctx, repository.NoTX, time.Now())
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("active sessions unavailable")
		return []*model.ActiveSession{}, nil
	}
	for _, s := range items {
		if s.PhoneNumber != nil {
			redacted := logging.Redact(*s.PhoneNumber, u.opts.Dev)
			s.PhoneNumber = &redacted
		}
	}
	return items, nil
}

func (u *voucherUC) ExpireDue(ctx context.Context, limit int) (int, error) {
	defer logging.TraceDuration(u.log, "VoucherUC.ExpireDue")()

	n, err := u.vouchers.ExpireActivated(ctx, repository.NoTX, time.Now(), limit)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.IncVouchersExpired(n)
	}
	return n, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/adapter"
	"wifi-voucher-portal/internal/domain/ports/repository"
	"wifi-voucher-portal/internal/infra/logging"
)

// Compile-time checks
var (
	_ SettingsUseCase        = (*settingsUC)(nil)
	_ adapter.SettingsReader = (*settingsUC)(nil)
)

var settingKeyRe = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

type SettingsUseCase interface {
	// GetAll returns every setting with sensitive values masked.
	GetAll(ctx context.Context) (map[string]string, error)
	// Get returns the plain value of key.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetMany upserts entries in one transaction. Values equal to the
	// secret mask are skipped so a masked read can be written back as is.
	SetMany(ctx context.Context, entries map[string]string, actor model.Actor) error
	Snapshot(ctx context.Context) (model.Settings, error)
}

type settingsUC struct {
	settings repository.SettingRepository
	audit    repository.AuditLogRepository
	tm       repository.TransactionManager
	sealer   SecretCodec
	log      *zerolog.Logger
}

func NewSettingsUseCase(settings repository.SettingRepository, audit repository.AuditLogRepository, tm repository.TransactionManager, sealer SecretCodec, logger *zerolog.Logger) *settingsUC {
	return &settingsUC{settings: settings, audit: audit, tm: tm, sealer: sealer, log: logger}
}

func (u *settingsUC) Snapshot(ctx context.Context) (model.Settings, error) {
	defer logging.TraceDuration(u.log, "SettingsUC.Snapshot")()

	rows, err := u.settings.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	out := make(model.Settings, len(rows))
	for _, s := range rows {
		out[s.Key] = u.open(s.Key, s.Value)
	}
	return out, nil
}

func (u *settingsUC) GetAll(ctx context.Context) (map[string]string, error) {
	defer logging.TraceDuration(u.log, "SettingsUC.GetAll")()
	snap, err := u.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Masked(), nil
}

func (u *settingsUC) Get(ctx context.Context, key string) (string, bool, error) {
	defer logging.TraceDuration(u.log, "SettingsUC.Get")()

	s, err := u.settings.Get(ctx, repository.NoTX, key)
	if errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return u.open(s.Key, s.Value), true, nil
}

func (u *settingsUC) SetMany(ctx context.Context, entries map[string]string, actor model.Actor) error {
	defer logging.TraceDuration(u.log, "SettingsUC.SetMany")()

	if len(entries) == 0 {
		return fmt.Errorf("%w: no settings supplied", domain.ErrInvalidArgument)
	}

	submitted := make(model.Settings, len(entries))
	stored := make(map[string]string, len(entries))
	for k, v := range entries {
		k = strings.TrimSpace(k)
		if !settingKeyRe.MatchString(k) {
			return fmt.Errorf("%w: invalid setting key %q", domain.ErrInvalidArgument, k)
		}
		if model.SensitiveSettings[k] && v == model.SecretMask {
			continue
		}
		submitted[k] = v
		if model.SensitiveSettings[k] && v != "" {
			sealed, err := u.sealer.Seal(v)
			if err != nil {
				return fmt.Errorf("seal %s: %w", k, err)
			}
			v = sealed
		}
		stored[k] = v
	}
	if len(stored) == 0 {
		return nil
	}

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.settings.Upsert(ctx, tx, stored, actor.AdminID); err != nil {
			return err
		}
		newV := make(map[string]any, len(submitted))
		for k, v := range submitted.Masked() {
			newV[k] = v
		}
		return u.audit.Save(ctx, tx, newAuditLog(actor, model.AuditUpdateSettings, tableSettings, "", nil, newV))
	})
	if err != nil {
		return err
	}
	logging.With(ctx, u.log).Info().Int("keys", len(stored)).Msg("settings updated")
	return nil
}

// open returns the plain value of a stored setting. A sealed value that
// cannot be opened reads as empty, so the gateway falls back to config.
func (u *settingsUC) open(key, value string) string {
	if !model.SensitiveSettings[key] || value == "" {
		return value
	}
	plain, err := u.sealer.Open(value)
	if err != nil {
		u.log.Warn().Err(err).Str("key", key).Msg("could not open sealed setting")
		return ""
	}
	return plain
}

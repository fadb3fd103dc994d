package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
	"wifi-voucher-portal/internal/infra/logging"
	"wifi-voucher-portal/internal/infra/metrics"
)

// Compile-time check
var _ AuthUseCase = (*authUC)(nil)

var errInvalidCredentials = fmt.Errorf("%w: invalid username or password", domain.ErrUnauthorized)

type AuthUseCase interface {
	// Login verifies credentials and stamps last_login.
	Login(ctx context.Context, username, password string, actor model.Actor) (*model.AdminUser, error)
	// Me returns the active admin behind a session.
	Me(ctx context.Context, id string) (*model.AdminUser, error)
	// CreateAdmin registers a new administrator with a hashed password.
	CreateAdmin(ctx context.Context, username, email, fullName string, role model.AdminRole, password string) (*model.AdminUser, error)
}

type authUC struct {
	admins repository.AdminUserRepository
	audit  repository.AuditLogRepository
	tm     repository.TransactionManager
	hasher PasswordHasher
	log    *zerolog.Logger
}

func NewAuthUseCase(admins repository.AdminUserRepository, audit repository.AuditLogRepository, tm repository.TransactionManager, hasher PasswordHasher, logger *zerolog.Logger) *authUC {
	return &authUC{admins: admins, audit: audit, tm: tm, hasher: hasher, log: logger}
}

func (u *authUC) Login(ctx context.Context, username, password string, actor model.Actor) (*model.AdminUser, error) {
	defer logging.TraceDuration(u.log, "AuthUC.Login")()
	log := logging.With(ctx, u.log)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidArgument)
	}

	a, err := u.admins.FindByUsername(ctx, repository.NoTX, username)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncAdminLogin("failure")
		log.Warn().Str("username", username).Msg("login for unknown admin")
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		metrics.IncAdminLogin("failure")
		return nil, errInvalidCredentials
	}
	if err := u.hasher.Verify(password, a.PasswordHash); err != nil {
		metrics.IncAdminLogin("failure")
		log.Warn().Str("username", username).Msg("login with wrong password")
		return nil, errInvalidCredentials
	}

	now := time.Now()
	actor.AdminID = &a.ID
	actor.Name = a.Username
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.admins.TouchLastLogin(ctx, tx, a.ID, now); err != nil {
			return err
		}
		return u.audit.Save(ctx, tx, newAuditLog(actor, model.AuditLogin, tableAdminUsers, a.ID, nil, nil))
	})
	if err != nil {
		return nil, err
	}
	a.LastLogin = &now
	metrics.IncAdminLogin("success")
	log.Info().Str("admin_id", a.ID).Str("role", string(a.Role)).Msg("admin logged in")
	return a, nil
}

func (u *authUC) Me(ctx context.Context, id string) (*model.AdminUser, error) {
	defer logging.TraceDuration(u.log, "AuthUC.Me")()

	a, err := u.admins.FindByID(ctx, repository.NoTX, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: session user no longer exists", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return nil, fmt.Errorf("%w: account disabled", domain.ErrUnauthorized)
	}
	return a, nil
}

func (u *authUC) CreateAdmin(ctx context.Context, username, email, fullName string, role model.AdminRole, password string) (*model.AdminUser, error) {
	defer logging.TraceDuration(u.log, "AuthUC.CreateAdmin")()

	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidArgument)
	}
	hash, err := u.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	a, err := model.NewAdminUser(username, email, fullName, role, hash)
	if err != nil {
		return nil, err
	}
	if existing, err := u.admins.FindByUsername(ctx, repository.NoTX, a.Username); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: admin %q", domain.ErrAlreadyExists, a.Username)
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err := u.admins.Save(ctx, repository.NoTX, a); err != nil {
		return nil, err
	}
	return a, nil
}

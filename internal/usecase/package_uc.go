package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
	"wifi-voucher-portal/internal/infra/logging"
)

// Compile-time check
var _ PackageUseCase = (*packageUC)(nil)

// PackageInput carries the mutable fields of a package. IsActive nil means
// "leave as is" on update and "active" on create.
type PackageInput struct {
	Name           string          `json:"package_name"`
	Description    *string         `json:"description"`
	DataLimitMB    int64           `json:"data_limit_mb"`
	SpeedLimitKbps *int            `json:"speed_limit_kbps"`
	ValidityHours  int             `json:"validity_hours"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	IsActive       *bool           `json:"is_active"`
}

type PackageUseCase interface {
	Create(ctx context.Context, in PackageInput, actor model.Actor) (*model.Package, error)
	Get(ctx context.Context, id string) (*model.Package, error)
	// ListActive returns active packages, cheapest first.
	ListActive(ctx context.Context) ([]*model.Package, error)
	ListAll(ctx context.Context) ([]*model.Package, error)
	// Update replaces the mutable fields. Once vouchers reference the
	// package only price and is_active may change.
	Update(ctx context.Context, id string, in PackageInput, actor model.Actor) (*model.Package, error)
	// Delete fails with domain.ErrConflict while any voucher references id.
	Delete(ctx context.Context, id string, actor model.Actor) error
}

type packageUC struct {
	packages repository.PackageRepository
	audit    repository.AuditLogRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewPackageUseCase(packages repository.PackageRepository, audit repository.AuditLogRepository, tm repository.TransactionManager, logger *zerolog.Logger) *packageUC {
	return &packageUC{packages: packages, audit: audit, tm: tm, log: logger}
}

func (u *packageUC) Create(ctx context.Context, in PackageInput, actor model.Actor) (*model.Package, error) {
	defer logging.TraceDuration(u.log, "PackageUC.Create")()

	p, err := model.NewPackage(in.Name, in.Description, in.DataLimitMB, in.SpeedLimitKbps, in.ValidityHours, in.Price, in.Currency, actor.AdminID)
	if err != nil {
		return nil, err
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.packages.Save(ctx, tx, p); err != nil {
			return err
		}
		return u.audit.Save(ctx, tx, newAuditLog(actor, model.AuditCreatePackage, tablePackages, p.ID, nil, p.Snapshot()))
	})
	if err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Info().Str("package_id", p.ID).Str("name", p.Name).Msg("package created")
	return p, nil
}

func (u *packageUC) Get(ctx context.Context, id string) (*model.Package, error) {
	defer logging.TraceDuration(u.log, "PackageUC.Get")()
	if err := requireID("package id", id); err != nil {
		return nil, err
	}
	return u.packages.FindByID(ctx, repository.NoTX, id)
}

func (u *packageUC) ListActive(ctx context.Context) ([]*model.Package, error) {
	defer logging.TraceDuration(u.log, "PackageUC.ListActive")()
	return u.packages.ListActive(ctx, repository.NoTX)
}

func (u *packageUC) ListAll(ctx context.Context) ([]*model.Package, error) {
	defer logging.TraceDuration(u.log, "PackageUC.ListAll")()
	return u.packages.ListAll(ctx, repository.NoTX)
}

func (u *packageUC) Update(ctx context.Context, id string, in PackageInput, actor model.Actor) (*model.Package, error) {
	defer logging.TraceDuration(u.log, "PackageUC.Update")()

	if err := requireID("package id", id); err != nil {
		return nil, err
	}

	var updated *model.Package
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.packages.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}

		next := *cur
		next.Name = in.Name
		next.Description = in.Description
		next.DataLimitMB = in.DataLimitMB
		next.SpeedLimitKbps = in.SpeedLimitKbps
		next.ValidityHours = in.ValidityHours
		next.Price = in.Price
		next.Currency = in.Currency
		if in.IsActive != nil {
			next.IsActive = *in.IsActive
		}
		next.Normalize()
		if err := next.Validate(); err != nil {
			return err
		}

		if !cur.SameTerms(&next) {
			n, err := u.packages.CountVouchers(ctx, tx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: package has %d vouchers; only price and is_active may change", domain.ErrConflict, n)
			}
		}

		next.UpdatedAt = time.Now()
		if err := u.packages.Save(ctx, tx, &next); err != nil {
			return err
		}
		updated = &next
		return u.audit.Save(ctx, tx, newAuditLog(actor, model.AuditUpdatePackage, tablePackages, id, cur.Snapshot(), next.Snapshot()))
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (u *packageUC) Delete(ctx context.Context, id string, actor model.Actor) error {
	defer logging.TraceDuration(u.log, "PackageUC.Delete")()

	if err := requireID("package id", id); err != nil {
		return err
	}

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.packages.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := u.packages.Delete(ctx, tx, id); err != nil {
			return err
		}
		return u.audit.Save(ctx, tx, newAuditLog(actor, model.AuditDeletePackage, tablePackages, id, cur.Snapshot(), nil))
	})
	if err != nil {
		return err
	}
	logging.With(ctx, u.log).Info().Str("package_id", id).Msg("package deleted")
	return nil
}

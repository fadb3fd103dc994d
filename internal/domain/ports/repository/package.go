package repository

import (
	"context"

	"wifi-voucher-portal/internal/domain/model"
)

// PackageRepository is the port for package catalog persistence.
type PackageRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Package) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Package, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Package, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Package, error)
	// Delete removes a package that no voucher references; otherwise it
	// returns domain.ErrConflict.
	Delete(ctx context.Context, tx Tx, id string) error
	CountVouchers(ctx context.Context, tx Tx, id string) (int, error)
}

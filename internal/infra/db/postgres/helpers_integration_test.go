//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wifi-voucher-portal/internal/domain/model"
)

func seedPackage(t *testing.T, name string, price int64, active bool) *model.Package {
	t.Helper()
	p, err := model.NewPackage(name, nil, 1024, nil, 24, decimal.NewFromInt(price), "TZS", nil)
	if err != nil {
		t.Fatalf("NewPackage: %v", err)
	}
	p.IsActive = active
	if err := NewPostgresPackageRepo(testPool).Save(context.Background(), nil, p); err != nil {
		t.Fatalf("save package: %v", err)
	}
	return p
}

func seedVoucher(t *testing.T, pkg *model.Package, code string, status model.VoucherStatus) *model.Voucher {
	t.Helper()
	v := &model.Voucher{
		ID:        uuid.NewString(),
		Code:      code,
		PackageID: pkg.ID,
		Status:    status,
		CreatedAt: time.Now(),
	}
	ok, err := NewVoucherRepo(testPool).Create(context.Background(), nil, v)
	if err != nil || !ok {
		t.Fatalf("seed voucher %s: ok=%v err=%v", code, ok, err)
	}
	return v
}

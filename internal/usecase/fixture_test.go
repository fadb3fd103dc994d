//go:build !integration

package usecase_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/adapter"
	"wifi-voucher-portal/internal/usecase"
)

var testAdmin = model.AdminActor("7d0c8d8e-1111-4c4c-9d9d-000000000001", "admin", "10.0.0.5", "go-test")

type fixture struct {
	packages     *memPackageRepo
	vouchers     *memVoucherRepo
	transactions *memTransactionRepo
	audit        *memAuditRepo
	tm           *MockTxManager
	settings     *MockSettings
	gateway      *MockGateway
	locker       *MockLocker
	tasks        *MockTasks

	packageUC     usecase.PackageUseCase
	voucherUC     usecase.VoucherUseCase
	transactionUC usecase.TransactionUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		vouchers: newMemVoucherRepo(),
		audit:    &memAuditRepo{},
		tm:       &MockTxManager{},
		settings: &MockSettings{Values: model.Settings{}},
		gateway:  &MockGateway{},
		locker:   &MockLocker{},
		tasks:    &MockTasks{},
	}
	f.packages = newMemPackageRepo(f.vouchers)
	f.transactions = newMemTransactionRepo(f.vouchers)

	log := newTestLogger()
	f.packageUC = usecase.NewPackageUseCase(f.packages, f.audit, f.tm, log)
	f.voucherUC = usecase.NewVoucherUseCase(f.vouchers, f.packages, f.audit, f.tm, f.settings, f.gateway, f.locker, f.tasks,
		usecase.VoucherOptions{
			DefaultPrefix: "KT",
			Gateway:       adapter.Endpoint{BaseURL: "http://portal.local/api", APIKey: "cfg-key"},
		}, log)
	f.transactionUC = usecase.NewTransactionUseCase(f.transactions, f.packages, f.audit, f.tm, f.settings, f.voucherUC,
		usecase.TransactionOptions{DefaultPrefix: "KT"}, log)
	return f
}

// seedPackage stores an active package priced in TZS.
func (f *fixture) seedPackage(t *testing.T, name string, price int64, hours int) *model.Package {
	t.Helper()
	speed := 2048
	p, err := model.NewPackage(name, nil, 1024, &speed, hours, decimal.NewFromInt(price), "TZS", nil)
	if err != nil {
		t.Fatalf("NewPackage: %v", err)
	}
	if err := f.packages.Save(context.Background(), nil, p); err != nil {
		t.Fatalf("seed package: %v", err)
	}
	return p
}

// seedVoucher stores a voucher with a fixed code and status.
func (f *fixture) seedVoucher(t *testing.T, p *model.Package, code string, status model.VoucherStatus) *model.Voucher {
	t.Helper()
	v := &model.Voucher{
		ID:          uuid.NewString(),
		Code:        code,
		PackageID:   p.ID,
		PackageName: p.Name,
		Status:      status,
	}
	f.vouchers.put(v)
	return v
}

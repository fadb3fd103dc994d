//go:build !integration

package web

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
	"wifi-voucher-portal/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ---- packages ----

type mockPackageUC struct {
	CreateFunc     func(ctx context.Context, in usecase.PackageInput, actor model.Actor) (*model.Package, error)
	GetFunc        func(ctx context.Context, id string) (*model.Package, error)
	ListActiveFunc func(ctx context.Context) ([]*model.Package, error)
	ListAllFunc    func(ctx context.Context) ([]*model.Package, error)
	UpdateFunc     func(ctx context.Context, id string, in usecase.PackageInput, actor model.Actor) (*model.Package, error)
	DeleteFunc     func(ctx context.Context, id string, actor model.Actor) error
}

func (m *mockPackageUC) Create(ctx context.Context, in usecase.PackageInput, actor model.Actor) (*model.Package, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, in, actor)
	}
	return &model.Package{ID: "p-new", Name: in.Name, Price: in.Price}, nil
}

func (m *mockPackageUC) Get(ctx context.Context, id string) (*model.Package, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPackageUC) ListActive(ctx context.Context) ([]*model.Package, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx)
	}
	return []*model.Package{}, nil
}

func (m *mockPackageUC) ListAll(ctx context.Context) ([]*model.Package, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	return []*model.Package{}, nil
}

func (m *mockPackageUC) Update(ctx context.Context, id string, in usecase.PackageInput, actor model.Actor) (*model.Package, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, in, actor)
	}
	return &model.Package{ID: id, Name: in.Name}, nil
}

func (m *mockPackageUC) Delete(ctx context.Context, id string, actor model.Actor) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, actor)
	}
	return nil
}

// ---- vouchers ----

type mockVoucherUC struct {
	mu sync.Mutex

	GenerateFunc func(ctx context.Context, packageID string, quantity int, actor model.Actor) ([]*model.Voucher, error)
	ActivateFunc func(ctx context.Context, code string, deviceID *string) (*model.Voucher, error)
	RevokeFunc   func(ctx context.Context, id string, actor model.Actor) (*model.Voucher, error)
	ListFunc     func(ctx context.Context, f model.VoucherFilter) ([]*model.Voucher, error)
	CheckFunc    func(ctx context.Context, code string) (*model.VoucherCheck, error)

	lastFilter model.VoucherFilter
}

func (m *mockVoucherUC) Generate(ctx context.Context, packageID string, quantity int, actor model.Actor) ([]*model.Voucher, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, packageID, quantity, actor)
	}
	return []*model.Voucher{}, nil
}

func (m *mockVoucherUC) FulfillFromPayment(ctx context.Context, tx repository.Tx, t *model.Transaction, p *model.Package, prefix string) (*model.Voucher, error) {
	return nil, nil
}

func (m *mockVoucherUC) Activate(ctx context.Context, code string, deviceID *string) (*model.Voucher, error) {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, code, deviceID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockVoucherUC) Revoke(ctx context.Context, id string, actor model.Actor) (*model.Voucher, error) {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, id, actor)
	}
	return &model.Voucher{ID: id, Status: model.VoucherStatusRevoked}, nil
}

func (m *mockVoucherUC) List(ctx context.Context, f model.VoucherFilter) ([]*model.Voucher, error) {
	m.mu.Lock()
	m.lastFilter = f
	m.mu.Unlock()
	if m.ListFunc != nil {
		return m.ListFunc(ctx, f)
	}
	return []*model.Voucher{}, nil
}

func (m *mockVoucherUC) Stats(ctx context.Context) (model.VoucherStats, error) {
	return model.VoucherStats{Total: 3, Sold: 2, Activated: 1}, nil
}

func (m *mockVoucherUC) CheckByCode(ctx context.Context, code string) (*model.VoucherCheck, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, code)
	}
	return nil, domain.ErrNotFound
}

func (m *mockVoucherUC) ActiveSessions(ctx context.Context) ([]*model.ActiveSession, error) {
	return []*model.ActiveSession{}, nil
}

func (m *mockVoucherUC) ExpireDue(ctx context.Context, limit int) (int, error) { return 0, nil }

func (m *mockVoucherUC) filter() model.VoucherFilter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFilter
}

// ---- transactions ----

type mockTransactionUC struct {
	InitiateFunc  func(ctx context.Context, req usecase.InitiateRequest, actor model.Actor) (*model.InitiatedPayment, error)
	CallbackFunc  func(ctx context.Context, req usecase.CallbackRequest) (*model.Fulfillment, error)
	ReverseFunc   func(ctx context.Context, ref string, reason *string, actor model.Actor) (*model.Transaction, error)
	lastListLimit int
}

func (m *mockTransactionUC) Initiate(ctx context.Context, req usecase.InitiateRequest, actor model.Actor) (*model.InitiatedPayment, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, req, actor)
	}
	return &model.InitiatedPayment{Reference: "TXN-TEST-000001", PhoneNumber: req.PhoneNumber}, nil
}

func (m *mockTransactionUC) ReconcileCallback(ctx context.Context, req usecase.CallbackRequest) (*model.Fulfillment, error) {
	if m.CallbackFunc != nil {
		return m.CallbackFunc(ctx, req)
	}
	return &model.Fulfillment{Reference: req.Reference, Status: model.TransactionStatusCompleted}, nil
}

func (m *mockTransactionUC) Reverse(ctx context.Context, ref string, reason *string, actor model.Actor) (*model.Transaction, error) {
	if m.ReverseFunc != nil {
		return m.ReverseFunc(ctx, ref, reason, actor)
	}
	return &model.Transaction{Reference: ref, Status: model.TransactionStatusReversed}, nil
}

func (m *mockTransactionUC) List(ctx context.Context, limit int) ([]*model.Transaction, error) {
	m.lastListLimit = limit
	return []*model.Transaction{}, nil
}

func (m *mockTransactionUC) FailStale(ctx context.Context, olderThan time.Duration, limit int) ([]string, error) {
	return nil, nil
}

// ---- settings ----

type mockSettingsUC struct {
	mu      sync.Mutex
	values  map[string]string
	lastSet map[string]string
	actor   model.Actor
}

func (m *mockSettingsUC) GetAll(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.Settings(m.values).Masked(), nil
}

func (m *mockSettingsUC) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockSettingsUC) SetMany(ctx context.Context, entries map[string]string, actor model.Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(entries) == 0 {
		return domain.ErrInvalidArgument
	}
	m.lastSet = entries
	m.actor = actor
	return nil
}

func (m *mockSettingsUC) Snapshot(ctx context.Context) (model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(model.Settings, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

// ---- auth ----

type mockAuthUC struct {
	admins map[string]*model.AdminUser // by username
	pass   map[string]string           // username -> password
}

func (m *mockAuthUC) Login(ctx context.Context, username, password string, actor model.Actor) (*model.AdminUser, error) {
	a, ok := m.admins[username]
	if !ok || m.pass[username] != password {
		return nil, domain.ErrUnauthorized
	}
	return a, nil
}

func (m *mockAuthUC) Me(ctx context.Context, id string) (*model.AdminUser, error) {
	for _, a := range m.admins {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, domain.ErrUnauthorized
}

func (m *mockAuthUC) CreateAdmin(ctx context.Context, username, email, fullName string, role model.AdminRole, password string) (*model.AdminUser, error) {
	return nil, domain.ErrForbidden
}

// ---- portal & audit ----

type mockPortalUC struct {
	Err error
}

func (m *mockPortalUC) TestConnection(ctx context.Context) (*usecase.ConnectionStatus, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &usecase.ConnectionStatus{Gateway: "noop", Connected: true}, nil
}

type mockAuditUC struct {
	lastLimit int
}

func (m *mockAuditUC) Recent(ctx context.Context, limit int) ([]*model.AuditLog, error) {
	m.lastLimit = limit
	return []*model.AuditLog{{ID: "a1", Action: model.AuditLogin}}, nil
}

// ---- rate limiter ----

type memoryLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (l *memoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

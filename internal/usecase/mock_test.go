//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/adapter"
	"wifi-voucher-portal/internal/domain/ports/repository"
	"wifi-voucher-portal/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// =============================
// Transaction manager
// =============================

// MockTxManager serialises units of work; it does not roll back. Commit
// hooks run only when fn succeeds.
type MockTxManager struct {
	mu    sync.Mutex
	Calls int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	ctx, runHooks := repository.WithCommitHooks(ctx)
	if err := fn(ctx, nil); err != nil {
		return err
	}
	runHooks()
	return nil
}

// =============================
// Packages
// =============================

type memPackageRepo struct {
	mu       sync.Mutex
	items    map[string]*model.Package
	vouchers *memVoucherRepo
}

var _ repository.PackageRepository = (*memPackageRepo)(nil)

func newMemPackageRepo(vouchers *memVoucherRepo) *memPackageRepo {
	return &memPackageRepo{items: map[string]*model.Package{}, vouchers: vouchers}
}

func (r *memPackageRepo) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *memPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPackageRepo) list(activeOnly bool) []*model.Package {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Package, 0, len(r.items))
	for _, p := range r.items {
		if activeOnly && !p.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Price.Equal(out[j].Price) {
			return out[i].Price.LessThan(out[j].Price)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *memPackageRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	return r.list(true), nil
}

func (r *memPackageRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	return r.list(false), nil
}

func (r *memPackageRepo) CountVouchers(ctx context.Context, tx repository.Tx, id string) (int, error) {
	if r.vouchers == nil {
		return 0, nil
	}
	return r.vouchers.countByPackage(id), nil
}

func (r *memPackageRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	n, _ := r.CountVouchers(ctx, tx, id)
	if n > 0 {
		return fmt.Errorf("%w: referenced by %d vouchers", domain.ErrConflict, n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// =============================
// Vouchers
// =============================

type memVoucherRepo struct {
	mu    sync.Mutex
	items map[string]*model.Voucher

	// CreateFunc, when set, overrides Create; return (false, nil) to
	// simulate a unique-key collision.
	CreateFunc        func(v *model.Voucher) (bool, error)
	MarkActivatedFunc func(id string) (bool, error)
}

var _ repository.VoucherRepository = (*memVoucherRepo)(nil)

func newMemVoucherRepo() *memVoucherRepo {
	return &memVoucherRepo{items: map[string]*model.Voucher{}}
}

func (r *memVoucherRepo) countByPackage(packageID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.items {
		if v.PackageID == packageID {
			n++
		}
	}
	return n
}

func (r *memVoucherRepo) put(v *model.Voucher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.items[v.ID] = &cp
}

func (r *memVoucherRepo) all() []*model.Voucher {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Voucher, 0, len(r.items))
	for _, v := range r.items {
		cp := *v
		out = append(out, &cp)
	}
	return out
}

func (r *memVoucherRepo) Create(ctx context.Context, tx repository.Tx, v *model.Voucher) (bool, error) {
	if r.CreateFunc != nil {
		ok, err := r.CreateFunc(v)
		if err != nil || !ok {
			return ok, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.items {
		if x.Code == v.Code {
			return false, nil
		}
		if v.PurchaseReference != nil && x.PurchaseReference != nil && *x.PurchaseReference == *v.PurchaseReference {
			return false, nil
		}
	}
	cp := *v
	r.items[v.ID] = &cp
	return true, nil
}

func (r *memVoucherRepo) find(match func(*model.Voucher) bool) (*model.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.items {
		if match(v) {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memVoucherRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Voucher, error) {
	return r.find(func(v *model.Voucher) bool { return v.ID == id })
}

func (r *memVoucherRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Voucher, error) {
	return r.find(func(v *model.Voucher) bool { return v.Code == code })
}

func (r *memVoucherRepo) FindByPurchaseReference(ctx context.Context, tx repository.Tx, ref string) (*model.Voucher, error) {
	return r.find(func(v *model.Voucher) bool { return v.PurchaseReference != nil && *v.PurchaseReference == ref })
}

// matchesStatus mirrors the SQL status clauses of the Postgres List rather
// than calling EffectiveStatus, so a drift between them shows up here.
func matchesStatus(v *model.Voucher, s model.VoucherStatus, now time.Time) bool {
	switch s {
	case model.VoucherStatusActivated:
		return v.Status == model.VoucherStatusActivated && (v.ExpiresAt == nil || v.ExpiresAt.After(now))
	case model.VoucherStatusExpired:
		return v.Status == model.VoucherStatusExpired ||
			(v.Status == model.VoucherStatusActivated && v.ExpiresAt != nil && !v.ExpiresAt.After(now))
	default:
		return v.Status == s
	}
}

func (r *memVoucherRepo) List(ctx context.Context, tx repository.Tx, f model.VoucherFilter, now time.Time) ([]*model.Voucher, error) {
	out := make([]*model.Voucher, 0)
	for _, v := range r.all() {
		if f.Status != "" && !matchesStatus(v, f.Status, now) {
			continue
		}
		if f.PackageID != "" && v.PackageID != f.PackageID {
			continue
		}
		if f.Search != "" {
			q := strings.ToLower(f.Search)
			phone := ""
			if v.PhoneNumber != nil {
				phone = *v.PhoneNumber
			}
			if !strings.Contains(strings.ToLower(v.Code), q) && !strings.Contains(phone, q) {
				continue
			}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memVoucherRepo) Stats(ctx context.Context, tx repository.Tx, now time.Time) (model.VoucherStats, error) {
	var s model.VoucherStats
	for _, v := range r.all() {
		s.Total++
		switch v.EffectiveStatus(now) {
		case model.VoucherStatusAvailable:
			s.Available++
		case model.VoucherStatusSold:
			s.Sold++
		case model.VoucherStatusActivated:
			s.Activated++
		case model.VoucherStatusExpired:
			s.Expired++
		case model.VoucherStatusRevoked:
			s.Revoked++
		}
	}
	return s, nil
}

func (r *memVoucherRepo) ListActiveSessions(ctx context.Context, tx repository.Tx, now time.Time) ([]*model.ActiveSession, error) {
	out := make([]*model.ActiveSession, 0)
	for _, v := range r.all() {
		if v.EffectiveStatus(now) != model.VoucherStatusActivated {
			continue
		}
		out = append(out, &model.ActiveSession{
			Code:            v.Code,
			PhoneNumber:     v.PhoneNumber,
			GatewayUsername: v.GatewayUsername,
			PackageName:     v.PackageName,
			ActivatedAt:     v.ActivatedAt,
			ExpiresAt:       v.ExpiresAt,
		})
	}
	return out, nil
}

func (r *memVoucherRepo) MarkActivated(ctx context.Context, tx repository.Tx, id string, activatedAt, expiresAt time.Time, deviceID *string, gatewayUsername string) (bool, error) {
	if r.MarkActivatedFunc != nil {
		return r.MarkActivatedFunc(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[id]
	if !ok || v.Status != model.VoucherStatusSold {
		return false, nil
	}
	v.Status = model.VoucherStatusActivated
	v.ActivatedAt = &activatedAt
	v.ExpiresAt = &expiresAt
	v.DeviceID = deviceID
	v.GatewayUsername = &gatewayUsername
	return true, nil
}

func (r *memVoucherRepo) RevokeIfActivated(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[id]
	if !ok || v.Status != model.VoucherStatusActivated {
		return false, nil
	}
	if v.ExpiresAt != nil && !v.ExpiresAt.After(now) {
		return false, nil
	}
	v.Status = model.VoucherStatusRevoked
	return true, nil
}

func (r *memVoucherRepo) ExpireActivated(ctx context.Context, tx repository.Tx, now time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.items {
		if limit > 0 && n >= limit {
			break
		}
		if v.Status == model.VoucherStatusActivated && v.ExpiresAt != nil && !now.Before(*v.ExpiresAt) {
			v.Status = model.VoucherStatusExpired
			n++
		}
	}
	return n, nil
}

// =============================
// Transactions
// =============================

type memTransactionRepo struct {
	mu       sync.Mutex
	items    map[string]*model.Transaction
	vouchers *memVoucherRepo

	CreateFunc func(t *model.Transaction) error
}

var _ repository.TransactionRepository = (*memTransactionRepo)(nil)

func newMemTransactionRepo(vouchers *memVoucherRepo) *memTransactionRepo {
	return &memTransactionRepo{items: map[string]*model.Transaction{}, vouchers: vouchers}
}

func (r *memTransactionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *memTransactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if r.CreateFunc != nil {
		if err := r.CreateFunc(t); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.items {
		if x.Reference == t.Reference {
			return domain.ErrAlreadyExists
		}
	}
	cp := *t
	r.items[t.ID] = &cp
	return nil
}

func (r *memTransactionRepo) FindByReference(ctx context.Context, tx repository.Tx, ref string) (*model.Transaction, error) {
	r.mu.Lock()
	var found *model.Transaction
	for _, t := range r.items {
		if t.Reference == ref {
			cp := *t
			found = &cp
			break
		}
	}
	r.mu.Unlock()
	if found == nil {
		return nil, domain.ErrNotFound
	}
	if found.VoucherID != nil && r.vouchers != nil {
		if v, err := r.vouchers.FindByID(ctx, tx, *found.VoucherID); err == nil {
			code := v.Code
			found.VoucherCode = &code
		}
	}
	return found, nil
}

func (r *memTransactionRepo) ListLatest(ctx context.Context, tx repository.Tx, limit int) ([]*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Transaction, 0, len(r.items))
	for _, t := range r.items {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memTransactionRepo) ResolveIfPending(ctx context.Context, tx repository.Tx, id string, res model.CallbackResult) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok || t.Status != model.TransactionStatusPending {
		return false, nil
	}
	t.Status = res.Status
	if res.ProviderTransactionID != nil {
		t.ProviderTransactionID = res.ProviderTransactionID
	}
	t.CallbackPayload = res.Payload
	at := res.ReceivedAt
	t.CallbackReceivedAt = &at
	t.ErrorMessage = res.ErrorMessage
	return true, nil
}

func (r *memTransactionRepo) LinkVoucher(ctx context.Context, tx repository.Tx, id, voucherID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok || t.VoucherID != nil {
		return false, nil
	}
	t.VoucherID = &voucherID
	return true, nil
}

func (r *memTransactionRepo) ReverseIfCompleted(ctx context.Context, tx repository.Tx, id string, reason *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok || t.Status != model.TransactionStatusCompleted {
		return false, nil
	}
	t.Status = model.TransactionStatusReversed
	if reason != nil {
		t.ErrorMessage = reason
	}
	return true, nil
}

func (r *memTransactionRepo) FailPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, reason string, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var refs []string
	for _, t := range r.items {
		if limit > 0 && len(refs) >= limit {
			break
		}
		if t.Status == model.TransactionStatusPending && t.CreatedAt.Before(cutoff) {
			t.Status = model.TransactionStatusFailed
			msg := reason
			t.ErrorMessage = &msg
			refs = append(refs, t.Reference)
		}
	}
	return refs, nil
}

// =============================
// Settings, audit, admins
// =============================

type memSettingRepo struct {
	mu    sync.Mutex
	items map[string]*model.Setting
}

var _ repository.SettingRepository = (*memSettingRepo)(nil)

func newMemSettingRepo() *memSettingRepo {
	return &memSettingRepo{items: map[string]*model.Setting{}}
}

func (r *memSettingRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Setting, 0, len(r.items))
	for _, s := range r.items {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *memSettingRepo) Get(ctx context.Context, tx repository.Tx, key string) (*model.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSettingRepo) Upsert(ctx context.Context, tx repository.Tx, entries map[string]string, updatedBy *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range entries {
		r.items[k] = &model.Setting{Key: k, Value: v, UpdatedBy: updatedBy, UpdatedAt: time.Now()}
	}
	return nil
}

func (r *memSettingRepo) raw(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.items[key]; ok {
		return s.Value
	}
	return ""
}

type memAuditRepo struct {
	mu   sync.Mutex
	logs []*model.AuditLog
}

var _ repository.AuditLogRepository = (*memAuditRepo)(nil)

func (r *memAuditRepo) Save(ctx context.Context, tx repository.Tx, l *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == "" {
		l.ID = fmt.Sprintf("audit-%d", len(r.logs)+1)
	}
	cp := *l
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *memAuditRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.AuditLog, 0, len(r.logs))
	for i := len(r.logs) - 1; i >= 0; i-- {
		out = append(out, r.logs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.logs))
	for i, l := range r.logs {
		out[i] = l.Action
	}
	return out
}

func (r *memAuditRepo) last() *model.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.logs) == 0 {
		return nil
	}
	return r.logs[len(r.logs)-1]
}

type memAdminRepo struct {
	mu    sync.Mutex
	items map[string]*model.AdminUser
}

var _ repository.AdminUserRepository = (*memAdminRepo)(nil)

func newMemAdminRepo() *memAdminRepo {
	return &memAdminRepo{items: map[string]*model.AdminUser{}}
}

func (r *memAdminRepo) Save(ctx context.Context, tx repository.Tx, u *model.AdminUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.items[u.ID] = &cp
	return nil
}

func (r *memAdminRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memAdminRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.items {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memAdminRepo) TouchLastLogin(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

func (r *memAdminRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items), nil
}

// =============================
// Adapters and collaborators
// =============================

// MockSettings is a fixed SettingsReader.
type MockSettings struct {
	mu     sync.Mutex
	Values model.Settings
	Err    error
}

var _ adapter.SettingsReader = (*MockSettings)(nil)

func (m *MockSettings) Snapshot(ctx context.Context) (model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(model.Settings, len(m.Values))
	for k, v := range m.Values {
		out[k] = v
	}
	return out, nil
}

type MockGateway struct {
	mu        sync.Mutex
	Provision []adapter.ProvisionRequest
	Removed   []string
	Pings     int

	ProvisionFunc func(req adapter.ProvisionRequest) (*adapter.ProvisionResult, error)
	PingErr       error
}

var _ adapter.CaptivePortalGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) ProvisionUser(ctx context.Context, req adapter.ProvisionRequest) (*adapter.ProvisionResult, error) {
	m.mu.Lock()
	m.Provision = append(m.Provision, req)
	fn := m.ProvisionFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &adapter.ProvisionResult{Username: req.Username}, nil
}

func (m *MockGateway) RemoveUser(ctx context.Context, ep adapter.Endpoint, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Removed = append(m.Removed, username)
	return nil
}

func (m *MockGateway) Ping(ctx context.Context, ep adapter.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pings++
	return m.PingErr
}

func (m *MockGateway) provisionCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Provision)
}

func (m *MockGateway) removed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Removed...)
}

// MockLocker is an in-process Locker.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
	n    int
}

var _ usecase.Locker = (*MockLocker)(nil)

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = map[string]string{}
	}
	if _, busy := m.held[key]; busy {
		return "", fmt.Errorf("%w: %s is locked", domain.ErrConflict, key)
	}
	m.n++
	token := fmt.Sprintf("t%d", m.n)
	m.held[key] = token
	return token, nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

// MockTasks runs submitted tasks inline.
type MockTasks struct {
	mu   sync.Mutex
	Runs int
	Errs []error
}

var _ usecase.TaskSubmitter = (*MockTasks)(nil)

func (m *MockTasks) Submit(task func(ctx context.Context) error) error {
	err := task(context.Background())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs++
	if err != nil {
		m.Errs = append(m.Errs, err)
	}
	return nil
}

type fakeCodec struct{}

func (fakeCodec) Seal(v string) (string, error) { return "sealed:" + v, nil }
func (fakeCodec) Open(v string) (string, error) { return strings.TrimPrefix(v, "sealed:"), nil }

type fakeHasher struct{}

func (fakeHasher) Hash(p string) (string, error) { return "hash:" + p, nil }
func (fakeHasher) Verify(p, h string) error {
	if h != "hash:"+p {
		return fmt.Errorf("mismatch")
	}
	return nil
}

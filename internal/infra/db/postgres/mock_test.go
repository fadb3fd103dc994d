//go:build !integration

package postgres

import (
	"context"
	"time"

	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
	red "wifi-voucher-portal/internal/infra/redis"

	"github.com/go-redis/redis/v8"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPackageRepo mocks the database repository that the package decorator wraps.
type mockInnerPackageRepo struct {
	SaveFunc          func(ctx context.Context, tx repository.Tx, p *model.Package) error
	DeleteFunc        func(ctx context.Context, tx repository.Tx, id string) error
	FindByIDFunc      func(ctx context.Context, tx repository.Tx, id string) (*model.Package, error)
	ListActiveFunc    func(ctx context.Context, tx repository.Tx) ([]*model.Package, error)
	ListAllFunc       func(ctx context.Context, tx repository.Tx) ([]*model.Package, error)
	CountVouchersFunc func(ctx context.Context, tx repository.Tx, id string) (int, error)
}

func (m *mockInnerPackageRepo) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	return m.SaveFunc(ctx, tx, p)
}
func (m *mockInnerPackageRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return m.DeleteFunc(ctx, tx, id)
}
func (m *mockInnerPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerPackageRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	return m.ListActiveFunc(ctx, tx)
}
func (m *mockInnerPackageRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	return m.ListAllFunc(ctx, tx)
}
func (m *mockInnerPackageRepo) CountVouchers(ctx context.Context, tx repository.Tx, id string) (int, error) {
	return m.CountVouchersFunc(ctx, tx, id)
}

// mockInnerSettingRepo mocks the settings repository.
type mockInnerSettingRepo struct {
	ListAllFunc func(ctx context.Context, tx repository.Tx) ([]*model.Setting, error)
	GetFunc     func(ctx context.Context, tx repository.Tx, key string) (*model.Setting, error)
	UpsertFunc  func(ctx context.Context, tx repository.Tx, entries map[string]string, updatedBy *string) error
}

func (m *mockInnerSettingRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Setting, error) {
	return m.ListAllFunc(ctx, tx)
}
func (m *mockInnerSettingRepo) Get(ctx context.Context, tx repository.Tx, key string) (*model.Setting, error) {
	return m.GetFunc(ctx, tx, key)
}
func (m *mockInnerSettingRepo) Upsert(ctx context.Context, tx repository.Tx, entries map[string]string, updatedBy *string) error {
	return m.UpsertFunc(ctx, tx, entries, updatedBy)
}

// mockRedisClient mocks our Redis client wrapper. Unset funcs behave like an
// empty cache.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", redis.Nil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return nil }

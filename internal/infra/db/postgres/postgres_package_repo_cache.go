package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
	"wifi-voucher-portal/internal/infra/metrics"
	red "wifi-voucher-portal/internal/infra/redis"
)

var _ repository.PackageRepository = (*packageRepoCacheDecorator)(nil)

const packagesActiveKey = "packages:active"

type packageRepoCacheDecorator struct {
	inner repository.PackageRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPackageRepoCacheDecorator(inner repository.PackageRepository, cache red.RedisClient, ttl time.Duration) repository.PackageRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &packageRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func packageKey(id string) string { return fmt.Sprintf("package:%s", id) }

// FindByID bypasses the cache inside a transaction, where the row must be
// read (and locked) from the database.
func (d *packageRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := packageKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var p model.Package
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("package", "hit")
			return &p, nil
		}
	} else if !red.IsMiss(err) {
		metrics.IncCacheRequest("package", "error")
	}

	metrics.IncCacheRequest("package", "miss")
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return p, nil
}

func (d *packageRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	if tx != nil {
		return d.inner.ListActive(ctx, tx)
	}
	val, err := d.cache.Get(ctx, packagesActiveKey)
	if err == nil {
		var pkgs []*model.Package
		if json.Unmarshal([]byte(val), &pkgs) == nil {
			metrics.IncCacheRequest("package_list", "hit")
			return pkgs, nil
		}
	}

	metrics.IncCacheRequest("package_list", "miss")
	pkgs, err := d.inner.ListActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(pkgs); err == nil {
		_ = d.cache.Set(ctx, packagesActiveKey, b, d.ttl)
	}
	return pkgs, nil
}

func (d *packageRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	return d.inner.ListAll(ctx, tx)
}

func (d *packageRepoCacheDecorator) CountVouchers(ctx context.Context, tx repository.Tx, id string) (int, error) {
	return d.inner.CountVouchers(ctx, tx, id)
}

// Writes invalidate both the item and the active list once the enclosing
// unit of work commits.
func (d *packageRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	if err := d.inner.Save(ctx, tx, p); err != nil {
		return err
	}
	d.invalidate(ctx, packageKey(p.ID))
	return nil
}

func (d *packageRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, id string) error {
	if err := d.inner.Delete(ctx, tx, id); err != nil {
		return err
	}
	d.invalidate(ctx, packageKey(id))
	return nil
}

func (d *packageRepoCacheDecorator) invalidate(ctx context.Context, itemKey string) {
	repository.AfterCommit(ctx, func() {
		_ = d.cache.Del(context.WithoutCancel(ctx), itemKey, packagesActiveKey)
	})
}

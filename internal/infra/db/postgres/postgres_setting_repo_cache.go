package postgres

import (
	"context"
	"encoding/json"
	"time"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/repository"
	"wifi-voucher-portal/internal/infra/metrics"
	red "wifi-voucher-portal/internal/infra/redis"
)

var _ repository.SettingRepository = (*settingRepoCacheDecorator)(nil)

const settingsAllKey = "settings:all"

type settingRepoCacheDecorator struct {
	inner repository.SettingRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewSettingRepoCacheDecorator(inner repository.SettingRepository, cache red.RedisClient, ttl time.Duration) repository.SettingRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &settingRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func (d *settingRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Setting, error) {
	if tx != nil {
		return d.inner.ListAll(ctx, tx)
	}
	val, err := d.cache.Get(ctx, settingsAllKey)
	if err == nil {
		var out []*model.Setting
		if json.Unmarshal([]byte(val), &out) == nil {
			metrics.IncCacheRequest("settings", "hit")
			return out, nil
		}
	} else if !red.IsMiss(err) {
		metrics.IncCacheRequest("settings", "error")
	}

	metrics.IncCacheRequest("settings", "miss")
	out, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(out); err == nil {
		_ = d.cache.Set(ctx, settingsAllKey, b, d.ttl)
	}
	return out, nil
}

// Get is served from the cached list.
func (d *settingRepoCacheDecorator) Get(ctx context.Context, tx repository.Tx, key string) (*model.Setting, error) {
	if tx != nil {
		return d.inner.Get(ctx, tx, key)
	}
	all, err := d.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.Key == key {
			return s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (d *settingRepoCacheDecorator) Upsert(ctx context.Context, tx repository.Tx, entries map[string]string, updatedBy *string) error {
	if err := d.inner.Upsert(ctx, tx, entries, updatedBy); err != nil {
		return err
	}
	repository.AfterCommit(ctx, func() {
		_ = d.cache.Del(context.WithoutCancel(ctx), settingsAllKey)
	})
	return nil
}

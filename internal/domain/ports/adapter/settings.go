package adapter

import (
	"context"

	"wifi-voucher-portal/internal/domain/model"
)

// SettingsReader hands out an immutable settings snapshot. Callers take one
// snapshot at the start of an operation and read from it throughout.
type SettingsReader interface {
	Snapshot(ctx context.Context) (model.Settings, error)
}

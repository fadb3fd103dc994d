package adapter

import (
	"context"
	"time"
)

// Endpoint addresses one captive-portal controller. It is resolved per call
// from the settings snapshot, so credentials can rotate without a restart.
type Endpoint struct {
	BaseURL   string
	APIKey    string
	APISecret string
}

func (e Endpoint) Configured() bool { return e.BaseURL != "" && e.APIKey != "" }

// ProvisionRequest describes the portal user to create for a voucher.
type ProvisionRequest struct {
	Endpoint      Endpoint
	Username      string
	Password      string
	ExpiresAt     time.Time
	DownloadBytes int64
	UploadBytes   int64
	BandwidthKbps int // 0 = unlimited
}

type ProvisionResult struct {
	Username string
}

type CaptivePortalGateway interface {
	Name() string
	ProvisionUser(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error)
	RemoveUser(ctx context.Context, ep Endpoint, username string) error
	Ping(ctx context.Context, ep Endpoint) error
}

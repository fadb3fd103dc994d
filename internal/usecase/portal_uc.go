package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"wifi-voucher-portal/internal/domain/ports/adapter"
	"wifi-voucher-portal/internal/infra/logging"
)

// Compile-time check
var _ PortalUseCase = (*portalUC)(nil)

// ConnectionStatus reports the outcome of a gateway reachability probe.
type ConnectionStatus struct {
	Gateway   string `json:"gateway"`
	BaseURL   string `json:"base_url"`
	Connected bool   `json:"connected"`
	LatencyMS int64  `json:"latency_ms"`
}

type PortalUseCase interface {
	// TestConnection pings the captive portal with the current settings.
	TestConnection(ctx context.Context) (*ConnectionStatus, error)
}

type portalUC struct {
	settings adapter.SettingsReader
	gateway  adapter.CaptivePortalGateway
	fallback adapter.Endpoint
	timeout  time.Duration
	log      *zerolog.Logger
}

func NewPortalUseCase(settings adapter.SettingsReader, gateway adapter.CaptivePortalGateway, fallback adapter.Endpoint, timeout time.Duration, logger *zerolog.Logger) *portalUC {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &portalUC{settings: settings, gateway: gateway, fallback: fallback, timeout: timeout, log: logger}
}

func (u *portalUC) TestConnection(ctx context.Context) (*ConnectionStatus, error) {
	defer logging.TraceDuration(u.log, "PortalUC.TestConnection")()

	snap, err := u.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ep := resolveEndpoint(snap, u.fallback)

	gctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	start := time.Now()
	if err := u.gateway.Ping(gctx, ep); err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Str("base_url", ep.BaseURL).Msg("captive portal unreachable")
		return nil, err
	}
	return &ConnectionStatus{
		Gateway:   u.gateway.Name(),
		BaseURL:   ep.BaseURL,
		Connected: true,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

// File: internal/infra/adapters/captiveportal/pfsense_gateway.go
package captiveportal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/ports/adapter"
	"wifi-voucher-portal/internal/infra/metrics"
)

var _ adapter.CaptivePortalGateway = (*PfSenseGateway)(nil)

const maxErrorBody = 512

// PfSenseGateway provisions voucher users through a pfSense-style REST API.
// The endpoint travels with each call; the client only owns transport and
// the per-call timeout.
type PfSenseGateway struct {
	client  *http.Client
	timeout time.Duration
}

func NewPfSenseGateway(timeout time.Duration) *PfSenseGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PfSenseGateway{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (g *PfSenseGateway) Name() string { return "pfsense" }

type voucherUserRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	Expiration    string `json:"expiration"`
	DownloadLimit int64  `json:"download_limit"`
	UploadLimit   int64  `json:"upload_limit"`
	BandwidthDown int    `json:"bandwidth_down"`
	BandwidthUp   int    `json:"bandwidth_up"`
}

// ProvisionUser creates the portal user for a voucher.
func (g *PfSenseGateway) ProvisionUser(ctx context.Context, req adapter.ProvisionRequest) (*adapter.ProvisionResult, error) {
	body, err := json.Marshal(voucherUserRequest{
		Username:      req.Username,
		Password:      req.Password,
		Expiration:    req.ExpiresAt.UTC().Format(time.RFC3339),
		DownloadLimit: req.DownloadBytes,
		UploadLimit:   req.UploadBytes,
		BandwidthDown: req.BandwidthKbps,
		BandwidthUp:   req.BandwidthKbps,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrGateway, err)
	}
	if err := g.do(ctx, "provision", req.Endpoint, http.MethodPost, "/captiveportal/voucher", body); err != nil {
		return nil, err
	}
	return &adapter.ProvisionResult{Username: req.Username}, nil
}

// RemoveUser deletes a portal user. A 404 counts as already removed.
func (g *PfSenseGateway) RemoveUser(ctx context.Context, ep adapter.Endpoint, username string) error {
	err := g.do(ctx, "remove", ep, http.MethodDelete, "/captiveportal/voucher/"+url.PathEscape(username), nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil
	}
	return err
}

func (g *PfSenseGateway) Ping(ctx context.Context, ep adapter.Endpoint) error {
	return g.do(ctx, "ping", ep, http.MethodGet, "/system/status", nil)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway http %d: %s", e.code, e.body)
}

func (g *PfSenseGateway) do(ctx context.Context, op string, ep adapter.Endpoint, method, path string, body []byte) (err error) {
	if !ep.Configured() {
		return domain.ErrGatewayNotConfigured
	}
	start := time.Now()
	defer func() {
		metrics.ObserveGatewayCall(op, callResult(err), time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(ep.BaseURL, "/")+path, rdr)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrGateway, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+ep.APIKey)
	if ep.APISecret != "" {
		httpReq.Header.Set("X-API-Secret", ep.APISecret)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: %s %s", domain.ErrGatewayTimeout, method, path)
		}
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %w", domain.ErrGateway, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(b))})
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func callResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrGatewayTimeout):
		return "timeout"
	default:
		return "error"
	}
}

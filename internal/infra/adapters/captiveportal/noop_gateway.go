package captiveportal

import (
	"context"
	"sync"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/ports/adapter"
)

var _ adapter.CaptivePortalGateway = (*NoopGateway)(nil)

// NoopGateway is a simple in-memory gateway for development and tests.
type NoopGateway struct {
	mu    sync.Mutex
	users map[string]adapter.ProvisionRequest
	// Fail, when set, is returned by every call.
	Fail error
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{users: make(map[string]adapter.ProvisionRequest)}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) ProvisionUser(ctx context.Context, req adapter.ProvisionRequest) (*adapter.ProvisionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail != nil {
		return nil, g.Fail
	}
	if _, ok := g.users[req.Username]; ok {
		return nil, domain.ErrGateway
	}
	g.users[req.Username] = req
	return &adapter.ProvisionResult{Username: req.Username}, nil
}

func (g *NoopGateway) RemoveUser(ctx context.Context, ep adapter.Endpoint, username string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail != nil {
		return g.Fail
	}
	delete(g.users, username)
	return nil
}

func (g *NoopGateway) Ping(ctx context.Context, ep adapter.Endpoint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Fail
}

// Users returns the currently provisioned usernames.
func (g *NoopGateway) Users() map[string]adapter.ProvisionRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]adapter.ProvisionRequest, len(g.users))
	for k, v := range g.users {
		out[k] = v
	}
	return out
}

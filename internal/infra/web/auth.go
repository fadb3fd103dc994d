package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
)

// ===== Session/JWT primitives =====

const SessionCookieName = "admin_session"

type AuthConfig struct {
	HMACSecret   []byte
	CookieName   string
	CookieDomain string
	SecureCookie bool
	TTL          time.Duration
}

type AuthManager struct {
	cfg AuthConfig
	now func() time.Time
}

func NewAuthManager(secret string, secure bool, cookieDomain string, ttl time.Duration) *AuthManager {
	return &AuthManager{
		cfg: AuthConfig{
			HMACSecret:   []byte(secret),
			CookieName:   SessionCookieName,
			CookieDomain: cookieDomain, // "" for a host-only cookie
			SecureCookie: secure,       // true behind TLS
			TTL:          ttl,
		},
		now: time.Now,
	}
}

// AdminClaims carries the session identity. Subject is the admin id.
type AdminClaims struct {
	Username string          `json:"username"`
	Role     model.AdminRole `json:"role"`
	jwt.RegisteredClaims
}

// Mint signs a session token for admin and sets it as a cookie on w.
func (a *AuthManager) Mint(w http.ResponseWriter, admin *model.AdminUser) (string, error) {
	now := a.now()
	claims := AdminClaims{
		Username: admin.Username,
		Role:     admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TTL)),
			Subject:   admin.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.cfg.HMACSecret)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   int(a.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return signed, nil
}

func (a *AuthManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

// ParseFromRequest reads the session from "Authorization: Bearer <jwt>" or,
// failing that, from the session cookie.
func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	if c, err := r.Cookie(a.cfg.CookieName); err == nil && c.Value != "" {
		return a.parse(c.Value)
	}
	return nil, fmt.Errorf("%w: missing session token", domain.ErrUnauthorized)
}

func (a *AuthManager) parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("%w: invalid session token", domain.ErrUnauthorized)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: invalid session token", domain.ErrUnauthorized)
	}
	return claims, nil
}

type claimsKey struct{}

func withClaims(ctx context.Context, c *AdminClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the session attached by RequireRole, if any.
func ClaimsFrom(ctx context.Context) (*AdminClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*AdminClaims)
	return c, ok && c != nil
}

var errNoSession = errors.New("no session on request context")

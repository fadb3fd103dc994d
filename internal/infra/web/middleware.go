package web

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/infra/logging"
	"wifi-voucher-portal/internal/infra/metrics"
)

type Middleware func(http.Handler) http.Handler

const traceHeader = "X-Request-ID"

// TraceID tags the request with a trace id, reusing an inbound X-Request-ID.
func TraceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid := strings.TrimSpace(r.Header.Get(traceHeader))
			if tid == "" || len(tid) > 64 {
				tid = uuid.NewString()
			}
			w.Header().Set(traceHeader, tid)
			ctx := logging.WithTraceID(r.Context(), tid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l := logging.With(r.Context(), logger)
					l.Error().Interface("panic", rec).Msg("panic recovered")
					respondFail(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			l := logging.With(r.Context(), logger)
			ev := l.Info()
			if ww.status >= http.StatusInternalServerError {
				ev = l.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.status).
				Dur("duration", time.Since(start)).
				Msg("http_request")
		})
	}
}

// HTTPMetrics observes latency labelled by the chi route pattern, so path
// parameters do not explode label cardinality.
func HTTPMetrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			metrics.ObserveHTTPRequest(r.Method, routePattern(r), ww.status, time.Since(start))
		})
	}
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type respWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *respWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Limiter is the fixed-window counter behind RateLimit.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// KeyFunc buckets a request for rate limiting.
type KeyFunc func(bucket, clientIP string) string

// RateLimit allows perMinute requests per client IP within bucket. Limiter
// failures let the request through.
func RateLimit(l Limiter, key KeyFunc, bucket string, perMinute int, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil || perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := l.Allow(r.Context(), key(bucket, clientIP(r)), perMinute, time.Minute)
			if err != nil {
				lg := logging.With(r.Context(), logger)
				lg.Warn().Err(err).Str("bucket", bucket).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.IncRateLimited(bucket)
				w.Header().Set("Retry-After", "60")
				respondError(w, r, logger, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects requests without a valid session (401) or whose role is
// below min (403). The claims are attached to the request context.
func RequireRole(auth *AuthManager, min model.AdminRole, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := auth.ParseFromRequest(r)
			if err != nil {
				respondError(w, r, logger, err)
				return
			}
			if !claims.Role.Satisfies(min) {
				respondError(w, r, logger, fmt.Errorf("%w: requires role %s", domain.ErrForbidden, min))
				return
			}
			ctx := withClaims(r.Context(), claims)
			ctx = logging.WithAdminID(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallbackSecret guards the provider webhook. An empty secret disables the
// check.
func CallbackSecret(secret string, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Callback-Secret")
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				l := logging.With(r.Context(), logger)
				l.Warn().Msg("payment callback rejected: bad secret")
				respondError(w, r, logger, fmt.Errorf("%w: invalid callback secret", domain.ErrUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// actorFrom builds the audit actor for an authenticated request.
func actorFrom(r *http.Request) (model.Actor, error) {
	c, ok := ClaimsFrom(r.Context())
	if !ok {
		return model.Actor{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, errNoSession)
	}
	return model.AdminActor(c.Subject, c.Username, clientIP(r), r.UserAgent()), nil
}

// publicActor names an anonymous portal caller by address.
func publicActor(r *http.Request) model.Actor {
	a := model.ActorPortal
	if ip := clientIP(r); ip != "" {
		a.IPAddress = &ip
	}
	if ua := r.UserAgent(); ua != "" {
		a.UserAgent = &ua
	}
	return a
}

package web

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/usecase"
)

const requestTimeout = 30 * time.Second

// Options carries the transport-level knobs of the API.
type Options struct {
	CORSOrigins     []string
	CallbackSecret  string
	PublicPerMinute int
	LoginPerMinute  int
	Limiter         Limiter
	LimiterKey      KeyFunc
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty trusts none.
	TrustedProxies []netip.Prefix
	Dev            bool
}

type Server struct {
	packages     usecase.PackageUseCase
	vouchers     usecase.VoucherUseCase
	transactions usecase.TransactionUseCase
	settings     usecase.SettingsUseCase
	auth         usecase.AuthUseCase
	portal       usecase.PortalUseCase
	audit        usecase.AuditUseCase
	sessions     *AuthManager
	opts         Options
	log          *zerolog.Logger
}

func NewServer(
	packages usecase.PackageUseCase,
	vouchers usecase.VoucherUseCase,
	transactions usecase.TransactionUseCase,
	settings usecase.SettingsUseCase,
	auth usecase.AuthUseCase,
	portal usecase.PortalUseCase,
	audit usecase.AuditUseCase,
	sessions *AuthManager,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.LimiterKey == nil {
		opts.LimiterKey = func(bucket, ip string) string { return "rate_limit:" + bucket + ":" + ip }
	}
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{
		packages:     packages,
		vouchers:     vouchers,
		transactions: transactions,
		settings:     settings,
		auth:         auth,
		portal:       portal,
		audit:        audit,
		sessions:     sessions,
		opts:         opts,
		log:          &l,
	}
}

// Router builds the full route tree, including /health and /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		RealIP(s.opts.TrustedProxies),
		TraceID(),
		Recover(s.log),
		RequestLog(s.log),
		HTTPMetrics(),
		cors.Handler(cors.Options{
			AllowedOrigins:   s.corsOrigins(),
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", traceHeader},
			ExposedHeaders:   []string{traceHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondOK(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	operator := RequireRole(s.sessions, model.RoleOperator, s.log)
	admin := RequireRole(s.sessions, model.RoleAdmin, s.log)
	public := RateLimit(s.opts.Limiter, s.opts.LimiterKey, "public", s.opts.PublicPerMinute, s.log)
	login := RateLimit(s.opts.Limiter, s.opts.LimiterKey, "login", s.opts.LoginPerMinute, s.log)

	r.Route("/api", func(r chi.Router) {
		r.Use(Timeout(requestTimeout))

		r.Route("/packages", func(r chi.Router) {
			r.Get("/", s.handleListPackages)
			r.With(admin).Post("/", s.handleCreatePackage)
			r.Get("/{id}", s.handleGetPackage)
			r.With(admin).Put("/{id}", s.handleUpdatePackage)
			r.With(admin).Delete("/{id}", s.handleDeletePackage)
		})

		r.Route("/vouchers", func(r chi.Router) {
			r.With(public).Post("/check", s.handleCheckVoucher)
			r.With(public).Post("/activate", s.handleActivateVoucher)

			r.Group(func(r chi.Router) {
				r.Use(operator)
				r.Post("/generate", s.handleGenerateVouchers)
				r.Get("/list", s.handleListVouchers)
				r.Get("/stats", s.handleVoucherStats)
				r.Post("/revoke", s.handleRevokeVoucher)
				r.Get("/active", s.handleActiveSessions)
			})
		})

		r.Route("/transactions", func(r chi.Router) {
			r.With(public).Post("/initiate", s.handleInitiateTransaction)
			r.With(CallbackSecret(s.opts.CallbackSecret, s.log)).Post("/callback", s.handleTransactionCallback)
			r.With(operator).Get("/list", s.handleListTransactions)
			r.With(admin).Post("/reverse", s.handleReverseTransaction)
		})

		r.With(operator).Get("/settings", s.handleGetSettings)
		r.With(admin).Put("/settings", s.handlePutSettings)
		r.With(admin).Get("/gateway/test-connection", s.handleTestConnection)
		r.With(admin).Get("/audit-logs", s.handleAuditLogs)

		r.Route("/auth", func(r chi.Router) {
			r.With(login).Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.With(operator).Get("/me", s.handleMe)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondFail(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondFail(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) corsOrigins() []string {
	if len(s.opts.CORSOrigins) > 0 {
		return s.opts.CORSOrigins
	}
	return []string{"*"}
}

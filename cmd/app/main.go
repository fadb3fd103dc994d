// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wifi-voucher-portal/internal/config"
	"wifi-voucher-portal/internal/domain/ports/adapter"
	"wifi-voucher-portal/internal/infra/adapters/captiveportal"
	pg "wifi-voucher-portal/internal/infra/db/postgres"
	"wifi-voucher-portal/internal/infra/logging"
	"wifi-voucher-portal/internal/infra/metrics"
	red "wifi-voucher-portal/internal/infra/redis"
	"wifi-voucher-portal/internal/infra/sched"
	"wifi-voucher-portal/internal/infra/security"
	"wifi-voucher-portal/internal/infra/web"
	"wifi-voucher-portal/internal/infra/worker"
	"wifi-voucher-portal/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted identifiers)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrations")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Security ----
	sealer, err := security.NewSecretSealer(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}
	if !sealer.Enabled() {
		logger.Warn().Msg("security.encryption_key not set; gateway credentials are stored unencrypted")
	}
	hasher := security.NewPasswordHasher(0)

	// ---- Repositories ----
	txm := pg.NewTxManager(pool)
	packageRepo := pg.NewPackageRepoCacheDecorator(pg.NewPostgresPackageRepo(pool), redisClient, cfg.Redis.TTL)
	settingRepo := pg.NewSettingRepoCacheDecorator(pg.NewSettingRepo(pool), redisClient, cfg.Redis.TTL)
	voucherRepo := pg.NewVoucherRepo(pool)
	transactionRepo := pg.NewTransactionRepo(pool)
	auditRepo := pg.NewAuditLogRepo(pool)
	adminRepo := pg.NewPostgresAdminUserRepo(pool)

	// ---- Captive portal ----
	var gateway adapter.CaptivePortalGateway
	if strings.EqualFold(strings.TrimSpace(cfg.Gateway.BaseURL), "noop") {
		logger.Warn().Msg("captive portal gateway: noop (nothing is provisioned)")
		gateway = captiveportal.NewNoopGateway()
	} else {
		gateway = captiveportal.NewPfSenseGateway(cfg.Gateway.Timeout)
	}
	fallback := adapter.Endpoint{
		BaseURL:   cfg.Gateway.BaseURL,
		APIKey:    cfg.Gateway.APIKey,
		APISecret: cfg.Gateway.APISecret,
	}

	// ---- Worker pool (gateway de-provisioning, compensation) ----
	tasks := worker.NewPool(cfg.Worker.Size, logger)
	tasks.Start(context.WithoutCancel(ctx))

	// ---- Use cases ----
	settingsUC := usecase.NewSettingsUseCase(settingRepo, auditRepo, txm, sealer, logger)
	packageUC := usecase.NewPackageUseCase(packageRepo, auditRepo, txm, logger)
	voucherUC := usecase.NewVoucherUseCase(voucherRepo, packageRepo, auditRepo, txm, settingsUC, gateway, locker, tasks,
		usecase.VoucherOptions{
			DefaultPrefix:  cfg.Vouchers.DefaultPrefix,
			Gateway:        fallback,
			GatewayTimeout: cfg.Gateway.Timeout,
			Dev:            cfg.Runtime.Dev,
		}, logger)
	transactionUC := usecase.NewTransactionUseCase(transactionRepo, packageRepo, auditRepo, txm, settingsUC, voucherUC,
		usecase.TransactionOptions{DefaultPrefix: cfg.Vouchers.DefaultPrefix, Dev: cfg.Runtime.Dev}, logger)
	authUC := usecase.NewAuthUseCase(adminRepo, auditRepo, txm, hasher, logger)
	portalUC := usecase.NewPortalUseCase(settingsUC, gateway, fallback, cfg.Gateway.Timeout, logger)
	auditUC := usecase.NewAuditUseCase(auditRepo, logger)

	// ---- Background workers ----
	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, voucherUC, logger)
	go func() { _ = expiry.Run(ctx) }()

	reconciler := sched.NewTransactionReconciler(transactionUC, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.PendingTimeout, logger)
	go reconciler.Start(ctx)

	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				metrics.ObservePool(pool)
			}
		}
	}()

	// ---- HTTP ----
	trusted, err := web.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Fatal().Err(err).Msg("server.trusted_proxies")
	}
	sessions := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.SecureCookie, cfg.Admin.CookieDomain, cfg.Admin.SessionTTL)
	api := web.NewServer(packageUC, voucherUC, transactionUC, settingsUC, authUC, portalUC, auditUC, sessions,
		web.Options{
			CORSOrigins:     cfg.Server.CORSOrigins,
			CallbackSecret:  cfg.Payment.CallbackSecret,
			PublicPerMinute: cfg.RateLimit.PublicPerMinute,
			LoginPerMinute:  cfg.RateLimit.LoginPerMinute,
			Limiter:         rateLimiter,
			LimiterKey:      red.ClientKey,
			TrustedProxies:  trusted,
			Dev:             cfg.Runtime.Dev,
		}, logger)
	if cfg.Payment.CallbackSecret == "" {
		logger.Warn().Msg("payment.callback_secret not set; the payment callback is unauthenticated")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.Router(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	tasks.Stop()
	logger.Info().Msg("bye")
}

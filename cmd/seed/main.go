package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"wifi-voucher-portal/internal/config"
	"wifi-voucher-portal/internal/domain"
	"wifi-voucher-portal/internal/domain/model"
	pg "wifi-voucher-portal/internal/infra/db/postgres"
	"wifi-voucher-portal/internal/infra/logging"
	"wifi-voucher-portal/internal/infra/security"
	"wifi-voucher-portal/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	adminUser := flag.String("admin-user", "admin", "username of the first super admin")
	adminEmail := flag.String("admin-email", "", "email of the first super admin")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	sealer, err := security.NewSecretSealer(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatalf("encryption: %v", err)
	}
	txm := pg.NewTxManager(pool)
	auditRepo := pg.NewAuditLogRepo(pool)
	settingsUC := usecase.NewSettingsUseCase(pg.NewSettingRepo(pool), auditRepo, txm, sealer, logger)
	packageUC := usecase.NewPackageUseCase(pg.NewPostgresPackageRepo(pool), auditRepo, txm, logger)
	authUC := usecase.NewAuthUseCase(pg.NewPostgresAdminUserRepo(pool), auditRepo, txm, security.NewPasswordHasher(0), logger)

	// ---- Settings: only keys that are still unset ----
	defaults := map[string]string{
		model.SettingVoucherPrefix: cfg.Vouchers.DefaultPrefix,
		model.SettingPortalSSID:    "Guest-WiFi",
		model.SettingSupportPhone:  "",
		model.SettingPortalAPIURL:  "",
	}
	for _, p := range model.PaymentProviders {
		defaults[model.ProviderSettingKey(p)] = "true"
	}
	missing := map[string]string{}
	for k, v := range defaults {
		_, ok, err := settingsUC.Get(ctx, k)
		if err != nil {
			log.Fatalf("read setting %s: %v", k, err)
		}
		if !ok {
			missing[k] = v
		}
	}
	if len(missing) > 0 {
		if err := settingsUC.SetMany(ctx, missing, model.ActorSystem); err != nil {
			log.Fatalf("seed settings: %v", err)
		}
		fmt.Printf("seeded %d settings\n", len(missing))
	}

	// ---- Packages ----
	pkgs, err := packageUC.ListAll(ctx)
	if err != nil {
		log.Fatalf("list packages: %v", err)
	}
	if len(pkgs) > 0 {
		fmt.Printf("%d packages already present. No changes.\n", len(pkgs))
	} else {
		seed := []usecase.PackageInput{
			{Name: "1 Hour", DataLimitMB: 500, ValidityHours: 1, Price: decimal.NewFromInt(200)},
			{Name: "Daily", DataLimitMB: 2048, ValidityHours: 24, Price: decimal.NewFromInt(500)},
			{Name: "Weekly", DataLimitMB: 10240, ValidityHours: 168, Price: decimal.NewFromInt(3000)},
			{Name: "Monthly", DataLimitMB: 40960, ValidityHours: 720, Price: decimal.NewFromInt(10000)},
		}
		for _, in := range seed {
			in.Currency = model.DefaultCurrency
			p, err := packageUC.Create(ctx, in, model.ActorSystem)
			if err != nil {
				log.Fatalf("create package %q: %v", in.Name, err)
			}
			fmt.Printf("seeded: %s (id=%s, %d MB, %dh, %s %s)\n", p.Name, p.ID, p.DataLimitMB, p.ValidityHours, p.Price, p.Currency)
		}
	}

	// ---- First super admin ----
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		fmt.Println("SEED_ADMIN_PASSWORD not set; skipping admin account.")
		fmt.Println("Seeding complete.")
		return
	}
	a, err := authUC.CreateAdmin(ctx, *adminUser, *adminEmail, "Administrator", model.RoleSuperAdmin, password)
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		fmt.Printf("admin %q already exists. No changes.\n", *adminUser)
	case err != nil:
		log.Fatalf("create admin: %v", err)
	default:
		fmt.Printf("seeded super admin %s (id=%s)\n", a.Username, a.ID)
	}

	fmt.Println("Seeding complete.")
}

//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wifi-voucher-portal/internal/domain"
)

// --- Admin Model Tests ---

func TestAdminRole_Satisfies(t *testing.T) {
	cases := []struct {
		role AdminRole
		min  AdminRole
		want bool
	}{
		{RoleSuperAdmin, RoleAdmin, true},
		{RoleSuperAdmin, RoleSuperAdmin, true},
		{RoleAdmin, RoleOperator, true},
		{RoleAdmin, RoleSuperAdmin, false},
		{RoleOperator, RoleAdmin, false},
		{"guest", RoleOperator, false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run("should decide "+string(tc.role)+" against "+string(tc.min), func(t *testing.T) {
			if got := tc.role.Satisfies(tc.min); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestNewAdminUser(t *testing.T) {
	t.Run("should create an active admin with trimmed fields", func(t *testing.T) {
		a, err := NewAdminUser("  alice ", " a@example.com ", " Alice ", RoleAdmin, "hash")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if a.ID == "" || a.Username != "alice" || a.Email != "a@example.com" || a.FullName != "Alice" {
			t.Errorf("unexpected admin: %+v", a)
		}
		if !a.IsActive {
			t.Error("expected a new admin to be active")
		}
	})

	t.Run("should reject a missing username or password hash", func(t *testing.T) {
		if _, err := NewAdminUser(" ", "", "", RoleAdmin, "hash"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for empty username, got %v", err)
		}
		if _, err := NewAdminUser("bob", "", "", RoleAdmin, ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for empty hash, got %v", err)
		}
	})

	t.Run("should reject an unknown role", func(t *testing.T) {
		_, err := NewAdminUser("bob", "", "", "root", "hash")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

// --- Package Model Tests ---

func TestNewPackage(t *testing.T) {
	t.Run("should default the currency and convert the data cap", func(t *testing.T) {
		p, err := NewPackage(" Daily ", nil, 1024, nil, 24, decimal.NewFromInt(500), "", nil)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.Name != "Daily" || p.Currency != DefaultCurrency || !p.IsActive {
			t.Errorf("unexpected package: %+v", p)
		}
		if p.DataLimitBytes() != 1024*1024*1024 {
			t.Errorf("expected 1 GiB, got %d", p.DataLimitBytes())
		}
		if p.Validity() != 24*time.Hour {
			t.Errorf("expected 24h validity, got %s", p.Validity())
		}
	})

	neg := -1
	cases := []struct {
		name     string
		pkgName  string
		mb       int64
		speed    *int
		hours    int
		price    decimal.Decimal
		currency string
	}{
		{"empty name", "", 1, nil, 1, decimal.NewFromInt(1), "TZS"},
		{"zero data limit", "x", 0, nil, 1, decimal.NewFromInt(1), "TZS"},
		{"zero validity", "x", 1, nil, 0, decimal.NewFromInt(1), "TZS"},
		{"zero price", "x", 1, nil, 1, decimal.Zero, "TZS"},
		{"bad currency", "x", 1, nil, 1, decimal.NewFromInt(1), "shilling"},
		{"negative speed", "x", 1, &neg, 1, decimal.NewFromInt(1), "TZS"},
	}
	for _, tc := range cases {
		t.Run("should reject "+tc.name, func(t *testing.T) {
			p, err := NewPackage(tc.pkgName, nil, tc.mb, tc.speed, tc.hours, tc.price, tc.currency, nil)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if p != nil {
				t.Error("expected nil package on error")
			}
		})
	}
}

func TestPackage_SameTerms(t *testing.T) {
	base, _ := NewPackage("Weekly", nil, 10240, nil, 168, decimal.NewFromInt(3000), "TZS", nil)

	t.Run("should allow price and active changes", func(t *testing.T) {
		o := *base
		o.Price = decimal.NewFromInt(2500)
		o.IsActive = false
		if !base.SameTerms(&o) {
			t.Error("expected same terms")
		}
	})

	t.Run("should detect a changed validity window", func(t *testing.T) {
		o := *base
		o.ValidityHours = 24
		if base.SameTerms(&o) {
			t.Error("expected different terms")
		}
	})
}

// --- Voucher Model Tests ---

func TestVoucher_EffectiveStatus(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	cases := []struct {
		name    string
		status  VoucherStatus
		expires *time.Time
		want    VoucherStatus
	}{
		{"activated and still valid", VoucherStatusActivated, &future, VoucherStatusActivated},
		{"activated past expiry", VoucherStatusActivated, &past, VoucherStatusExpired},
		{"activated exactly at expiry", VoucherStatusActivated, &now, VoucherStatusExpired},
		{"sold without expiry", VoucherStatusSold, nil, VoucherStatusSold},
		{"revoked past expiry", VoucherStatusRevoked, &past, VoucherStatusRevoked},
	}
	for _, tc := range cases {
		t.Run("should report "+tc.name, func(t *testing.T) {
			v := &Voucher{Status: tc.status, ExpiresAt: tc.expires}
			if got := v.EffectiveStatus(now); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestGatewayUsernameFor(t *testing.T) {
	t.Run("should strip hyphens and lower-case the code", func(t *testing.T) {
		if got := GatewayUsernameFor("WIFI-AB12CD34"); got != "user_wifiab12cd34" {
			t.Errorf("unexpected username %q", got)
		}
	})
}

func TestVoucherStatus(t *testing.T) {
	t.Run("should treat expired and revoked as terminal", func(t *testing.T) {
		for _, s := range AllVoucherStatuses {
			want := s == VoucherStatusExpired || s == VoucherStatusRevoked
			if s.Terminal() != want {
				t.Errorf("%s: expected terminal=%v", s, want)
			}
			if !s.Valid() {
				t.Errorf("%s: expected valid", s)
			}
		}
		if VoucherStatus("used").Valid() {
			t.Error("expected unknown status to be invalid")
		}
	})
}

// --- Settings Model Tests ---

func TestSettings(t *testing.T) {
	s := Settings{
		SettingVoucherPrefix:                    " cafe ",
		SettingPortalAPIKey:                     "k-123",
		SettingPortalAPISecret:                  "",
		SettingPortalSSID:                       "Guest",
		ProviderSettingKey(ProviderMpesa):       "false",
		ProviderSettingKey(ProviderAirtelMoney): "not-a-bool",
	}

	t.Run("should upper-case the configured prefix", func(t *testing.T) {
		if got := s.VoucherPrefix("WIFI"); got != "CAFE" {
			t.Errorf("expected CAFE, got %s", got)
		}
		if got := (Settings{}).VoucherPrefix("WIFI"); got != "WIFI" {
			t.Errorf("expected fallback, got %s", got)
		}
	})

	t.Run("should enable providers unless explicitly disabled", func(t *testing.T) {
		if s.ProviderEnabled(ProviderMpesa) {
			t.Error("expected mpesa disabled")
		}
		if !s.ProviderEnabled(ProviderAirtelMoney) {
			t.Error("expected an unparsable flag to leave the provider enabled")
		}
		if !s.ProviderEnabled(ProviderTigoPesa) {
			t.Error("expected an unset flag to leave the provider enabled")
		}
	})

	t.Run("should mask only non-empty sensitive values", func(t *testing.T) {
		m := s.Masked()
		if m[SettingPortalAPIKey] != SecretMask {
			t.Errorf("expected api key masked, got %q", m[SettingPortalAPIKey])
		}
		if m[SettingPortalAPISecret] != "" {
			t.Errorf("expected empty secret to stay empty, got %q", m[SettingPortalAPISecret])
		}
		if m[SettingPortalSSID] != "Guest" {
			t.Errorf("expected ssid untouched, got %q", m[SettingPortalSSID])
		}
		if s[SettingPortalAPIKey] != "k-123" {
			t.Error("Masked must not modify the snapshot")
		}
	})
}

func TestPaymentProvider_Valid(t *testing.T) {
	t.Run("should accept known providers only", func(t *testing.T) {
		for _, p := range PaymentProviders {
			if !p.Valid() {
				t.Errorf("%s: expected valid", p)
			}
		}
		if PaymentProvider("paypal").Valid() {
			t.Error("expected paypal to be invalid")
		}
	})
}

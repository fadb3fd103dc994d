package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Well-known setting keys.
const (
	SettingVoucherPrefix    = "voucher_code_prefix"
	SettingPortalAPIURL     = "pfsense_api_url"
	SettingPortalAPIKey     = "pfsense_api_key"
	SettingPortalAPISecret  = "pfsense_api_secret"
	SettingPortalSSID       = "wifi_ssid"
	SettingSupportPhone     = "support_phone"
	settingProviderEnabledF = "payment_%s_enabled"
)

// SecretMask replaces sensitive values in admin reads and audit snapshots.
const SecretMask = "********"

// SensitiveSettings are sealed at rest and masked on read.
var SensitiveSettings = map[string]bool{
	SettingPortalAPIKey:    true,
	SettingPortalAPISecret: true,
}

// Setting is one key/value row of process-wide configuration.
type Setting struct {
	Key         string    `json:"setting_key"`
	Value       string    `json:"setting_value"`
	Description *string   `json:"description"`
	UpdatedBy   *string   `json:"updated_by"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Settings is an immutable snapshot of the settings store, taken once at the
// start of an operation.
type Settings map[string]string

func (s Settings) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// VoucherPrefix returns the configured code prefix or fallback.
func (s Settings) VoucherPrefix(fallback string) string {
	if v := strings.TrimSpace(s[SettingVoucherPrefix]); v != "" {
		return strings.ToUpper(v)
	}
	return fallback
}

// ProviderEnabled reports whether payments via p are accepted. Providers are
// enabled unless explicitly switched off.
func (s Settings) ProviderEnabled(p PaymentProvider) bool {
	v, ok := s[ProviderSettingKey(p)]
	if !ok || strings.TrimSpace(v) == "" {
		return true
	}
	on, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return true
	}
	return on
}

func ProviderSettingKey(p PaymentProvider) string {
	return fmt.Sprintf(settingProviderEnabledF, p)
}

// Masked returns a copy with sensitive values replaced by SecretMask.
func (s Settings) Masked() map[string]string {
	out := make(map[string]string, len(s))
	for k, v := range s {
		if SensitiveSettings[k] && v != "" {
			out[k] = SecretMask
			continue
		}
		out[k] = v
	}
	return out
}

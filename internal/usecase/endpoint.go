package usecase

import (
	"strings"

	"wifi-voucher-portal/internal/domain/model"
	"wifi-voucher-portal/internal/domain/ports/adapter"
)

// resolveEndpoint reads the captive-portal endpoint from the settings
// snapshot, field by field, falling back to the static config.
func resolveEndpoint(s model.Settings, fallback adapter.Endpoint) adapter.Endpoint {
	pick := func(key, def string) string {
		if v := strings.TrimSpace(s[key]); v != "" {
			return v
		}
		return def
	}
	return adapter.Endpoint{
		BaseURL:   strings.TrimRight(pick(model.SettingPortalAPIURL, fallback.BaseURL), "/"),
		APIKey:    pick(model.SettingPortalAPIKey, fallback.APIKey),
		APISecret: pick(model.SettingPortalAPISecret, fallback.APISecret),
	}
}

package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wifi-voucher-portal/internal/domain"
)

const DefaultCurrency = "TZS"

var currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Package is a purchasable WiFi access plan: a data cap, an optional speed
// cap and a validity window counted from activation.
type Package struct {
	ID             string          `json:"id"`
	Name           string          `json:"package_name"`
	Description    *string         `json:"description"`
	DataLimitMB    int64           `json:"data_limit_mb"`
	SpeedLimitKbps *int            `json:"speed_limit_kbps"`
	ValidityHours  int             `json:"validity_hours"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	IsActive       bool            `json:"is_active"`
	CreatedBy      *string         `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (p *Package) IsZero() bool { return p == nil || p.ID == "" }

// Validity returns the access window granted on activation.
func (p *Package) Validity() time.Duration {
	return time.Duration(p.ValidityHours) * time.Hour
}

// DataLimitBytes converts the MB cap into bytes as the gateway expects.
func (p *Package) DataLimitBytes() int64 {
	return p.DataLimitMB * 1024 * 1024
}

// NewPackage validates and constructs an active package.
func NewPackage(name string, description *string, dataLimitMB int64, speedLimitKbps *int, validityHours int, price decimal.Decimal, currency string, createdBy *string) (*Package, error) {
	now := time.Now()
	p := &Package{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(name),
		Description:    description,
		DataLimitMB:    dataLimitMB,
		SpeedLimitKbps: speedLimitKbps,
		ValidityHours:  validityHours,
		Price:          price,
		Currency:       normalizeCurrency(currency),
		IsActive:       true,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Normalize trims the name and upper-cases the currency, defaulting to TZS.
func (p *Package) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Currency = normalizeCurrency(p.Currency)
}

// Validate checks the mutable fields of a package.
func (p *Package) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: package name is required", domain.ErrInvalidArgument)
	case p.DataLimitMB <= 0:
		return fmt.Errorf("%w: data limit must be positive", domain.ErrInvalidArgument)
	case p.ValidityHours <= 0:
		return fmt.Errorf("%w: validity hours must be positive", domain.ErrInvalidArgument)
	case !p.Price.IsPositive():
		return fmt.Errorf("%w: price must be positive", domain.ErrInvalidArgument)
	case !currencyRe.MatchString(p.Currency):
		return fmt.Errorf("%w: currency must be a 3-letter code", domain.ErrInvalidArgument)
	case p.SpeedLimitKbps != nil && *p.SpeedLimitKbps < 0:
		return fmt.Errorf("%w: speed limit cannot be negative", domain.ErrInvalidArgument)
	}
	return nil
}

// SameTerms reports whether o differs from p only in price and active flag.
// Referenced packages may only change those two fields.
func (p *Package) SameTerms(o *Package) bool {
	return p.Name == o.Name &&
		equalStrPtr(p.Description, o.Description) &&
		p.DataLimitMB == o.DataLimitMB &&
		equalIntPtr(p.SpeedLimitKbps, o.SpeedLimitKbps) &&
		p.ValidityHours == o.ValidityHours &&
		p.Currency == o.Currency
}

// Snapshot is the audit representation of a package.
func (p *Package) Snapshot() map[string]any {
	return map[string]any{
		"package_name":     p.Name,
		"description":      p.Description,
		"data_limit_mb":    p.DataLimitMB,
		"speed_limit_kbps": p.SpeedLimitKbps,
		"validity_hours":   p.ValidityHours,
		"price":            p.Price.String(),
		"currency":         p.Currency,
		"is_active":        p.IsActive,
	}
}

func normalizeCurrency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return DefaultCurrency
	}
	return c
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

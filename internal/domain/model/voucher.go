package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type VoucherStatus string

const (
	VoucherStatusAvailable VoucherStatus = "available" // generated by an admin, not yet sold
	VoucherStatusSold      VoucherStatus = "sold"      // minted by a completed payment
	VoucherStatusActivated VoucherStatus = "activated" // provisioned on the captive portal
	VoucherStatusExpired   VoucherStatus = "expired"
	VoucherStatusRevoked   VoucherStatus = "revoked"
)

func (s VoucherStatus) Valid() bool {
	switch s {
	case VoucherStatusAvailable, VoucherStatusSold, VoucherStatusActivated, VoucherStatusExpired, VoucherStatusRevoked:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s VoucherStatus) Terminal() bool {
	return s == VoucherStatusExpired || s == VoucherStatusRevoked
}

var AllVoucherStatuses = []VoucherStatus{
	VoucherStatusAvailable,
	VoucherStatusSold,
	VoucherStatusActivated,
	VoucherStatusExpired,
	VoucherStatusRevoked,
}

// Voucher is a single access code and its lifecycle.
type Voucher struct {
	ID                string              `json:"id"`
	Code              string              `json:"voucher_code"`
	PackageID         string              `json:"package_id"`
	PackageName       string              `json:"package_name,omitempty"` // read-side join only
	Status            VoucherStatus       `json:"status"`
	PurchaseReference *string             `json:"purchase_reference"`
	PhoneNumber       *string             `json:"phone_number"`
	PaymentProvider   *string             `json:"payment_provider"`
	AmountPaid        decimal.NullDecimal `json:"amount_paid"`
	PurchasedAt       *time.Time          `json:"purchased_at"`
	ActivatedAt       *time.Time          `json:"activated_at"`
	ExpiresAt         *time.Time          `json:"expires_at"`
	DeviceID          *string             `json:"mac_address"`
	GatewayUsername   *string             `json:"gateway_username"`
	CreatedBy         *string             `json:"created_by"`
	CreatedAt         time.Time           `json:"created_at"`
}

// EffectiveStatus derives "expired" for an activated voucher past its expiry,
// so readers agree even before the sweep has rewritten the row.
func (v *Voucher) EffectiveStatus(now time.Time) VoucherStatus {
	if v.Status == VoucherStatusActivated && v.ExpiresAt != nil && !now.Before(*v.ExpiresAt) {
		return VoucherStatusExpired
	}
	return v.Status
}

// GatewayUsernameFor derives the captive-portal login for a voucher code:
// "user_" + lower-cased code with hyphens stripped.
func GatewayUsernameFor(code string) string {
	return "user_" + strings.ToLower(strings.ReplaceAll(code, "-", ""))
}

// VoucherCheck is the purchaser-facing projection. It never carries the
// amount paid, phone number or gateway identity.
type VoucherCheck struct {
	Code          string        `json:"voucher_code"`
	Status        VoucherStatus `json:"status"`
	PackageName   string        `json:"package_name"`
	ValidityHours int           `json:"validity_hours"`
	PurchasedAt   *time.Time    `json:"purchased_at"`
	ActivatedAt   *time.Time    `json:"activated_at"`
	ExpiresAt     *time.Time    `json:"expires_at"`
}

func NewVoucherCheck(v *Voucher, p *Package, now time.Time) *VoucherCheck {
	return &VoucherCheck{
		Code:          v.Code,
		Status:        v.EffectiveStatus(now),
		PackageName:   p.Name,
		ValidityHours: p.ValidityHours,
		PurchasedAt:   v.PurchasedAt,
		ActivatedAt:   v.ActivatedAt,
		ExpiresAt:     v.ExpiresAt,
	}
}

// VoucherFilter narrows administrative voucher listings.
type VoucherFilter struct {
	Status    VoucherStatus
	PackageID string
	Search    string
	Limit     int
}

// VoucherStats holds counts per effective status.
type VoucherStats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Sold      int `json:"sold"`
	Activated int `json:"activated"`
	Expired   int `json:"expired"`
	Revoked   int `json:"revoked"`
}

func (s VoucherStats) ByStatus() map[VoucherStatus]int {
	return map[VoucherStatus]int{
		VoucherStatusAvailable: s.Available,
		VoucherStatusSold:      s.Sold,
		VoucherStatusActivated: s.Activated,
		VoucherStatusExpired:   s.Expired,
		VoucherStatusRevoked:   s.Revoked,
	}
}

// ActiveSession is an activated, unexpired voucher as shown to operators.
type ActiveSession struct {
	Code            string     `json:"voucher_code"`
	PhoneNumber     *string    `json:"phone_number"`
	GatewayUsername *string    `json:"gateway_username"`
	PackageName     string     `json:"package_name"`
	DataLimitMB     int64      `json:"data_limit_mb"`
	ActivatedAt     *time.Time `json:"activated_at"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

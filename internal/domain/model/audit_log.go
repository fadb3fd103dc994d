package model

import "time"

// Actor identifies who performed a mutation. System actors (the portal, the
// payment provider, background workers) have no AdminID.
type Actor struct {
	AdminID   *string
	Name      string
	IPAddress *string
	UserAgent *string
}

var (
	ActorPortal          = Actor{Name: "portal"}
	ActorPaymentProvider = Actor{Name: "payment-provider"}
	ActorSystem          = Actor{Name: "system"}
)

// AdminActor builds an Actor for an authenticated administrator.
func AdminActor(id, username, ip, userAgent string) Actor {
	a := Actor{AdminID: &id, Name: username}
	if ip != "" {
		a.IPAddress = &ip
	}
	if userAgent != "" {
		a.UserAgent = &userAgent
	}
	return a
}

// Audit actions.
const (
	AuditCreatePackage      = "create_package"
	AuditUpdatePackage      = "update_package"
	AuditDeletePackage      = "delete_package"
	AuditGenerateVouchers   = "generate_vouchers"
	AuditFulfillVoucher     = "fulfill_voucher"
	AuditActivateVoucher    = "activate_voucher"
	AuditRevokeVoucher      = "revoke_voucher"
	AuditInitiatePayment    = "initiate_transaction"
	AuditPaymentCallback    = "transaction_callback"
	AuditReverseTransaction = "reverse_transaction"
	AuditExpireTransactions = "expire_pending_transactions"
	AuditUpdateSettings     = "update_settings"
	AuditLogin              = "admin_login"
)

// AuditLog records one mutation with before/after snapshots.
type AuditLog struct {
	ID        string         `json:"id"`
	AdminID   *string        `json:"admin_user_id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	TableName string         `json:"table_name"`
	RecordID  *string        `json:"record_id"`
	OldValues map[string]any `json:"old_values"`
	NewValues map[string]any `json:"new_values"`
	IPAddress *string        `json:"ip_address"`
	UserAgent *string        `json:"user_agent"`
	CreatedAt time.Time      `json:"created_at"`
}

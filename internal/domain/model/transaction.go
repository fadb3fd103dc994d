package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"   // awaiting provider callback
	TransactionStatusCompleted TransactionStatus = "completed" // paid; voucher minted
	TransactionStatusFailed    TransactionStatus = "failed"    // provider reported failure or timed out
	TransactionStatusReversed  TransactionStatus = "reversed"  // manual reversal of a completed payment
)

type PaymentProvider string

const (
	ProviderMpesa       PaymentProvider = "mpesa"
	ProviderAirtelMoney PaymentProvider = "airtel_money"
	ProviderTigoPesa    PaymentProvider = "tigo_pesa"
	ProviderHaloPesa    PaymentProvider = "halopesa"
)

var PaymentProviders = []PaymentProvider{ProviderMpesa, ProviderAirtelMoney, ProviderTigoPesa, ProviderHaloPesa}

func (p PaymentProvider) Valid() bool {
	for _, x := range PaymentProviders {
		if p == x {
			return true
		}
	}
	return false
}

// Transaction is one mobile-money payment attempt for a package.
type Transaction struct {
	ID                    string            `json:"id"`
	Reference             string            `json:"transaction_reference"`
	PackageID             string            `json:"package_id"`
	PackageName           string            `json:"package_name,omitempty"` // kept after the package is deleted
	VoucherID             *string           `json:"voucher_id"`
	VoucherCode           *string           `json:"voucher_code,omitempty"` // read-side join only
	PhoneNumber           string            `json:"phone_number"`
	Amount                decimal.Decimal   `json:"amount"`
	Currency              string            `json:"currency"`
	PaymentProvider       PaymentProvider   `json:"payment_provider"`
	Status                TransactionStatus `json:"status"`
	ProviderTransactionID *string           `json:"provider_transaction_id"`
	CallbackPayload       json.RawMessage   `json:"callback_data,omitempty"`
	CallbackReceivedAt    *time.Time        `json:"callback_received_at"`
	ErrorMessage          *string           `json:"error_message"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// CallbackResult is what the ledger records when a provider reports back.
type CallbackResult struct {
	Status                TransactionStatus
	ProviderTransactionID *string
	Payload               json.RawMessage
	ErrorMessage          *string
	ReceivedAt            time.Time
}

// InitiatedPayment is handed back to the purchaser so they can complete the
// payment with their provider.
type InitiatedPayment struct {
	Reference       string          `json:"transaction_reference"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentProvider PaymentProvider `json:"payment_provider"`
	PackageName     string          `json:"package_name"`
	PhoneNumber     string          `json:"phone_number"`
}

// Fulfillment is the outcome of a provider callback.
type Fulfillment struct {
	Reference   string            `json:"transaction_reference"`
	Status      TransactionStatus `json:"status"`
	VoucherCode *string           `json:"voucher_code,omitempty"`
	Replayed    bool              `json:"replayed"`
}

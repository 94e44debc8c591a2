package wallet

import (
	"time"

	"github.com/google/uuid"
)

// Provider is a payment provider a creator can be paid out through.
type Provider string

const (
	ProviderStripe      Provider = "stripe"
	ProviderPaystack    Provider = "paystack"
	ProviderFlutterwave Provider = "flutterwave"
	ProviderPayPal      Provider = "paypal"
)

// ValidProvider reports whether p is a supported payout provider.
func ValidProvider(p Provider) bool {
	switch p {
	case ProviderStripe, ProviderPaystack, ProviderFlutterwave, ProviderPayPal:
		return true
	}
	return false
}

// Wallet is a creator's payment destination. At most one active wallet per
// creator per provider.
type Wallet struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CreatorID uuid.UUID `db:"creator_id" json:"creator_id"`
	Provider  Provider  `db:"provider" json:"provider"`
	Currency  string    `db:"currency" json:"currency"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Balance is the cached aggregate for one wallet. The invariant
// available == total_earnings - total_paid_out is what the finance auditor
// re-derives from raw transaction and payout rows.
type Balance struct {
	WalletID         uuid.UUID `db:"wallet_id" json:"wallet_id"`
	CreatorID        uuid.UUID `db:"creator_id" json:"creator_id"`
	Currency         string    `db:"currency" json:"currency"`
	TotalEarnings    int64     `db:"total_earnings" json:"total_earnings"`
	TotalPaidOut     int64     `db:"total_paid_out" json:"total_paid_out"`
	PendingPayout    int64     `db:"pending_payout" json:"pending_payout"`
	AvailableBalance int64     `db:"available_balance" json:"available_balance"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

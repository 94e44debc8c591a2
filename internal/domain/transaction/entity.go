package transaction

import (
	"time"

	"github.com/google/uuid"
)

// Status is the settlement state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusRefunded  Status = "refunded"
	StatusFailed    Status = "failed"
)

// FlowType mirrors the ledger flow the transaction settles under.
type FlowType string

const (
	FlowPhotoPurchase      FlowType = "photo_purchase"
	FlowTip                FlowType = "tip"
	FlowSubscriptionCharge FlowType = "subscription_charge"
)

// Transaction is one attendee charge routed to a creator's wallet. All
// amounts are minor currency units. StripeFeeMinor is the legacy provider-fee
// column kept for rows written before provider_fee_minor existed; readers
// fall back to it when the canonical column is null.
type Transaction struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	WalletID         uuid.UUID  `db:"wallet_id" json:"wallet_id"`
	CreatorID        uuid.UUID  `db:"creator_id" json:"creator_id"`
	AttendeeID       uuid.UUID  `db:"attendee_id" json:"attendee_id"`
	FlowType         FlowType   `db:"flow_type" json:"flow_type"`
	Provider         string     `db:"provider" json:"provider"`
	Currency         string     `db:"currency" json:"currency"`
	GrossMinor       int64      `db:"gross_minor" json:"gross_minor"`
	PlatformFeeMinor int64      `db:"platform_fee_minor" json:"platform_fee_minor"`
	ProviderFeeMinor *int64     `db:"provider_fee_minor" json:"provider_fee_minor,omitempty"`
	StripeFeeMinor   *int64     `db:"stripe_fee_minor" json:"stripe_fee_minor,omitempty"`
	NetMinor         int64      `db:"net_minor" json:"net_minor"`
	Status           Status     `db:"status" json:"status"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	SettledAt        *time.Time `db:"settled_at" json:"settled_at,omitempty"`
}

// EffectiveProviderFee returns the canonical provider fee, falling back to
// the legacy stripe fee column.
func (t Transaction) EffectiveProviderFee() int64 {
	if t.ProviderFeeMinor != nil {
		return *t.ProviderFeeMinor
	}
	if t.StripeFeeMinor != nil {
		return *t.StripeFeeMinor
	}
	return 0
}

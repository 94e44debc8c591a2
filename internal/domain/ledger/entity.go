package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FlowType classifies the business event a journal records.
type FlowType string

const (
	FlowPhotoPurchase           FlowType = "photo_purchase"
	FlowTip                     FlowType = "tip"
	FlowSubscriptionCharge      FlowType = "subscription_charge"
	FlowDropInCreditPurchase    FlowType = "drop_in_credit_purchase"
	FlowDropInCreditConsumption FlowType = "drop_in_credit_consumption"
	FlowPayout                  FlowType = "payout"
	FlowRefund                  FlowType = "refund"
)

// SourceKind names the upstream record a journal was derived from.
type SourceKind string

const (
	SourceTransaction       SourceKind = "transaction"
	SourcePayout            SourceKind = "payout"
	SourceDropInCreditUsage SourceKind = "drop_in_credit_usage"
)

// Direction is the side of a double-entry posting.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// Account codes. Stored lower-cased; the recorder normalizes on write.
const (
	AccountPlatformCashClearing    = "platform_cash_clearing"
	AccountCreatorPayable          = "creator_payable"
	AccountPlatformRevenue         = "platform_revenue"
	AccountProviderFeeExpense      = "provider_fee_expense"
	AccountRefundsContraRevenue    = "refunds_contra_revenue"
	AccountAttendeeCreditLiability = "attendee_credit_liability"
)

// Journal is one balanced accounting event. Immutable once recorded.
type Journal struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	IdempotencyKey string     `db:"idempotency_key" json:"idempotency_key"`
	SourceKind     SourceKind `db:"source_kind" json:"source_kind"`
	SourceID       string     `db:"source_id" json:"source_id"`
	FlowType       FlowType   `db:"flow_type" json:"flow_type"`
	Currency       string     `db:"currency" json:"currency"`
	Description    string     `db:"description" json:"description"`
	Provider       string     `db:"provider" json:"provider,omitempty"`
	Metadata       Metadata   `db:"metadata" json:"metadata"`
	OccurredAt     time.Time  `db:"occurred_at" json:"occurred_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Posting is one leg of a journal. AmountMinor is in minor currency units.
type Posting struct {
	ID               uuid.UUID `db:"id" json:"id"`
	JournalID        uuid.UUID `db:"journal_id" json:"journal_id"`
	AccountCode      string    `db:"account_code" json:"account_code"`
	Direction        Direction `db:"direction" json:"direction"`
	AmountMinor      int64     `db:"amount_minor" json:"amount_minor"`
	Currency         string    `db:"currency" json:"currency"`
	CounterpartyType string    `db:"counterparty_type" json:"counterparty_type,omitempty"`
	CounterpartyID   string    `db:"counterparty_id" json:"counterparty_id,omitempty"`
}

// Metadata is the journal metadata bag. The fields the finance core reads
// are typed; everything else rides along in Extra. It serializes as a single
// flat JSON object so rows written before the typed fields existed still load.
type Metadata struct {
	TransactionID       string
	DropInCreditUsageID string
	Action              string
	CreditUnitCents     int64
	Extra               map[string]interface{}
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.TransactionID != "" {
		out["transaction_id"] = m.TransactionID
	}
	if m.DropInCreditUsageID != "" {
		out["drop_in_credit_usage_id"] = m.DropInCreditUsageID
	}
	if m.Action != "" {
		out["action"] = m.Action
	}
	if m.CreditUnitCents != 0 {
		out["credit_unit_cents"] = m.CreditUnitCents
	}
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["transaction_id"].(string); ok {
		m.TransactionID = v
		delete(raw, "transaction_id")
	}
	if v, ok := raw["drop_in_credit_usage_id"].(string); ok {
		m.DropInCreditUsageID = v
		delete(raw, "drop_in_credit_usage_id")
	}
	if v, ok := raw["action"].(string); ok {
		m.Action = v
		delete(raw, "action")
	}
	if v, ok := raw["credit_unit_cents"].(float64); ok {
		m.CreditUnitCents = int64(v)
		delete(raw, "credit_unit_cents")
	}
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

// Value/Scan let sqlx read and write the metadata column as jsonb.
func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return m.UnmarshalJSON(v)
	case string:
		return m.UnmarshalJSON([]byte(v))
	}
	return ErrBadMetadata
}

package dropin

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// LotStatus is the lifecycle state of a credit purchase lot.
type LotStatus string

const (
	LotActive    LotStatus = "active"
	LotExhausted LotStatus = "exhausted"
)

// CreditLot is a batch of consumable drop-in credits owned by one attendee.
// CreditsRemaining only ever decreases after purchase; the lot flips to
// exhausted when it reaches zero. A nil ExpiresAt means the lot never expires.
type CreditLot struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	AttendeeID       uuid.UUID  `db:"attendee_id" json:"attendee_id"`
	CreditsPurchased int        `db:"credits_purchased" json:"credits_purchased"`
	CreditsRemaining int        `db:"credits_remaining" json:"credits_remaining"`
	Status           LotStatus  `db:"status" json:"status"`
	ExpiresAt        *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the lot can no longer be spent from.
func (l CreditLot) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// UsageRecord is the append-only audit trail of one deduction from one lot.
type UsageRecord struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AttendeeID  uuid.UUID `db:"attendee_id" json:"attendee_id"`
	LotID       uuid.UUID `db:"lot_id" json:"lot_id"`
	Action      string    `db:"action" json:"action"`
	CreditsUsed int       `db:"credits_used" json:"credits_used"`
	Metadata    Meta      `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Meta is the free-form metadata attached to usage records and the atomic
// consume call. Stored as jsonb.
type Meta map[string]interface{}

func (m Meta) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *Meta) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return errors.New("metadata column is not jsonb")
}

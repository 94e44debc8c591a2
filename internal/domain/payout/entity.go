package payout

import (
	"time"

	"github.com/google/uuid"
)

// Status is the payout lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Payout is a transfer of a creator's available balance to their wallet's
// payment destination. AmountMinor is in minor currency units.
type Payout struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	WalletID    uuid.UUID  `db:"wallet_id" json:"wallet_id"`
	CreatorID   uuid.UUID  `db:"creator_id" json:"creator_id"`
	Provider    string     `db:"provider" json:"provider"`
	Currency    string     `db:"currency" json:"currency"`
	AmountMinor int64      `db:"amount_minor" json:"amount_minor"`
	Status      Status     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

package notification

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies a notification for policy checks.
type Category string

const (
	CategoryPhotoMatch     Category = "photo_match"
	CategoryPurchase       Category = "purchase"
	CategoryTipReceived    Category = "tip_received"
	CategoryPayout         Category = "payout"
	CategoryCreditsGranted Category = "credits_granted"
	CategoryFollow         Category = "follow"
	CategoryUnfollow       Category = "unfollow"
)

// KnownCategories is the closed set the integrity audit validates against.
var KnownCategories = []Category{
	CategoryPhotoMatch,
	CategoryPurchase,
	CategoryTipReceived,
	CategoryPayout,
	CategoryCreditsGranted,
	CategoryFollow,
	CategoryUnfollow,
}

// Notification is one delivered in-app notification. DedupeKey collapses
// repeats of the same logical event; visible rows must carry a unique one.
// Unfollow events are recorded for audit but must never be visible.
type Notification struct {
	ID          uuid.UUID `db:"id" json:"id"`
	RecipientID uuid.UUID `db:"recipient_id" json:"recipient_id"`
	Category    Category  `db:"category" json:"category"`
	Title       string    `db:"title" json:"title"`
	DedupeKey   string    `db:"dedupe_key" json:"dedupe_key"`
	Visible     bool      `db:"visible" json:"visible"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

package dropin

import "time"

// ConsumeRequest is the POST /dropin/consume payload.
type ConsumeRequest struct {
	Action        string                 `json:"action" validate:"required,min=1,max=64"`
	CreditsNeeded int                    `json:"credits_needed" validate:"omitempty,gte=1,lte=100"`
	SourceID      string                 `json:"source_id" validate:"required,min=1,max=128"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// PurchaseRequest is the internal POST /dropin/purchase payload, invoked
// after the payment side has confirmed the charge.
type PurchaseRequest struct {
	Credits   int        `json:"credits" validate:"required,gte=1,lte=1000"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NormalizeRequest merges alias attendee identities into a canonical one.
type NormalizeRequest struct {
	CanonicalID string   `json:"canonical_id" validate:"required,uuid"`
	AliasIDs    []string `json:"alias_ids" validate:"required,min=1,dive,uuid"`
}

// BalanceResponse reports current availability.
type BalanceResponse struct {
	AvailableCredits int `json:"available_credits"`
}

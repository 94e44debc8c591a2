package ledger

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Skip reasons reported by the recorder.
const (
	ReasonDisabled             = "shadow-writes-disabled"
	ReasonInsufficientPostings = "insufficient-postings"
	ReasonSchemaUnavailable    = "ledger-schema-unavailable"
)

// RecordStore is the transactional journal insert primitive. It must enforce
// debit == credit and idempotency-key uniqueness, returning the existing
// journal id with replayed=true on a repeated key.
type RecordStore interface {
	InsertJournal(ctx context.Context, in RecordInput) (journalID uuid.UUID, replayed bool, err error)
}

// RecordInput is one journal submission.
type RecordInput struct {
	IdempotencyKey string
	SourceKind     SourceKind
	SourceID       string
	FlowType       FlowType
	Currency       string
	Description    string
	Provider       string
	Metadata       Metadata
	OccurredAt     time.Time // zero means now
	Postings       []Posting
}

// RecordResult reports what happened to a submission.
type RecordResult struct {
	Enabled   bool      `json:"enabled"`
	Skipped   bool      `json:"skipped,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	JournalID uuid.UUID `json:"journal_id,omitempty"`
	Replayed  bool      `json:"replayed,omitempty"`
}

// Recorder writes journals idempotently. It is safe for concurrent use.
type Recorder struct {
	store   RecordStore
	enabled bool

	// Suppresses repeated schema-unavailable warnings. Cosmetic only.
	schemaWarned atomic.Bool
}

func NewRecorder(store RecordStore, enabled bool) *Recorder {
	return &Recorder{store: store, enabled: enabled}
}

// Enabled reports whether ledger shadow-writes are on.
func (r *Recorder) Enabled() bool {
	return r.enabled
}

// Record normalizes and submits a journal. Skips (disabled flag, fewer than
// two postings after filtering, schema not deployed) are benign outcomes,
// not errors. Any other store failure propagates.
func (r *Recorder) Record(ctx context.Context, in RecordInput) (RecordResult, error) {
	if !r.enabled {
		return RecordResult{Enabled: false, Skipped: true, Reason: ReasonDisabled}, nil
	}

	if strings.TrimSpace(in.IdempotencyKey) == "" {
		return RecordResult{Enabled: true}, ErrMissingIdempotencyKey
	}

	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Postings = normalizePostings(in.Postings, in.Currency)

	if len(in.Postings) < 2 {
		// Some flows legitimately produce no ledger effect, e.g. fully
		// fee-free charges. Not an error.
		return RecordResult{Enabled: true, Skipped: true, Reason: ReasonInsufficientPostings}, nil
	}

	if in.OccurredAt.IsZero() {
		in.OccurredAt = time.Now().UTC()
	}

	journalID, replayed, err := r.store.InsertJournal(ctx, in)
	if err != nil {
		if errors.Is(err, ErrSchemaUnavailable) {
			// Staged rollout: the ledger tables may not be migrated in every
			// environment. Degrade to a no-op so money movement is unaffected.
			if r.schemaWarned.CompareAndSwap(false, true) {
				log.Warn().Err(err).Msg("ledger schema not deployed, journal writes are no-ops")
			}
			return RecordResult{Enabled: true, Skipped: true, Reason: ReasonSchemaUnavailable}, nil
		}
		return RecordResult{Enabled: true}, err
	}

	return RecordResult{Enabled: true, JournalID: journalID, Replayed: replayed}, nil
}

func normalizePostings(in []Posting, currency string) []Posting {
	out := make([]Posting, 0, len(in))
	for _, p := range in {
		p.AccountCode = strings.ToLower(strings.TrimSpace(p.AccountCode))
		if p.Currency == "" {
			p.Currency = currency
		} else {
			p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
		}
		if p.AccountCode == "" || p.AmountMinor <= 0 {
			continue
		}
		if p.Direction != Debit && p.Direction != Credit {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ConsumptionKey builds the deterministic idempotency key for a drop-in
// credit consumption so retried requests never double-post.
func ConsumptionKey(flow FlowType, attendeeID, action, sourceID string, creditsNeeded int) string {
	return strings.Join([]string{
		"ledger", string(flow), attendeeID, action, sourceID, strconv.Itoa(creditsNeeded),
	}, ":")
}

// SourceKey builds the idempotency key for journals keyed on a single
// upstream record (settlements, refunds, payouts).
func SourceKey(flow FlowType, sourceID string) string {
	return "ledger:" + string(flow) + ":" + sourceID
}

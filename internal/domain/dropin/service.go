package dropin

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/fotofair/fotofair-api/internal/domain/ledger"
)

const (
	cacheKeyPrefix = "dropin:credits:"
	cacheTTL       = 30 * time.Second
)

// Pricing supplies the monetary value of one drop-in credit. Consumption
// falls back to it when no explicit unit price rides in the metadata.
type Pricing interface {
	CreditUnitCents() int64
	Currency() string
}

// ConsumeInput describes one credit consumption attempt.
type ConsumeInput struct {
	AttendeeID    uuid.UUID
	Action        string
	CreditsNeeded int    // defaulted to 1
	SourceID      string // upstream record id, part of the idempotency key
	Meta          Meta
}

// ConsumeResult is the structured outcome. Consumed=false means the gated
// action must be denied; lot state may still have partially changed on the
// fallback path (reconciled into the counter before returning).
type ConsumeResult struct {
	Consumed         bool `json:"consumed"`
	AvailableCredits int  `json:"available_credits"`
}

// Service owns drop-in credit lots, the denormalized attendee counter and the
// consumption engine. The finance auditor never goes through here; it reads
// raw rows.
type Service struct {
	repo     Repository
	recorder *ledger.Recorder
	pricing  Pricing
	cache    *redis.Client // optional, nil disables caching
}

func NewService(repo Repository, recorder *ledger.Recorder, pricing Pricing, cache *redis.Client) *Service {
	return &Service{repo: repo, recorder: recorder, pricing: pricing, cache: cache}
}

// AvailableCredits resolves spendable credits across the given attendee
// identities: the larger of the unexpired-lot sum and the denormalized
// counter sum. Conservative on purpose: never under-report credits a user
// already paid for, even when lot bookkeeping lagged behind.
func (s *Service) AvailableCredits(ctx context.Context, ids ...uuid.UUID) (int, error) {
	if len(ids) == 1 {
		if cached, ok := s.cacheGet(ctx, ids[0]); ok {
			return cached, nil
		}
	}

	fallback, err := s.repo.FallbackCredits(ctx, ids)
	if err != nil {
		return 0, err
	}

	lots, err := s.repo.ActiveLots(ctx, ids)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	lotSum := 0
	for _, lot := range lots {
		if lot.Expired(now) {
			continue
		}
		lotSum += lot.CreditsRemaining
	}

	available := lotSum
	if fallback > available {
		available = fallback
	}

	if len(ids) == 1 {
		s.cacheSet(ctx, ids[0], available)
	}
	return available, nil
}

// Consume deducts credits for an action. Fast path is the backend's atomic
// procedure; when that errors or refuses, the fallback walks the attendee's
// lots soonest-expiring-first with per-lot optimistic guards.
func (s *Service) Consume(ctx context.Context, in ConsumeInput) (ConsumeResult, error) {
	if in.CreditsNeeded <= 0 {
		in.CreditsNeeded = 1
	}

	ok, err := s.repo.AtomicConsume(ctx, in.AttendeeID, in.Action, in.CreditsNeeded, in.Meta)
	if err == nil && ok {
		s.cacheInvalidate(ctx, in.AttendeeID)
		available, availErr := s.AvailableCredits(ctx, in.AttendeeID)
		if availErr != nil {
			return ConsumeResult{}, availErr
		}
		s.recordConsumptionJournal(ctx, in)
		return ConsumeResult{Consumed: true, AvailableCredits: available}, nil
	}
	if err != nil && !errors.Is(err, ErrAtomicConsumeFailed) {
		return ConsumeResult{}, err
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("attendee_id", in.AttendeeID.String()).
			Str("action", in.Action).
			Msg("atomic credit deduction unavailable, using fallback walk")
	}

	return s.consumeFallback(ctx, in)
}

// consumeFallback covers the known limitation of the atomic procedure with
// credits split across multiple lots. Each lot update is individually
// guarded; a lot that lost a race is skipped, not retried. Partial deduction
// followed by failure is possible under contention and is left in place;
// the counter rewrite below keeps the denormalized view truthful.
func (s *Service) consumeFallback(ctx context.Context, in ConsumeInput) (ConsumeResult, error) {
	available, err := s.AvailableCredits(ctx, in.AttendeeID)
	if err != nil {
		return ConsumeResult{}, err
	}
	if available < in.CreditsNeeded {
		return ConsumeResult{Consumed: false, AvailableCredits: available}, nil
	}

	lots, err := s.repo.ConsumableLots(ctx, in.AttendeeID)
	if err != nil {
		return ConsumeResult{}, err
	}

	needed := in.CreditsNeeded
	for _, lot := range lots {
		if needed == 0 {
			break
		}

		take := lot.CreditsRemaining
		if take > needed {
			take = needed
		}

		applied, err := s.repo.DeductFromLot(ctx, lot.ID, take)
		if err != nil {
			return ConsumeResult{}, err
		}
		if !applied {
			// Lost the optimistic guard to a concurrent consumer. Move on.
			continue
		}

		meta := Meta{"fallback_consume": true}
		for k, v := range in.Meta {
			meta[k] = v
		}
		rec := &UsageRecord{
			AttendeeID:  in.AttendeeID,
			LotID:       lot.ID,
			Action:      in.Action,
			CreditsUsed: take,
			Metadata:    meta,
		}
		if err := s.repo.InsertUsage(ctx, rec); err != nil {
			return ConsumeResult{}, err
		}

		needed -= take
	}

	// Reconciliation-on-write: re-derive the counter from lots regardless of
	// how the loop ended.
	remaining, err := s.reconcileCounter(ctx, in.AttendeeID)
	if err != nil {
		return ConsumeResult{}, err
	}

	if needed > 0 {
		log.Warn().
			Str("attendee_id", in.AttendeeID.String()).
			Str("action", in.Action).
			Int("requested", in.CreditsNeeded).
			Int("short_by", needed).
			Msg("fallback consumption could not satisfy the full request")
		return ConsumeResult{Consumed: false, AvailableCredits: remaining}, nil
	}

	s.recordConsumptionJournal(ctx, in)
	return ConsumeResult{Consumed: true, AvailableCredits: remaining}, nil
}

// GrantLot creates a purchase lot, refreshes the counter and shadow-writes a
// drop_in_credit_purchase journal.
func (s *Service) GrantLot(ctx context.Context, attendeeID uuid.UUID, credits int, expiresAt *time.Time) (*CreditLot, error) {
	if credits <= 0 {
		return nil, ErrInvalidAmount
	}

	lot := &CreditLot{
		AttendeeID:       attendeeID,
		CreditsPurchased: credits,
		CreditsRemaining: credits,
		Status:           LotActive,
		ExpiresAt:        expiresAt,
	}
	if err := s.repo.InsertLot(ctx, lot); err != nil {
		return nil, err
	}

	if _, err := s.reconcileCounter(ctx, attendeeID); err != nil {
		return nil, err
	}

	unit := s.pricing.CreditUnitCents()
	amount := unit * int64(credits)
	if amount > 0 {
		result, err := s.recorder.Record(ctx, ledger.RecordInput{
			IdempotencyKey: ledger.SourceKey(ledger.FlowDropInCreditPurchase, lot.ID.String()),
			SourceKind:     ledger.SourceDropInCreditUsage,
			SourceID:       lot.ID.String(),
			FlowType:       ledger.FlowDropInCreditPurchase,
			Currency:       s.pricing.Currency(),
			Description:    "drop-in credit purchase",
			Metadata:       ledger.Metadata{CreditUnitCents: unit},
			Postings: []ledger.Posting{
				{AccountCode: ledger.AccountPlatformCashClearing, Direction: ledger.Debit, AmountMinor: amount},
				{AccountCode: ledger.AccountAttendeeCreditLiability, Direction: ledger.Credit, AmountMinor: amount,
					CounterpartyType: "attendee", CounterpartyID: attendeeID.String()},
			},
		})
		if err != nil {
			log.Error().Err(err).Str("lot_id", lot.ID.String()).Msg("failed to record credit purchase journal")
		} else if result.Skipped {
			log.Debug().Str("reason", result.Reason).Msg("credit purchase journal skipped")
		}
	}

	return lot, nil
}

// NormalizeOwnership folds alias identities into the canonical attendee.
// The only place lot ownership is ever rewritten (duplicate-profile merges).
func (s *Service) NormalizeOwnership(ctx context.Context, canonicalID uuid.UUID, aliasIDs []uuid.UUID) (int, error) {
	if err := s.repo.ReassignOwnership(ctx, canonicalID, aliasIDs); err != nil {
		return 0, err
	}
	if err := s.repo.ZeroAttendeeCredits(ctx, aliasIDs); err != nil {
		return 0, err
	}
	for _, id := range aliasIDs {
		s.cacheInvalidate(ctx, id)
	}
	return s.reconcileCounter(ctx, canonicalID)
}

// reconcileCounter recomputes true availability from lots and overwrites the
// denormalized counter. Returns the recomputed value.
func (s *Service) reconcileCounter(ctx context.Context, attendeeID uuid.UUID) (int, error) {
	lots, err := s.repo.ActiveLots(ctx, []uuid.UUID{attendeeID})
	if err != nil {
		return 0, err
	}

	now := time.Now()
	remaining := 0
	for _, lot := range lots {
		if lot.Expired(now) {
			continue
		}
		remaining += lot.CreditsRemaining
	}

	if err := s.repo.SetAttendeeCredits(ctx, attendeeID, remaining); err != nil {
		return 0, err
	}
	s.cacheInvalidate(ctx, attendeeID)
	return remaining, nil
}

// recordConsumptionJournal shadow-writes the two-posting consumption journal.
// Ledger failures are operator-visible only; consumption has already
// succeeded and must not be failed retroactively.
func (s *Service) recordConsumptionJournal(ctx context.Context, in ConsumeInput) {
	unit := s.pricing.CreditUnitCents()
	currency := s.pricing.Currency()
	if v, ok := in.Meta["credit_unit_cents"]; ok {
		switch n := v.(type) {
		case int64:
			unit = n
		case int:
			unit = int64(n)
		case float64:
			unit = int64(n)
		}
	}

	amount := unit * int64(in.CreditsNeeded)
	if amount <= 0 {
		return
	}

	attendee := in.AttendeeID.String()
	result, err := s.recorder.Record(ctx, ledger.RecordInput{
		IdempotencyKey: ledger.ConsumptionKey(ledger.FlowDropInCreditConsumption, attendee, in.Action, in.SourceID, in.CreditsNeeded),
		SourceKind:     ledger.SourceDropInCreditUsage,
		SourceID:       in.SourceID,
		FlowType:       ledger.FlowDropInCreditConsumption,
		Currency:       currency,
		Description:    "drop-in credit consumption: " + in.Action,
		Metadata:       ledger.Metadata{Action: in.Action, CreditUnitCents: unit},
		Postings: []ledger.Posting{
			{AccountCode: ledger.AccountAttendeeCreditLiability, Direction: ledger.Debit, AmountMinor: amount,
				CounterpartyType: "attendee", CounterpartyID: attendee},
			{AccountCode: ledger.AccountPlatformRevenue, Direction: ledger.Credit, AmountMinor: amount},
		},
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("attendee_id", attendee).
			Str("action", in.Action).
			Msg("failed to record credit consumption journal")
		return
	}
	if result.Replayed {
		log.Debug().Str("journal_id", result.JournalID.String()).Msg("credit consumption journal replayed")
	}
}

func (s *Service) cacheKey(id uuid.UUID) string {
	return cacheKeyPrefix + id.String()
}

func (s *Service) cacheGet(ctx context.Context, id uuid.UUID) (int, bool) {
	if s.cache == nil {
		return 0, false
	}
	val, err := s.cache.Get(ctx, s.cacheKey(id)).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *Service) cacheSet(ctx context.Context, id uuid.UUID, credits int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(id), strconv.Itoa(credits), cacheTTL).Err(); err != nil {
		log.Debug().Err(err).Msg("failed to cache credit availability")
	}
}

func (s *Service) cacheInvalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey(id)).Err(); err != nil {
		log.Debug().Err(err).Msg("failed to invalidate credit availability cache")
	}
}

package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fotofair/fotofair-api/internal/domain/ledger"
	"github.com/fotofair/fotofair-api/internal/pkg/fees"
)

// Store is the persistence surface the settlement service needs.
type Store interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
}

// WalletRefresher rebuilds a wallet's cached aggregates after money moved.
type WalletRefresher interface {
	Refresh(ctx context.Context, walletID uuid.UUID) error
}

// JournalRecorder is the idempotent ledger write entry point.
type JournalRecorder interface {
	Record(ctx context.Context, in ledger.RecordInput) (ledger.RecordResult, error)
}

type Service struct {
	store    Store
	fees     *fees.Calculator
	recorder JournalRecorder
	wallets  WalletRefresher
}

func NewService(store Store, calc *fees.Calculator, recorder JournalRecorder, wallets WalletRefresher) *Service {
	return &Service{store: store, fees: calc, recorder: recorder, wallets: wallets}
}

// CreateInput describes a new pending charge.
type CreateInput struct {
	WalletID   uuid.UUID
	CreatorID  uuid.UUID
	AttendeeID uuid.UUID
	FlowType   FlowType
	Provider   string
	Currency   string
	GrossMinor int64
}

// Create records a pending transaction with its fee split precomputed.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Transaction, error) {
	if in.GrossMinor <= 0 {
		return nil, ErrInvalidAmount
	}

	split := s.fees.ForCharge(in.GrossMinor, in.Provider)
	providerFee := split.ProviderFeeMinor

	t := &Transaction{
		WalletID:         in.WalletID,
		CreatorID:        in.CreatorID,
		AttendeeID:       in.AttendeeID,
		FlowType:         in.FlowType,
		Provider:         in.Provider,
		Currency:         in.Currency,
		GrossMinor:       in.GrossMinor,
		PlatformFeeMinor: split.PlatformFeeMinor,
		ProviderFeeMinor: &providerFee,
		NetMinor:         split.NetMinor,
		Status:           StatusPending,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Settle marks a pending transaction succeeded, shadow-writes the settlement
// journal and refreshes the wallet cache. Safe to call twice: the status
// guard makes the second call a no-op and the journal key replays.
func (s *Service) Settle(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	moved, err := s.store.TransitionStatus(ctx, id, StatusPending, StatusSucceeded)
	if err != nil {
		return nil, err
	}
	if !moved && t.Status != StatusSucceeded {
		return nil, ErrNotSettleable
	}
	t.Status = StatusSucceeded
	now := time.Now().UTC()
	if t.SettledAt == nil {
		t.SettledAt = &now
	}

	s.recordJournal(ctx, t, ledger.FlowType(t.FlowType),
		ledger.SourceKey(ledger.FlowType(t.FlowType), t.ID.String()),
		ledger.BuildSettlementCreditPostings(s.settlementAmounts(t)),
		"settlement: "+string(t.FlowType))

	if err := s.wallets.Refresh(ctx, t.WalletID); err != nil {
		return nil, err
	}
	return t, nil
}

// Refund reverses a settled transaction with the mirror posting set.
func (s *Service) Refund(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	moved, err := s.store.TransitionStatus(ctx, id, StatusSucceeded, StatusRefunded)
	if err != nil {
		return nil, err
	}
	if !moved && t.Status != StatusRefunded {
		return nil, ErrNotRefundable
	}
	t.Status = StatusRefunded

	s.recordJournal(ctx, t, ledger.FlowRefund,
		ledger.SourceKey(ledger.FlowRefund, t.ID.String()),
		ledger.BuildSettlementRefundPostings(s.settlementAmounts(t)),
		"refund: "+string(t.FlowType))

	if err := s.wallets.Refresh(ctx, t.WalletID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) settlementAmounts(t *Transaction) ledger.SettlementAmounts {
	return ledger.SettlementAmounts{
		Currency:         t.Currency,
		CreatorID:        t.CreatorID.String(),
		GrossMinor:       t.GrossMinor,
		PlatformFeeMinor: t.PlatformFeeMinor,
		ProviderFeeMinor: t.EffectiveProviderFee(),
		NetMinor:         t.NetMinor,
	}
}

// recordJournal shadow-writes. Failures here never fail the money movement;
// the reconciliation audit surfaces missing journals to operators.
func (s *Service) recordJournal(ctx context.Context, t *Transaction, flow ledger.FlowType, key string, postings []ledger.Posting, description string) {
	result, err := s.recorder.Record(ctx, ledger.RecordInput{
		IdempotencyKey: key,
		SourceKind:     ledger.SourceTransaction,
		SourceID:       t.ID.String(),
		FlowType:       flow,
		Currency:       t.Currency,
		Description:    description,
		Provider:       t.Provider,
		Metadata:       ledger.Metadata{TransactionID: t.ID.String()},
		Postings:       postings,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("transaction_id", t.ID.String()).
			Str("flow", string(flow)).
			Msg("failed to record settlement journal")
		return
	}
	if result.Skipped {
		log.Debug().Str("reason", result.Reason).Str("transaction_id", t.ID.String()).Msg("settlement journal skipped")
	}
}

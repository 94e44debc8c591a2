package payout

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fotofair/fotofair-api/internal/domain/ledger"
)

// BalanceReader exposes the wallet cache the payout request checks against.
type BalanceReader interface {
	AvailableBalance(ctx context.Context, walletID uuid.UUID) (int64, error)
}

// WalletRefresher rebuilds a wallet's cached aggregates after money moved.
type WalletRefresher interface {
	Refresh(ctx context.Context, walletID uuid.UUID) error
}

// JournalRecorder is the idempotent ledger write entry point.
type JournalRecorder interface {
	Record(ctx context.Context, in ledger.RecordInput) (ledger.RecordResult, error)
}

// Store is the persistence surface the payout service needs.
type Store interface {
	Create(ctx context.Context, p *Payout) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payout, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
}

type Service struct {
	store    Store
	balances BalanceReader
	wallets  WalletRefresher
	recorder JournalRecorder
}

func NewService(store Store, balances BalanceReader, wallets WalletRefresher, recorder JournalRecorder) *Service {
	return &Service{store: store, balances: balances, wallets: wallets, recorder: recorder}
}

// Request opens a pending payout against a wallet's available balance.
func (s *Service) Request(ctx context.Context, p *Payout) (*Payout, error) {
	if p.AmountMinor <= 0 {
		return nil, ErrInvalidAmount
	}

	available, err := s.balances.AvailableBalance(ctx, p.WalletID)
	if err != nil {
		return nil, err
	}
	if available < p.AmountMinor {
		return nil, ErrInsufficientBalance
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	if err := s.wallets.Refresh(ctx, p.WalletID); err != nil {
		return nil, err
	}
	return p, nil
}

// Complete marks a pending payout completed, shadow-writes the payout
// journal (creator payable is settled against cash clearing) and refreshes
// the wallet cache.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Payout, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	moved, err := s.store.TransitionStatus(ctx, id, StatusPending, StatusCompleted)
	if err != nil {
		return nil, err
	}
	if !moved && p.Status != StatusCompleted {
		return nil, ErrNotCompletable
	}
	p.Status = StatusCompleted

	result, err := s.recorder.Record(ctx, ledger.RecordInput{
		IdempotencyKey: ledger.SourceKey(ledger.FlowPayout, p.ID.String()),
		SourceKind:     ledger.SourcePayout,
		SourceID:       p.ID.String(),
		FlowType:       ledger.FlowPayout,
		Currency:       p.Currency,
		Description:    "creator payout",
		Provider:       p.Provider,
		Postings: []ledger.Posting{
			{AccountCode: ledger.AccountCreatorPayable, Direction: ledger.Debit, AmountMinor: p.AmountMinor,
				CounterpartyType: "creator", CounterpartyID: p.CreatorID.String()},
			{AccountCode: ledger.AccountPlatformCashClearing, Direction: ledger.Credit, AmountMinor: p.AmountMinor},
		},
	})
	if err != nil {
		log.Error().Err(err).Str("payout_id", p.ID.String()).Msg("failed to record payout journal")
	} else if result.Skipped {
		log.Debug().Str("reason", result.Reason).Str("payout_id", p.ID.String()).Msg("payout journal skipped")
	}

	if err := s.wallets.Refresh(ctx, p.WalletID); err != nil {
		return nil, err
	}
	return p, nil
}

// Fail marks a pending payout failed and releases the pending amount back
// into the wallet cache.
func (s *Service) Fail(ctx context.Context, id uuid.UUID) (*Payout, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	moved, err := s.store.TransitionStatus(ctx, id, StatusPending, StatusFailed)
	if err != nil {
		return nil, err
	}
	if !moved && p.Status != StatusFailed {
		return nil, ErrNotCompletable
	}
	p.Status = StatusFailed

	if err := s.wallets.Refresh(ctx, p.WalletID); err != nil {
		return nil, err
	}
	return p, nil
}

package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store is the persistence surface the wallet service needs.
type Store interface {
	Ensure(ctx context.Context, creatorID uuid.UUID, provider Provider, currency string) (*Wallet, error)
	GetBalance(ctx context.Context, walletID uuid.UUID) (*Balance, error)
	Recompute(ctx context.Context, walletID uuid.UUID) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Ensure creates the creator's wallet and its empty balance row on first use
// and returns the existing active wallet on every later call.
func (s *Service) Ensure(ctx context.Context, creatorID uuid.UUID, provider Provider, currency string) (*Wallet, error) {
	if !ValidProvider(provider) {
		return nil, ErrInvalidProvider
	}
	return s.store.Ensure(ctx, creatorID, provider, currency)
}

func (s *Service) GetBalance(ctx context.Context, walletID uuid.UUID) (*Balance, error) {
	return s.store.GetBalance(ctx, walletID)
}

// AvailableBalance returns the cached spendable amount for one wallet.
func (s *Service) AvailableBalance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	b, err := s.store.GetBalance(ctx, walletID)
	if err != nil {
		return 0, err
	}
	return b.AvailableBalance, nil
}

// Refresh rebuilds the cached aggregates for a wallet from raw rows.
func (s *Service) Refresh(ctx context.Context, walletID uuid.UUID) error {
	if err := s.store.Recompute(ctx, walletID); err != nil {
		return err
	}
	log.Debug().Str("wallet_id", walletID.String()).Msg("wallet balance recomputed")
	return nil
}

package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Ensure creates the wallet and an empty balance row if missing, returning
// the wallet either way.
func (r *Repository) Ensure(ctx context.Context, creatorID uuid.UUID, provider Provider, currency string) (*Wallet, error) {
	if !ValidProvider(provider) {
		return nil, ErrInvalidProvider
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx2, `
		INSERT INTO wallets (id, creator_id, provider, currency, is_active)
		VALUES (gen_random_uuid(), $1, $2, $3, TRUE)
		ON CONFLICT (creator_id, provider) WHERE is_active DO NOTHING
	`, creatorID, provider, currency); err != nil {
		return nil, fmt.Errorf("%w: ensure wallet", ErrInternal)
	}

	var w Wallet
	if err := tx.GetContext(ctx2, &w, `
		SELECT id, creator_id, provider, currency, is_active, created_at
		FROM wallets
		WHERE creator_id = $1 AND provider = $2 AND is_active
	`, creatorID, provider); err != nil {
		return nil, fmt.Errorf("%w: load wallet", ErrInternal)
	}

	if _, err := tx.ExecContext(ctx2, `
		INSERT INTO wallet_balances (wallet_id, total_earnings, total_paid_out, pending_payout, available_balance)
		VALUES ($1, 0, 0, 0, 0)
		ON CONFLICT (wallet_id) DO NOTHING
	`, w.ID); err != nil {
		return nil, fmt.Errorf("%w: ensure balance row", ErrInternal)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return &w, nil
}

func (r *Repository) GetByID(ctx context.Context, walletID uuid.UUID) (*Wallet, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w Wallet
	err := r.db.GetContext(ctx2, &w, `
		SELECT id, creator_id, provider, currency, is_active, created_at
		FROM wallets WHERE id = $1
	`, walletID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get wallet", ErrInternal)
	}
	return &w, nil
}

// Recompute rebuilds one wallet's cached aggregates from raw transaction and
// payout rows. Called after every settlement, refund and payout transition.
func (r *Repository) Recompute(ctx context.Context, walletID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE wallet_balances wb
		SET total_earnings = earned.total,
		    total_paid_out = paid.total,
		    pending_payout = pending.total,
		    available_balance = earned.total - paid.total,
		    updated_at = now()
		FROM (
			SELECT COALESCE(SUM(net_minor), 0) AS total
			FROM transactions WHERE wallet_id = $1 AND status = 'succeeded'
		) earned,
		(
			SELECT COALESCE(SUM(amount_minor), 0) AS total
			FROM payouts WHERE wallet_id = $1 AND status = 'completed'
		) paid,
		(
			SELECT COALESCE(SUM(amount_minor), 0) AS total
			FROM payouts WHERE wallet_id = $1 AND status = 'pending'
		) pending
		WHERE wb.wallet_id = $1
	`, walletID)
	if err != nil {
		return fmt.Errorf("%w: recompute balance", ErrInternal)
	}
	return nil
}

// ListBalances returns cached balances joined with wallet identity, bounded
// by limit. Consumed by the finance auditor and the creator dashboard.
func (r *Repository) ListBalances(ctx context.Context, limit int) ([]Balance, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 500
	}

	balances := make([]Balance, 0)
	err := r.db.SelectContext(ctx2, &balances, `
		SELECT wb.wallet_id, w.creator_id, w.currency,
		       wb.total_earnings, wb.total_paid_out, wb.pending_payout,
		       wb.available_balance, wb.updated_at
		FROM wallet_balances wb
		JOIN wallets w ON w.id = wb.wallet_id
		WHERE w.is_active
		ORDER BY wb.updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list balances", ErrInternal)
	}
	return balances, nil
}

// GetBalance returns the cached balance for one wallet.
func (r *Repository) GetBalance(ctx context.Context, walletID uuid.UUID) (*Balance, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var b Balance
	err := r.db.GetContext(ctx2, &b, `
		SELECT wb.wallet_id, w.creator_id, w.currency,
		       wb.total_earnings, wb.total_paid_out, wb.pending_payout,
		       wb.available_balance, wb.updated_at
		FROM wallet_balances wb
		JOIN wallets w ON w.id = wb.wallet_id
		WHERE wb.wallet_id = $1
	`, walletID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get balance", ErrInternal)
	}
	return &b, nil
}

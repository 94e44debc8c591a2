package payout

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

func (r *Repository) Create(ctx context.Context, p *Payout) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO payouts (
			id, wallet_id, creator_id, provider, currency, amount_minor, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.WalletID, p.CreatorID, p.Provider, p.Currency, p.AmountMinor, p.Status, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert payout", ErrInternal)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Payout, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Payout
	err := r.db.GetContext(ctx2, &p, `
		SELECT id, wallet_id, creator_id, provider, currency, amount_minor,
		       status, created_at, completed_at
		FROM payouts
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get payout", ErrInternal)
	}
	return &p, nil
}

// TransitionStatus guards the state move so duplicate completion callbacks
// are no-ops.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE payouts
		SET status = $3,
		    completed_at = CASE WHEN $3 = 'completed' THEN now() ELSE completed_at END
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("%w: transition status", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows > 0, nil
}

// ListByStatusSince returns payouts in the given states created at or after
// since, oldest first, bounded by limit. Consumed by the auditor.
func (r *Repository) ListByStatusSince(ctx context.Context, statuses []Status, since time.Time, limit int) ([]Payout, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 500
	}

	states := make([]string, len(statuses))
	for i, s := range statuses {
		states[i] = string(s)
	}

	payouts := make([]Payout, 0)
	query, args, err := sqlx.In(`
		SELECT id, wallet_id, creator_id, provider, currency, amount_minor,
		       status, created_at, completed_at
		FROM payouts
		WHERE status IN (?) AND created_at >= ?
		ORDER BY created_at ASC
		LIMIT ?
	`, states, since, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: build query", ErrInternal)
	}

	if err := r.db.SelectContext(ctx2, &payouts, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%w: list payouts", ErrInternal)
	}
	return payouts, nil
}

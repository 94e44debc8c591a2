package transaction

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

func (r *Repository) Create(ctx context.Context, t *Transaction) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO transactions (
			id, wallet_id, creator_id, attendee_id, flow_type, provider,
			currency, gross_minor, platform_fee_minor, provider_fee_minor,
			net_minor, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, t.ID, t.WalletID, t.CreatorID, t.AttendeeID, t.FlowType, t.Provider,
		t.Currency, t.GrossMinor, t.PlatformFeeMinor, t.ProviderFeeMinor,
		t.NetMinor, t.Status, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert transaction", ErrInternal)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Transaction
	err := r.db.GetContext(ctx2, &t, `
		SELECT id, wallet_id, creator_id, attendee_id, flow_type, provider,
		       currency, gross_minor, platform_fee_minor, provider_fee_minor,
		       stripe_fee_minor, net_minor, status, created_at, settled_at
		FROM transactions
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get transaction", ErrInternal)
	}
	return &t, nil
}

// TransitionStatus moves a transaction between states with a guard on the
// expected current state, so a duplicate webhook delivery is a no-op.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE transactions
		SET status = $3,
		    settled_at = CASE WHEN $3 = 'succeeded' THEN now() ELSE settled_at END
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

// ListByStatusSince returns transactions in the given states created at or
// after since, oldest first, bounded by limit. Consumed by the auditor.
func (r *Repository) ListByStatusSince(ctx context.Context, statuses []Status, since time.Time, limit int) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 500
	}

	states := make([]string, len(statuses))
	for i, s := range statuses {
		states[i] = string(s)
	}

	txns := make([]Transaction, 0)
	query, args, err := sqlx.In(`
		SELECT id, wallet_id, creator_id, attendee_id, flow_type, provider,
		       currency, gross_minor, platform_fee_minor, provider_fee_minor,
		       stripe_fee_minor, net_minor, status, created_at, settled_at
		FROM transactions
		WHERE status IN (?) AND created_at >= ?
		ORDER BY created_at ASC
		LIMIT ?
	`, states, since, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: build query", ErrInternal)
	}

	if err := r.db.SelectContext(ctx2, &txns, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}
	return txns, nil
}

package dropin

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository is the storage surface the credit service needs. Split out so
// the consumption engine can be exercised against an in-memory fake.
type Repository interface {
	// FallbackCredits sums the denormalized attendee counters. Legacy
	// accounts may have a counter but no backfilled lots.
	FallbackCredits(ctx context.Context, ids []uuid.UUID) (int, error)

	// ActiveLots returns lots with status=active and credits_remaining > 0
	// for the given attendees, expired or not. Expiry is the caller's call.
	ActiveLots(ctx context.Context, ids []uuid.UUID) ([]CreditLot, error)

	// ConsumableLots returns spendable lots for one attendee ordered
	// soonest-expiring-first, then oldest-first.
	ConsumableLots(ctx context.Context, attendeeID uuid.UUID) ([]CreditLot, error)

	// AtomicConsume invokes the backend deduction procedure. Returns false
	// when the procedure reports it could not deduct.
	AtomicConsume(ctx context.Context, attendeeID uuid.UUID, action string, creditsNeeded int, meta Meta) (bool, error)

	// DeductFromLot applies a guarded single-row deduction. Returns false
	// when the optimistic precondition (remaining >= take) no longer held.
	DeductFromLot(ctx context.Context, lotID uuid.UUID, take int) (bool, error)

	InsertLot(ctx context.Context, lot *CreditLot) error
	InsertUsage(ctx context.Context, rec *UsageRecord) error

	// SetAttendeeCredits overwrites the denormalized counter.
	SetAttendeeCredits(ctx context.Context, attendeeID uuid.UUID, credits int) error

	// ReassignOwnership moves lots and usage records from the alias
	// attendees onto the canonical one.
	ReassignOwnership(ctx context.Context, canonicalID uuid.UUID, aliasIDs []uuid.UUID) error

	ZeroAttendeeCredits(ctx context.Context, ids []uuid.UUID) error
}

// PostgresRepository implements Repository on sqlx.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FallbackCredits(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	err := r.db.GetContext(ctx2, &total, `
		SELECT COALESCE(SUM(drop_in_credits), 0)
		FROM attendees
		WHERE id = ANY($1)
	`, pq.Array(uuidStrings(ids)))
	if err != nil {
		return 0, fmt.Errorf("%w: fallback credits", ErrInternal)
	}
	return total, nil
}

func (r *PostgresRepository) ActiveLots(ctx context.Context, ids []uuid.UUID) ([]CreditLot, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	lots := make([]CreditLot, 0)
	err := r.db.SelectContext(ctx2, &lots, `
		SELECT id, attendee_id, credits_purchased, credits_remaining, status, expires_at, created_at
		FROM drop_in_credit_lots
		WHERE attendee_id = ANY($1) AND status = 'active' AND credits_remaining > 0
	`, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("%w: active lots", ErrInternal)
	}
	return lots, nil
}

func (r *PostgresRepository) ConsumableLots(ctx context.Context, attendeeID uuid.UUID) ([]CreditLot, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	lots := make([]CreditLot, 0)
	err := r.db.SelectContext(ctx2, &lots, `
		SELECT id, attendee_id, credits_purchased, credits_remaining, status, expires_at, created_at
		FROM drop_in_credit_lots
		WHERE attendee_id = $1
		  AND status = 'active'
		  AND credits_remaining > 0
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY expires_at ASC NULLS LAST, created_at ASC
	`, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("%w: consumable lots", ErrInternal)
	}
	return lots, nil
}

func (r *PostgresRepository) AtomicConsume(ctx context.Context, attendeeID uuid.UUID, action string, creditsNeeded int, meta Meta) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ok bool
	err := r.db.GetContext(ctx2, &ok,
		`SELECT consume_drop_in_credits($1, $2, $3, $4)`,
		attendeeID, action, creditsNeeded, meta)
	if err != nil {
		// Known limitation: the legacy procedure mishandles consumption that
		// spans multiple lots. The service falls back to the application walk.
		return false, fmt.Errorf("%w: %v", ErrAtomicConsumeFailed, err)
	}
	return ok, nil
}

func (r *PostgresRepository) DeductFromLot(ctx context.Context, lotID uuid.UUID, take int) (bool, error) {
	if take <= 0 {
		return false, ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Optimistic guard: the WHERE clause loses against a concurrent deduction
	// and the caller simply moves on to the next lot.
	result, err := r.db.ExecContext(ctx2, `
		UPDATE drop_in_credit_lots
		SET credits_remaining = credits_remaining - $2,
		    status = CASE WHEN credits_remaining - $2 <= 0 THEN 'exhausted' ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND status = 'active' AND credits_remaining >= $2
	`, lotID, take)
	if err != nil {
		return false, fmt.Errorf("%w: deduct from lot", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows > 0, nil
}

func (r *PostgresRepository) InsertLot(ctx context.Context, lot *CreditLot) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if lot.ID == uuid.Nil {
		lot.ID = uuid.New()
	}
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = time.Now().UTC()
	}
	if lot.Status == "" {
		lot.Status = LotActive
	}

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO drop_in_credit_lots (
			id, attendee_id, credits_purchased, credits_remaining, status, expires_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, lot.ID, lot.AttendeeID, lot.CreditsPurchased, lot.CreditsRemaining, lot.Status, lot.ExpiresAt, lot.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert lot", ErrInternal)
	}
	return nil
}

func (r *PostgresRepository) InsertUsage(ctx context.Context, rec *UsageRecord) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO drop_in_credit_usage (
			id, attendee_id, lot_id, action, credits_used, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.AttendeeID, rec.LotID, rec.Action, rec.CreditsUsed, rec.Metadata)
	if err != nil {
		return fmt.Errorf("%w: insert usage record", ErrInternal)
	}
	return nil
}

func (r *PostgresRepository) SetAttendeeCredits(ctx context.Context, attendeeID uuid.UUID, credits int) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE attendees SET drop_in_credits = $2, updated_at = now() WHERE id = $1
	`, attendeeID, credits)
	if err != nil {
		return fmt.Errorf("%w: set attendee credits", ErrInternal)
	}
	return nil
}

func (r *PostgresRepository) ReassignOwnership(ctx context.Context, canonicalID uuid.UUID, aliasIDs []uuid.UUID) error {
	if len(aliasIDs) == 0 {
		return nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	aliases := pq.Array(uuidStrings(aliasIDs))

	if _, err := tx.ExecContext(ctx2, `
		UPDATE drop_in_credit_lots SET attendee_id = $1, updated_at = now()
		WHERE attendee_id = ANY($2)
	`, canonicalID, aliases); err != nil {
		return fmt.Errorf("%w: reassign lots", ErrInternal)
	}

	if _, err := tx.ExecContext(ctx2, `
		UPDATE drop_in_credit_usage SET attendee_id = $1
		WHERE attendee_id = ANY($2)
	`, canonicalID, aliases); err != nil {
		return fmt.Errorf("%w: reassign usage records", ErrInternal)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

func (r *PostgresRepository) ZeroAttendeeCredits(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE attendees SET drop_in_credits = 0, updated_at = now() WHERE id = ANY($1)
	`, pq.Array(uuidStrings(ids)))
	if err != nil {
		return fmt.Errorf("%w: zero attendee credits", ErrInternal)
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

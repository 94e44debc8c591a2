package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 5 * time.Second

// postingChunkSize bounds the id list passed to a single postings query.
const postingChunkSize = 1000

// Repository persists journals and postings in Postgres.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// InsertJournal atomically writes one journal with its postings. It enforces
// debit == credit before touching the database and relies on the unique
// idempotency key for replay detection: a conflicting insert returns the
// existing journal id with replayed=true and writes nothing.
func (r *Repository) InsertJournal(ctx context.Context, in RecordInput) (uuid.UUID, bool, error) {
	var debits, credits int64
	for _, p := range in.Postings {
		switch p.Direction {
		case Debit:
			debits += p.AmountMinor
		case Credit:
			credits += p.AmountMinor
		}
	}
	if debits != credits {
		return uuid.Nil, false, fmt.Errorf("%w: debits=%d credits=%d", ErrUnbalancedJournal, debits, credits)
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	var journalID uuid.UUID
	err = tx.QueryRowContext(ctx2, `
		INSERT INTO financial_journals (
			id, idempotency_key, source_kind, source_id, flow_type,
			currency, description, provider, metadata, occurred_at
		)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`, in.IdempotencyKey, in.SourceKind, in.SourceID, in.FlowType,
		in.Currency, in.Description, in.Provider, in.Metadata, in.OccurredAt).Scan(&journalID)

	if errors.Is(err, sql.ErrNoRows) {
		// Replay: the key already exists. Return the recorded journal id
		// without writing any postings.
		var existingID uuid.UUID
		if err := tx.GetContext(ctx2, &existingID,
			`SELECT id FROM financial_journals WHERE idempotency_key = $1`, in.IdempotencyKey); err != nil {
			return uuid.Nil, false, mapSchemaErr(err)
		}
		return existingID, true, nil
	}
	if err != nil {
		return uuid.Nil, false, mapSchemaErr(err)
	}

	for _, p := range in.Postings {
		if _, err := tx.ExecContext(ctx2, `
			INSERT INTO financial_postings (
				id, journal_id, account_code, direction, amount_minor,
				currency, counterparty_type, counterparty_id
			)
			VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
		`, journalID, p.AccountCode, p.Direction, p.AmountMinor,
			p.Currency, p.CounterpartyType, p.CounterpartyID); err != nil {
			return uuid.Nil, false, mapSchemaErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, false, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return journalID, false, nil
}

// ListJournalsSince returns journals with occurred_at >= since, newest first.
func (r *Repository) ListJournalsSince(ctx context.Context, since time.Time, limit int) ([]Journal, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 500
	}

	journals := make([]Journal, 0)
	err := r.db.SelectContext(ctx2, &journals, `
		SELECT id, idempotency_key, source_kind, source_id, flow_type,
		       currency, COALESCE(description, '') AS description,
		       COALESCE(provider, '') AS provider, metadata, occurred_at, created_at
		FROM financial_journals
		WHERE occurred_at >= $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, mapSchemaErr(err)
	}
	return journals, nil
}

// ListPostingsByJournalIDs loads postings for the given journals, chunking
// the id list to bound individual query size.
func (r *Repository) ListPostingsByJournalIDs(ctx context.Context, journalIDs []uuid.UUID) ([]Posting, error) {
	postings := make([]Posting, 0, len(journalIDs)*2)

	for start := 0; start < len(journalIDs); start += postingChunkSize {
		end := start + postingChunkSize
		if end > len(journalIDs) {
			end = len(journalIDs)
		}
		chunk := journalIDs[start:end]

		ids := make([]string, len(chunk))
		for i, id := range chunk {
			ids[i] = id.String()
		}

		ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
		batch := make([]Posting, 0, len(chunk)*2)
		err := r.db.SelectContext(ctx2, &batch, `
			SELECT id, journal_id, account_code, direction, amount_minor,
			       currency, COALESCE(counterparty_type, '') AS counterparty_type,
			       COALESCE(counterparty_id, '') AS counterparty_id
			FROM financial_postings
			WHERE journal_id = ANY($1)
		`, pq.Array(ids))
		cancel()
		if err != nil {
			return nil, mapSchemaErr(err)
		}
		postings = append(postings, batch...)
	}

	return postings, nil
}

// CreatorPayable is the ledger-derived outstanding balance owed to one
// creator in one currency: credits minus debits on creator_payable.
type CreatorPayable struct {
	CreatorID string `db:"creator_id"`
	Currency  string `db:"currency"`
	Minor     int64  `db:"minor"`
}

// CreatorPayableOutstanding derives what the ledger says each creator is
// currently owed. Used by the reconciliation auditor only.
func (r *Repository) CreatorPayableOutstanding(ctx context.Context) ([]CreatorPayable, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows := make([]CreatorPayable, 0)
	err := r.db.SelectContext(ctx2, &rows, `
		SELECT counterparty_id AS creator_id,
		       currency,
		       SUM(CASE direction WHEN 'credit' THEN amount_minor ELSE -amount_minor END) AS minor
		FROM financial_postings
		WHERE account_code = $1 AND counterparty_id IS NOT NULL
		GROUP BY counterparty_id, currency
	`, AccountCreatorPayable)
	if err != nil {
		return nil, mapSchemaErr(err)
	}
	return rows, nil
}

// mapSchemaErr translates "relation/function does not exist" Postgres errors
// into ErrSchemaUnavailable so callers can distinguish a not-yet-migrated
// environment from a real failure.
func mapSchemaErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 42P01 undefined_table, 42883 undefined_function
		if pqErr.Code == "42P01" || pqErr.Code == "42883" {
			return fmt.Errorf("%w: %s", ErrSchemaUnavailable, pqErr.Message)
		}
	}
	return err
}

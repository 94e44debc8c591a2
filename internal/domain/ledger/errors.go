package ledger

import "errors"

var (
	// ErrSchemaUnavailable means the ledger tables or the journal insert
	// function are not deployed in this environment yet. The recorder treats
	// this as a no-op, everything else must propagate it.
	ErrSchemaUnavailable = errors.New("ledger schema unavailable")

	// ErrUnbalancedJournal is returned when debit and credit totals differ.
	ErrUnbalancedJournal = errors.New("journal postings do not balance")

	// ErrMissingIdempotencyKey is returned for inputs without a key.
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")

	ErrBadMetadata = errors.New("metadata column is not jsonb")

	ErrInternal = errors.New("internal error")
)

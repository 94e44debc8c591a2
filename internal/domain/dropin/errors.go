package dropin

import "errors"

var (
	// ErrInsufficientCredits is returned when the attendee cannot cover the
	// requested consumption. Reported as a structured result, never surfaced
	// as a 500.
	ErrInsufficientCredits = errors.New("insufficient drop-in credits")

	// ErrInvalidAmount is returned when credits requested is not positive.
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrAtomicConsumeFailed marks a fast-path deduction the backend
	// procedure refused or could not apply. Triggers the fallback walk.
	ErrAtomicConsumeFailed = errors.New("atomic credit deduction failed")

	ErrInternal = errors.New("internal error")
)

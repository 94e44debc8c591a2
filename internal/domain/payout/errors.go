package payout

import "errors"

var (
	ErrNotFound            = errors.New("payout not found")
	ErrInvalidAmount       = errors.New("invalid amount: must be greater than 0")
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrNotCompletable      = errors.New("payout is not in a completable state")
	ErrInternal            = errors.New("internal error")
)

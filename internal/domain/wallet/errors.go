package wallet

import "errors"

var (
	ErrInvalidProvider = errors.New("unsupported payout provider")
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrInternal        = errors.New("internal error")
)

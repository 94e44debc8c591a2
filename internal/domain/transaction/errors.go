package transaction

import "errors"

var (
	ErrNotFound      = errors.New("transaction not found")
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")
	ErrNotSettleable = errors.New("transaction is not in a settleable state")
	ErrNotRefundable = errors.New("transaction is not refundable")
	ErrInternal      = errors.New("internal error")
)

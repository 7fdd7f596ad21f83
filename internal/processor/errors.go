package processor

import "errors"

var (
	// ErrInsufficientFunds rejects a withdraw that would drive the balance
	// negative. The wallet row is left untouched.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnknownOperation rejects an operation kind outside DEPOSIT/WITHDRAW.
	ErrUnknownOperation = errors.New("unknown operation type")

	// ErrNonPositiveAmount rejects zero and negative amounts, which would
	// otherwise invert the intended effect of the operation.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrPersistenceFailure means the write kept failing after the bounded
	// retries were exhausted. Callers may retry the whole operation.
	ErrPersistenceFailure = errors.New("failed to persist wallet operation")
)

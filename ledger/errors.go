package ledger

import "errors"

var (
	// ErrUnauthorized indicates the caller does not hold the required role.
	ErrUnauthorized = errors.New("ledger: caller not authorized")

	// ErrSupplyCapExceeded indicates a mint would push total supply past the maximum.
	ErrSupplyCapExceeded = errors.New("ledger: supply cap exceeded")

	// ErrInsufficientBalance indicates the spendable balance is below the amount.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrInsufficientAllowance indicates the spender's allowance is below the amount.
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")

	// ErrTransferRestricted indicates transfers are still locked up.
	ErrTransferRestricted = errors.New("ledger: transfers restricted until lockup ends")

	// ErrTooEarly indicates an unlock before the unlock time.
	ErrTooEarly = errors.New("ledger: locked balances cannot be released yet")

	// ErrZeroAddress indicates a role was assigned to the zero address.
	ErrZeroAddress = errors.New("ledger: zero address")

	// ErrInvalidParams indicates unusable construction parameters.
	ErrInvalidParams = errors.New("ledger: invalid parameters")

	// ErrConservationViolated indicates balances no longer sum to total supply.
	ErrConservationViolated = errors.New("ledger: conservation violated")

	// ErrNilAmount indicates a nil amount argument.
	ErrNilAmount = errors.New("ledger: nil amount")
)

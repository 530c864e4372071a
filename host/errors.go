package host

import "errors"

var (
	// ErrInsufficientFunds indicates the sender's native balance is below the transfer amount.
	ErrInsufficientFunds = errors.New("host: insufficient funds")

	// ErrOverflow indicates a balance would exceed 2^256-1.
	ErrOverflow = errors.New("host: amount overflow")

	// ErrTargetExists indicates a call target is already registered at the address.
	ErrTargetExists = errors.New("host: call target already registered")

	// ErrNoTarget indicates call data was sent to an address with no registered target.
	ErrNoTarget = errors.New("host: no call target at destination")

	// ErrMalformedCall indicates call data cannot be decoded.
	ErrMalformedCall = errors.New("host: malformed call data")

	// ErrUnknownMethod indicates the selector is not handled by the target.
	ErrUnknownMethod = errors.New("host: unknown method")

	// ErrNotPayable indicates value was attached to a method that does not accept it.
	ErrNotPayable = errors.New("host: method is not payable")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("host: nil parameter")
)

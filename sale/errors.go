package sale

import (
	"errors"
	"fmt"
)

var (
	// ErrPhase indicates the sale is in the wrong phase for the operation.
	ErrPhase = errors.New("sale: wrong phase")

	// ErrNotActive indicates a purchase outside the active window.
	ErrNotActive = fmt.Errorf("%w: sale is not active", ErrPhase)

	// ErrHalted indicates the sale has been paused by the administrator.
	ErrHalted = fmt.Errorf("%w: sale is halted", ErrPhase)

	// ErrNotBeforeStart indicates a partner purchase at or after the start time.
	ErrNotBeforeStart = fmt.Errorf("%w: partner purchases close at start", ErrPhase)

	// ErrCapExceeded indicates the global or partner raise cap would be exceeded.
	ErrCapExceeded = errors.New("sale: raise cap exceeded")

	// ErrUnauthorized indicates a failed signature or role check.
	ErrUnauthorized = errors.New("sale: unauthorized")

	// ErrNotPartner indicates a partner purchase by another account.
	ErrNotPartner = fmt.Errorf("%w: caller is not the partner", ErrUnauthorized)

	// ErrNoActiveTier indicates no price tier covers the current time.
	ErrNoActiveTier = errors.New("sale: no active price tier")

	// ErrZeroValue indicates a purchase carrying no value.
	ErrZeroValue = errors.New("sale: zero value")

	// ErrInvalidConfig indicates an unusable sale configuration.
	ErrInvalidConfig = errors.New("sale: invalid config")

	// ErrInvalidAllocation indicates a malformed vesting allocation table.
	ErrInvalidAllocation = errors.New("sale: invalid allocation")
)

package multisig

import "errors"

var (
	// ErrInvalidThreshold indicates required is outside [1, len(owners)].
	ErrInvalidThreshold = errors.New("multisig: invalid threshold")

	// ErrInvalidOwners indicates a duplicate or zero owner.
	ErrInvalidOwners = errors.New("multisig: invalid owner set")

	// ErrNotOwner indicates the caller is not an owner.
	ErrNotOwner = errors.New("multisig: caller is not an owner")

	// ErrDuplicateProposal indicates an operation with the same id exists.
	ErrDuplicateProposal = errors.New("multisig: duplicate proposal")

	// ErrUnknownOperation indicates no operation has the given id.
	ErrUnknownOperation = errors.New("multisig: unknown operation")

	// ErrAlreadyExecuted indicates the operation has already run.
	ErrAlreadyExecuted = errors.New("multisig: operation already executed")

	// ErrExecutionFailed indicates the dispatched call failed and the
	// confirmation that triggered it was reverted.
	ErrExecutionFailed = errors.New("multisig: execution failed")

	// ErrInvalidOperationID indicates an operation id that cannot be parsed.
	ErrInvalidOperationID = errors.New("multisig: invalid operation id")

	// ErrInvalidSnapshot indicates restored operations are inconsistent.
	ErrInvalidSnapshot = errors.New("multisig: invalid snapshot")

	// ErrNonceExhausted indicates the highest nonce is already in use.
	ErrNonceExhausted = errors.New("multisig: nonce space exhausted")

	// ErrNilDispatcher indicates a wallet was built without a dispatcher.
	ErrNilDispatcher = errors.New("multisig: nil dispatcher")
)

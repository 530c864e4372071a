package deploy

import "errors"

var (
	// ErrNotInitialized indicates the store holds no deployment yet.
	ErrNotInitialized = errors.New("deploy: not initialized")

	// ErrAlreadyInitialized indicates the store already holds a deployment.
	ErrAlreadyInitialized = errors.New("deploy: already initialized")

	// ErrNoWallet indicates a wallet operation on a deployment without one.
	ErrNoWallet = errors.New("deploy: no wallet configured")

	// ErrNoRegistry indicates metrics were registered with a caller's registerer.
	ErrNoRegistry = errors.New("deploy: metrics registered with an external registerer")

	// ErrNilParam indicates a required argument was nil.
	ErrNilParam = errors.New("deploy: nil parameter")
)

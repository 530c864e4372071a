package whitelist

import "errors"

var (
	// ErrInvalidSignature indicates a malformed signature: wrong length,
	// recovery id out of range, or r/s outside [1, N-1].
	ErrInvalidSignature = errors.New("whitelist: invalid signature")

	// ErrUnauthorized indicates a well-formed signature from someone other
	// than the designated signer.
	ErrUnauthorized = errors.New("whitelist: signature not from designated signer")

	// ErrNilKey indicates a nil signing key.
	ErrNilKey = errors.New("whitelist: nil signing key")
)

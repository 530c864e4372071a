package keys

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("keys: invalid BIP39 mnemonic")

	// ErrInvalidEntropy indicates entropy bits is not 128 or 256.
	ErrInvalidEntropy = errors.New("keys: entropy bits must be 128 or 256")

	// ErrInvalidSeed indicates the seed is empty.
	ErrInvalidSeed = errors.New("keys: invalid seed")

	// ErrIndexOutOfRange indicates a signer index at or beyond the hardened boundary.
	ErrIndexOutOfRange = errors.New("keys: signer index out of range")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("keys: key derivation failed")

	// ErrInvalidKDF indicates Argon2id costs that are zero or above MaxKDF.
	ErrInvalidKDF = errors.New("keys: invalid key derivation parameters")

	// ErrDecryptionFailed indicates a wrong password or corrupted key file.
	ErrDecryptionFailed = errors.New("keys: seed decryption failed (wrong password or corrupted data)")

	// ErrUnsupportedFormat indicates an encrypted seed of an unknown version.
	ErrUnsupportedFormat = errors.New("keys: unsupported key file format")
)

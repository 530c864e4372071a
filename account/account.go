// Package account defines the 20-byte account identifiers shared by the
// ledger, the sale and the authorization wallet.
//
// An account controlled by a key is HASH160(compressed public key), the same
// value a P2PKH address commits to. Accounts that belong to components (the
// sale, the wallet) are derived from a label with Derive.
package account

import (
	"encoding/hex"
	"fmt"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"github.com/bsv-blockchain/go-sdk/script"
)

// Size is the length of an account identifier in bytes.
const Size = 20

// Address identifies an account.
type Address [Size]byte

// Zero is the unset address.
var Zero Address

// FromPublicKey returns the account controlled by pub.
func FromPublicKey(pub *ec.PublicKey) Address {
	var a Address
	copy(a[:], bsvhash.Hash160(pub.Compressed()))
	return a
}

// FromBytes converts a 20-byte slice into an Address.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, Size, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Parse decodes a hex address, with or without a 0x prefix.
func Parse(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return FromBytes(b)
}

// MustParse is Parse for constants in tests and fixtures. It panics on error.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic("account: " + err.Error())
	}
	return a
}

// Derive returns a deterministic component address for label.
func Derive(label string) Address {
	var a Address
	copy(a[:], bsvhash.Hash160([]byte("libsale/"+label)))
	return a
}

// IsZero reports whether a is the unset address.
func (a Address) IsZero() bool { return a == Zero }

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, a[:])
	return b
}

// String returns the 0x-prefixed hex form.
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// P2PKH renders the address in base58check form for the given network.
func (a Address) P2PKH(mainnet bool) (string, error) {
	addr, err := script.NewAddressFromPublicKeyHash(a[:], mainnet)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return addr.AddressString, nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

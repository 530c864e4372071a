// Package whitelist authenticates purchase authorisations: a designated
// signer signs SHA-256(recipient), and a purchase for that recipient carries
// the resulting recoverable secp256k1 signature.
package whitelist

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

const (
	// SignatureSize is the encoded length: r(32) || s(32) || v(1).
	SignatureSize = 65

	// Recovery ids are carried as 27 or 28.
	recoveryBase = 27

	// Set in a compact header when the key is compressed.
	compressedFlag = 4
)

// Signature is a recoverable ECDSA signature in (v, r, s) form.
type Signature struct {
	V byte
	R [32]byte
	S [32]byte
}

// NewSignature assembles a signature from its components. v may be given as
// 0/1 or 27/28.
func NewSignature(v byte, r, s []byte) (Signature, error) {
	var sig Signature
	if len(r) != 32 || len(s) != 32 {
		return sig, fmt.Errorf("%w: r and s must be 32 bytes, got %d and %d", ErrInvalidSignature, len(r), len(s))
	}
	if v < 2 {
		v += recoveryBase
	}
	sig.V = v
	copy(sig.R[:], r)
	copy(sig.S[:], s)
	if err := sig.validate(); err != nil {
		return Signature{}, err
	}
	return sig, nil
}

// ParseSignature decodes the 65-byte r || s || v encoding.
func ParseSignature(b []byte) (Signature, error) {
	if len(b) != SignatureSize {
		return Signature{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(b))
	}
	return NewSignature(b[64], b[:32], b[32:64])
}

// ParseSignatureHex decodes a hex signature, with or without a 0x prefix.
func ParseSignatureHex(s string) (Signature, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return ParseSignature(b)
}

// Bytes returns the r || s || v encoding.
func (sig Signature) Bytes() []byte {
	b := make([]byte, 0, SignatureSize)
	b = append(b, sig.R[:]...)
	b = append(b, sig.S[:]...)
	return append(b, sig.V)
}

// String returns the hex encoding.
func (sig Signature) String() string { return "0x" + hex.EncodeToString(sig.Bytes()) }

// validate checks component ranges without touching the curve.
func (sig Signature) validate() error {
	if sig.V != recoveryBase && sig.V != recoveryBase+1 {
		return fmt.Errorf("%w: v=%d", ErrInvalidSignature, sig.V)
	}
	n := ec.S256().Params().N
	r := new(big.Int).SetBytes(sig.R[:])
	s := new(big.Int).SetBytes(sig.S[:])
	if r.Sign() == 0 || r.Cmp(n) >= 0 {
		return fmt.Errorf("%w: r out of range", ErrInvalidSignature)
	}
	if s.Sign() == 0 || s.Cmp(n) >= 0 {
		return fmt.Errorf("%w: s out of range", ErrInvalidSignature)
	}
	return nil
}

// compact returns the header || r || s layout expected by ec.RecoverCompact.
func (sig Signature) compact() []byte {
	b := make([]byte, 0, SignatureSize)
	b = append(b, sig.V)
	b = append(b, sig.R[:]...)
	return append(b, sig.S[:]...)
}

// fromCompact converts an ec.SignCompact result into (v, r, s).
func fromCompact(c []byte) (Signature, error) {
	if len(c) != SignatureSize {
		return Signature{}, fmt.Errorf("%w: compact signature of %d bytes", ErrInvalidSignature, len(c))
	}
	v := c[0]
	if v >= recoveryBase+compressedFlag {
		v -= compressedFlag
	}
	return NewSignature(v, c[1:33], c[33:65])
}

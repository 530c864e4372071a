package whitelist

import (
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"

	"github.com/bitfsorg/libsale-go/account"
)

// MessageHash is the digest a signer authorises for recipient. Binding the
// recipient, not the payer, keeps a captured signature from crediting anyone
// else.
func MessageHash(recipient account.Address) []byte {
	return bsvhash.Sha256(recipient[:])
}

// Sign authorises recipient with key.
func Sign(key *ec.PrivateKey, recipient account.Address) (Signature, error) {
	if key == nil {
		return Signature{}, ErrNilKey
	}
	c, err := ec.SignCompact(ec.S256(), key, MessageHash(recipient), true)
	if err != nil {
		return Signature{}, fmt.Errorf("whitelist: sign: %w", err)
	}
	return fromCompact(c)
}

// Recover returns the account whose key produced sig over hash.
// Malformed input yields ErrInvalidSignature and never panics.
func Recover(sig Signature, hash []byte) (addr account.Address, err error) {
	if len(hash) != 32 {
		return account.Zero, fmt.Errorf("%w: message hash must be 32 bytes", ErrInvalidSignature)
	}
	if err := sig.validate(); err != nil {
		return account.Zero, err
	}
	defer func() {
		if r := recover(); r != nil {
			addr, err = account.Zero, fmt.Errorf("%w: %v", ErrInvalidSignature, r)
		}
	}()
	pub, _, err := ec.RecoverCompact(sig.compact(), hash)
	if err != nil {
		return account.Zero, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return account.FromPublicKey(pub), nil
}

// Verify reports whether sig over hash was produced by signer.
func Verify(sig Signature, signer account.Address, hash []byte) bool {
	got, err := Recover(sig, hash)
	return err == nil && got == signer
}

// Verifier checks authorisations against one designated signer.
type Verifier struct {
	signer account.Address
}

// NewVerifier creates a Verifier for signer.
func NewVerifier(signer account.Address) *Verifier {
	return &Verifier{signer: signer}
}

// Signer returns the designated signer.
func (v *Verifier) Signer() account.Address { return v.signer }

// Authorize returns nil when sig authorises recipient, ErrInvalidSignature
// for malformed input and ErrUnauthorized for any other signer.
func (v *Verifier) Authorize(sig Signature, recipient account.Address) error {
	got, err := Recover(sig, MessageHash(recipient))
	if err != nil {
		return err
	}
	if got != v.signer {
		return fmt.Errorf("%w: recovered %s", ErrUnauthorized, got)
	}
	return nil
}

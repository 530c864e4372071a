package keys

import (
	"fmt"
	"os"
	"path/filepath"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"

	"github.com/bitfsorg/libsale-go/account"
)

// Derivation path constants: signers live at m/44'/236'/0'/0/index.
const (
	PurposeBIP44 = 44
	CoinType     = 236
	Hardened     = 0x80000000
)

// Signer is a derived whitelist signing key.
type Signer struct {
	PrivateKey *ec.PrivateKey
	Account    account.Address
	Path       string
}

// Keyring derives signer keys from a seed.
type Keyring struct {
	chain *bip32.ExtendedKey // m/44'/236'/0'/0
}

// NewKeyring builds a keyring from a BIP39 seed. testnet selects testnet
// extended-key versions; derived keys are the same either way.
func NewKeyring(seed []byte, testnet bool) (*Keyring, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	net := &chaincfg.MainNet
	if testnet {
		net = &chaincfg.TestNet
	}
	key, err := bip32.NewMaster(seed, net)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	for depth, idx := range []uint32{PurposeBIP44 + Hardened, CoinType + Hardened, Hardened, 0} {
		if key, err = key.Child(idx); err != nil {
			return nil, fmt.Errorf("%w: depth %d: %w", ErrDerivationFailed, depth+1, err)
		}
	}
	return &Keyring{chain: key}, nil
}

// Signer derives the signer key at index.
func (k *Keyring) Signer(index uint32) (*Signer, error) {
	if index >= Hardened {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	child, err := k.chain.Child(index)
	if err != nil {
		return nil, fmt.Errorf("%w: index %d: %w", ErrDerivationFailed, index, err)
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Signer{
		PrivateKey: priv,
		Account:    account.FromPublicKey(priv.PubKey()),
		Path:       fmt.Sprintf("m/44'/%d'/0'/0/%d", CoinType, index),
	}, nil
}

// WriteSeedFile encrypts seed under password and writes it to path.
func WriteSeedFile(path string, seed []byte, password string) error {
	data, err := EncryptSeed(seed, password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("keys: create directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// ReadSeedFile reads and decrypts the seed at path.
func ReadSeedFile(path, password string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keys: read %s: %w", path, err)
	}
	return DecryptSeed(data, password)
}

// Package keys manages whitelist signer keys: a BIP39 mnemonic, BIP32
// derivation of signer keys, and password encryption of the seed at rest.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/compat/bip39"
	"golang.org/x/crypto/argon2"
)

// Mnemonic entropy sizes.
const (
	Mnemonic12Words = 128
	Mnemonic24Words = 256
)

// GenerateMnemonic creates a BIP39 mnemonic from entropyBits of randomness.
func GenerateMnemonic(entropyBits int) (string, error) {
	if entropyBits != Mnemonic12Words && entropyBits != Mnemonic24Words {
		return "", ErrInvalidEntropy
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("keys: generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("keys: generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic reports whether mnemonic is a valid BIP39 phrase.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// SeedFromMnemonic derives the 64-byte BIP39 seed. The passphrase may be empty.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("keys: derive seed: %w", err)
	}
	return seed, nil
}

// KDF holds Argon2id cost parameters. They are stored alongside the
// ciphertext so files written with other costs still open.
type KDF struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDF is used by EncryptSeed.
var DefaultKDF = KDF{Time: 3, Memory: 64 * 1024, Threads: 4}

// MaxKDF bounds the costs accepted from a seed file header.
var MaxKDF = KDF{Time: 4 * 3, Memory: 4 * 64 * 1024, Threads: 4 * 4}

// valid reports whether every cost is non-zero and within MaxKDF.
func (k KDF) valid() bool {
	return k.Time > 0 && k.Time <= MaxKDF.Time &&
		k.Memory > 0 && k.Memory <= MaxKDF.Memory &&
		k.Threads > 0 && k.Threads <= MaxKDF.Threads
}

const (
	formatVersion = 1
	saltLen       = 16
	keyLen        = 32
	// version(1) ‖ time(4) ‖ memory(4) ‖ threads(1) ‖ salt
	headerLen = 1 + 4 + 4 + 1 + saltLen
)

// EncryptSeed seals seed under password with DefaultKDF.
func EncryptSeed(seed []byte, password string) ([]byte, error) {
	return EncryptSeedWith(seed, password, DefaultKDF)
}

// EncryptSeedWith seals seed under password with AES-256-GCM keyed by
// Argon2id. The header is authenticated as additional data.
//
//	version ‖ time ‖ memory ‖ threads ‖ salt ‖ nonce ‖ ciphertext
func EncryptSeedWith(seed []byte, password string, kdf KDF) ([]byte, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if !kdf.valid() {
		return nil, fmt.Errorf("%w: time %d, memory %d KiB, threads %d", ErrInvalidKDF, kdf.Time, kdf.Memory, kdf.Threads)
	}
	header := make([]byte, headerLen)
	header[0] = formatVersion
	binary.BigEndian.PutUint32(header[1:5], kdf.Time)
	binary.BigEndian.PutUint32(header[5:9], kdf.Memory)
	header[9] = kdf.Threads
	if _, err := rand.Read(header[10:]); err != nil {
		return nil, fmt.Errorf("keys: generate salt: %w", err)
	}

	gcm, err := newGCM(password, header[10:], kdf)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("keys: generate nonce: %w", err)
	}

	out := make([]byte, 0, headerLen+len(nonce)+len(seed)+gcm.Overhead())
	out = append(out, header...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, seed, header), nil
}

// DecryptSeed opens data produced by EncryptSeedWith.
func DecryptSeed(data []byte, password string) ([]byte, error) {
	if len(data) < headerLen {
		return nil, ErrDecryptionFailed
	}
	if data[0] != formatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, data[0])
	}
	header := data[:headerLen]
	kdf := KDF{
		Time:    binary.BigEndian.Uint32(header[1:5]),
		Memory:  binary.BigEndian.Uint32(header[5:9]),
		Threads: header[9],
	}
	// Costs are unauthenticated until the key is derived.
	if !kdf.valid() {
		return nil, ErrDecryptionFailed
	}

	gcm, err := newGCM(password, header[10:], kdf)
	if err != nil {
		return nil, err
	}
	body := data[headerLen:]
	if len(body) < gcm.NonceSize()+gcm.Overhead() {
		return nil, ErrDecryptionFailed
	}
	nonce, ciphertext := body[:gcm.NonceSize()], body[gcm.NonceSize():]
	seed, err := gcm.Open(nil, nonce, ciphertext, header)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return seed, nil
}

func newGCM(password string, salt []byte, kdf KDF) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, kdf.Time, kdf.Memory, kdf.Threads, keyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keys: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keys: gcm: %w", err)
	}
	return gcm, nil
}

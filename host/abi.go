package host

import (
	"fmt"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/bitfsorg/libsale-go/account"
)

// SelectorSize is the length of a method selector.
const SelectorSize = 4

// WordSize is the length of one encoded argument.
const WordSize = 32

// Selector identifies a method: the first four bytes of the Keccak-256 of
// its canonical signature, e.g. "changePayee(address)".
type Selector [SelectorSize]byte

// Word is one 32-byte call argument.
type Word [WordSize]byte

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// MethodSelector returns the selector for a method signature.
func MethodSelector(signature string) Selector {
	sum := Keccak256([]byte(signature))
	var s Selector
	copy(s[:], sum[:SelectorSize])
	return s
}

// AddressWord left-pads an address into a word.
func AddressWord(a account.Address) Word {
	var w Word
	copy(w[WordSize-account.Size:], a[:])
	return w
}

// AmountWord encodes an amount big-endian.
func AmountWord(v *uint256.Int) Word {
	return Word(v.Bytes32())
}

// Address decodes an address argument. The padding must be zero.
func (w Word) Address() (account.Address, error) {
	for _, b := range w[:WordSize-account.Size] {
		if b != 0 {
			return account.Zero, fmt.Errorf("%w: dirty address padding", ErrMalformedCall)
		}
	}
	var a account.Address
	copy(a[:], w[WordSize-account.Size:])
	return a, nil
}

// Amount decodes an amount argument.
func (w Word) Amount() *uint256.Int {
	return new(uint256.Int).SetBytes32(w[:])
}

// EncodeCall builds call data for sel with args.
func EncodeCall(sel Selector, args ...Word) []byte {
	data := make([]byte, 0, SelectorSize+WordSize*len(args))
	data = append(data, sel[:]...)
	for _, w := range args {
		data = append(data, w[:]...)
	}
	return data
}

// DecodeCall splits call data into its selector and argument words.
func DecodeCall(data []byte) (Selector, []Word, error) {
	var sel Selector
	if len(data) < SelectorSize {
		return sel, nil, fmt.Errorf("%w: %d bytes", ErrMalformedCall, len(data))
	}
	body := data[SelectorSize:]
	if len(body)%WordSize != 0 {
		return sel, nil, fmt.Errorf("%w: argument area of %d bytes", ErrMalformedCall, len(body))
	}
	copy(sel[:], data[:SelectorSize])
	words := make([]Word, len(body)/WordSize)
	for i := range words {
		copy(words[i][:], body[i*WordSize:(i+1)*WordSize])
	}
	return sel, words, nil
}

// ExpectArgs checks the argument count of a decoded call.
func ExpectArgs(words []Word, n int) error {
	if len(words) != n {
		return fmt.Errorf("%w: want %d arguments, got %d", ErrMalformedCall, n, len(words))
	}
	return nil
}

package multisig

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/host"
)

// OperationID is the content address of a proposed operation.
type OperationID [32]byte

// String returns the 0x-prefixed hex id.
func (id OperationID) String() string { return "0x" + hex.EncodeToString(id[:]) }

// MarshalText implements encoding.TextMarshaler.
func (id OperationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *OperationID) UnmarshalText(text []byte) error {
	parsed, err := ParseOperationID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseOperationID decodes a hex id, with or without 0x.
func ParseOperationID(s string) (OperationID, error) {
	var id OperationID
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, fmt.Errorf("%w: %w", ErrInvalidOperationID, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidOperationID, len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ComputeOperationID hashes destination ‖ value ‖ payload ‖ nonce with
// value and nonce as 32-byte big-endian words.
func ComputeOperationID(dest account.Address, value *uint256.Int, payload []byte, nonce uint64) OperationID {
	v := value.Bytes32()
	var n [32]byte
	binary.BigEndian.PutUint64(n[24:], nonce)
	return OperationID(host.Keccak256(dest[:], v[:], payload, n[:]))
}

// Operation is a proposed call and its confirmations.
type Operation struct {
	ID          OperationID
	Destination account.Address
	Value       uint256.Int
	Payload     []byte
	Nonce       uint64
	Proposer    account.Address
	// Confirmations lists confirming owners in the order they confirmed.
	Confirmations []account.Address
	Executed      bool
}

func (op *Operation) confirmedBy(owner account.Address) bool {
	for _, c := range op.Confirmations {
		if c == owner {
			return true
		}
	}
	return false
}

func (op *Operation) clone() Operation {
	out := *op
	out.Payload = append([]byte(nil), op.Payload...)
	out.Confirmations = append([]account.Address(nil), op.Confirmations...)
	return out
}

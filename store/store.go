// Package store persists deployment snapshots: ledger tables, sale totals,
// wallet operations and native balances.
package store

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/ledger"
	"github.com/bitfsorg/libsale-go/multisig"
	"github.com/bitfsorg/libsale-go/sale"
)

// Snapshot is the full mutable state of a deployment.
type Snapshot struct {
	Ledger     ledger.State
	Sale       sale.State
	Operations []multisig.Operation
	Bank       map[account.Address]uint256.Int
	// SavedAt is the clock reading of the operation that produced the snapshot.
	SavedAt int64
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Ledger: s.Ledger,
		Sale:   s.Sale,
		Bank:   make(map[account.Address]uint256.Int, len(s.Bank)),
	}
	out.Ledger.Balances = copyAmounts(s.Ledger.Balances)
	out.Ledger.Locked = copyAmounts(s.Ledger.Locked)
	out.Ledger.Allowances = make(map[ledger.AllowanceKey]uint256.Int, len(s.Ledger.Allowances))
	for k, v := range s.Ledger.Allowances {
		out.Ledger.Allowances[k] = v
	}
	for k, v := range s.Bank {
		out.Bank[k] = v
	}
	out.Operations = make([]multisig.Operation, len(s.Operations))
	for i, op := range s.Operations {
		op.Payload = append([]byte(nil), op.Payload...)
		op.Confirmations = append([]account.Address(nil), op.Confirmations...)
		out.Operations[i] = op
	}
	out.SavedAt = s.SavedAt
	return out
}

func copyAmounts(m map[account.Address]uint256.Int) map[account.Address]uint256.Int {
	out := make(map[account.Address]uint256.Int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store persists snapshots. Save replaces the stored snapshot atomically.
type Store interface {
	Save(s *Snapshot) error
	Load() (*Snapshot, error)
	Close() error
}

// MemStore is an in-memory Store for tests and dry runs.
type MemStore struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore { return &MemStore{} }

// Save stores a copy of s.
func (m *MemStore) Save(s *Snapshot) error {
	if s == nil {
		return ErrNilParam
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = s.Clone()
	return nil
}

// Load returns a copy of the stored snapshot.
func (m *MemStore) Load() (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return nil, ErrNoSnapshot
	}
	return m.snap.Clone(), nil
}

// Close is a no-op.
func (m *MemStore) Close() error { return nil }

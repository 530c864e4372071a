package host

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/account"
)

// Bank is the native value primitive. Transfer either moves the full amount
// or fails without effect.
type Bank interface {
	Transfer(from, to account.Address, amount *uint256.Int) error
	BalanceOf(a account.Address) *uint256.Int
}

// MemBank is an in-memory Bank.
type MemBank struct {
	mu       sync.RWMutex
	balances map[account.Address]uint256.Int
}

// Compile-time interface check.
var _ Bank = (*MemBank)(nil)

// NewMemBank creates an empty bank.
func NewMemBank() *MemBank {
	return &MemBank{balances: make(map[account.Address]uint256.Int)}
}

// Deposit credits amount to a out of thin air. It models value entering the
// system from outside and is not reachable from any sale operation.
func (b *MemBank) Deposit(to account.Address, amount *uint256.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: amount", ErrNilParam)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	bal := b.balances[to]
	sum, overflow := new(uint256.Int).AddOverflow(&bal, amount)
	if overflow {
		return ErrOverflow
	}
	b.balances[to] = *sum
	return nil
}

// Transfer moves amount from one account to another.
func (b *MemBank) Transfer(from, to account.Address, amount *uint256.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: amount", ErrNilParam)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	fromBal := b.balances[from]
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from, fromBal.Dec(), amount.Dec())
	}
	if from == to || amount.IsZero() {
		return nil
	}
	toBal := b.balances[to]
	credited, overflow := new(uint256.Int).AddOverflow(&toBal, amount)
	if overflow {
		return ErrOverflow
	}
	b.balances[from] = *new(uint256.Int).Sub(&fromBal, amount)
	b.balances[to] = *credited
	return nil
}

// BalanceOf returns a's native balance.
func (b *MemBank) BalanceOf(a account.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bal := b.balances[a]
	return bal.Clone()
}

// Balances returns a copy of all non-zero balances.
func (b *MemBank) Balances() map[account.Address]uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[account.Address]uint256.Int, len(b.balances))
	for a, bal := range b.balances {
		if !bal.IsZero() {
			out[a] = bal
		}
	}
	return out
}

// Restore replaces all balances.
func (b *MemBank) Restore(balances map[account.Address]uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances = make(map[account.Address]uint256.Int, len(balances))
	for a, bal := range balances {
		b.balances[a] = bal
	}
}

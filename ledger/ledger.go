// Package ledger implements a capped token ledger with a locked balance
// table, a transfer lockup and two administrative roles: the minting
// authority and the payee.
package ledger

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/host"
)

// Params configures a new ledger.
type Params struct {
	MaxSupply        *uint256.Int
	MintingAuthority account.Address
	Payee            account.Address
	// UnlockTime is the earliest time locked balances may be released.
	UnlockTime int64
	// TransferableAt is the earliest time spendable balances may move.
	TransferableAt int64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithAddress sets the address the ledger answers calls on.
func WithAddress(addr account.Address) Option {
	return func(l *Ledger) { l.address = addr }
}

// Ledger holds token balances. All methods are safe for concurrent use.
type Ledger struct {
	clock   host.Clock
	logger  *zap.Logger
	address account.Address

	mu sync.RWMutex
	st State
}

// New creates an empty ledger.
func New(p Params, clock host.Clock, opts ...Option) (*Ledger, error) {
	if clock == nil {
		return nil, fmt.Errorf("%w: nil clock", ErrInvalidParams)
	}
	if p.MaxSupply == nil || p.MaxSupply.IsZero() {
		return nil, fmt.Errorf("%w: max supply must be positive", ErrInvalidParams)
	}
	if p.MintingAuthority.IsZero() {
		return nil, fmt.Errorf("%w: minting authority", ErrZeroAddress)
	}
	if p.Payee.IsZero() {
		return nil, fmt.Errorf("%w: payee", ErrZeroAddress)
	}

	l := &Ledger{
		clock:   clock,
		logger:  zap.NewNop(),
		address: account.Derive("ledger"),
		st:      newState(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.st.MaxSupply = *p.MaxSupply
	l.st.MintingAuthority = p.MintingAuthority
	l.st.Payee = p.Payee
	l.st.UnlockTime = p.UnlockTime
	l.st.TransferableAt = p.TransferableAt
	return l, nil
}

// Address returns the address the ledger answers calls on.
func (l *Ledger) Address() account.Address { return l.address }

// Update runs fn in a transaction at the current clock reading.
func (l *Ledger) Update(fn func(tx *Tx) error) error {
	return l.UpdateAt(l.clock.Now(), fn)
}

// UpdateAt runs fn in a transaction that observes now as the current time.
// The staged writes are committed only if fn returns nil.
func (l *Ledger) UpdateAt(now int64, fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTx(&l.st, now)
	if err := fn(tx); err != nil {
		l.logger.Debug("ledger update rejected", zap.Int64("now", now), zap.Error(err))
		return err
	}
	tx.commit()
	l.logEffects(tx.effects)
	return nil
}

func (l *Ledger) logEffects(effects []effect) {
	for _, e := range effects {
		switch e.kind {
		case "transfer", "approve":
			l.logger.Debug(e.kind,
				zap.Stringer("from", e.from),
				zap.Stringer("to", e.to),
				zap.String("amount", e.amount.Dec()))
		case "minting_authority", "payee":
			l.logger.Info("role changed",
				zap.String("role", e.kind),
				zap.Stringer("from", e.from),
				zap.Stringer("to", e.to))
		default:
			l.logger.Info(e.kind,
				zap.Stringer("account", e.to),
				zap.String("amount", e.amount.Dec()))
		}
	}
}

// --- Operations ---

// Mint creates amount tokens for to, spendable or locked.
func (l *Ledger) Mint(caller, to account.Address, amount *uint256.Int, locked bool) error {
	return l.Update(func(tx *Tx) error { return tx.Mint(caller, to, amount, locked) })
}

// Unlock releases the locked balance of a.
func (l *Ledger) Unlock(caller, a account.Address) error {
	return l.Update(func(tx *Tx) error { return tx.Unlock(caller, a) })
}

// Transfer moves amount from from to to.
func (l *Ledger) Transfer(from, to account.Address, amount *uint256.Int) error {
	return l.Update(func(tx *Tx) error { return tx.Transfer(from, to, amount) })
}

// TransferFrom moves amount from from to to on spender's allowance.
func (l *Ledger) TransferFrom(spender, from, to account.Address, amount *uint256.Int) error {
	return l.Update(func(tx *Tx) error { return tx.TransferFrom(spender, from, to, amount) })
}

// Approve sets spender's allowance over owner's balance.
func (l *Ledger) Approve(owner, spender account.Address, amount *uint256.Int) error {
	return l.Update(func(tx *Tx) error { return tx.Approve(owner, spender, amount) })
}

// ChangeMintingAuthority hands minting rights to next.
func (l *Ledger) ChangeMintingAuthority(caller, next account.Address) error {
	return l.Update(func(tx *Tx) error { return tx.ChangeMintingAuthority(caller, next) })
}

// ChangePayee replaces the payee.
func (l *Ledger) ChangePayee(caller, next account.Address) error {
	return l.Update(func(tx *Tx) error { return tx.ChangePayee(caller, next) })
}

// --- Readers ---

// BalanceOf returns the spendable balance of a.
func (l *Ledger) BalanceOf(a account.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v := l.st.Balances[a]
	return &v
}

// LockedBalanceOf returns the locked balance of a.
func (l *Ledger) LockedBalanceOf(a account.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v := l.st.Locked[a]
	return &v
}

// Allowance returns how much spender may move out of owner's balance.
func (l *Ledger) Allowance(owner, spender account.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v := l.st.Allowances[AllowanceKey{Owner: owner, Spender: spender}]
	return &v
}

// TotalSupply returns the number of tokens in existence.
func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v := l.st.TotalSupply
	return &v
}

// MaxSupply returns the supply cap.
func (l *Ledger) MaxSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v := l.st.MaxSupply
	return &v
}

// MintingAuthority returns the account allowed to mint.
func (l *Ledger) MintingAuthority() account.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.MintingAuthority
}

// Payee returns the administrator that receives sale proceeds.
func (l *Ledger) Payee() account.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.Payee
}

// UnlockTime returns when locked balances become releasable.
func (l *Ledger) UnlockTime() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.UnlockTime
}

// TransferableAt returns when transfers open.
func (l *Ledger) TransferableAt() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.TransferableAt
}

// CheckConservation verifies the ledger's supply invariants.
func (l *Ledger) CheckConservation() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return ValidateConservation(&l.st)
}

// Snapshot returns a deep copy of the ledger state.
func (l *Ledger) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.clone()
}

// Restore replaces the ledger state with s after checking it.
func (l *Ledger) Restore(s State) error {
	st := s.clone()
	if st.MintingAuthority.IsZero() || st.Payee.IsZero() {
		return fmt.Errorf("%w: restored roles", ErrZeroAddress)
	}
	if err := ValidateConservation(&st); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st = st
	return nil
}

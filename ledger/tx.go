package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/account"
)

// Tx stages ledger writes. Reads see staged values first; nothing reaches
// the ledger until the enclosing Update returns nil.
type Tx struct {
	base *State
	now  int64

	totalSupply      uint256.Int
	mintingAuthority account.Address
	payee            account.Address

	balances   map[account.Address]uint256.Int
	locked     map[account.Address]uint256.Int
	allowances map[AllowanceKey]uint256.Int

	effects []effect
}

// effect records a committed change for logging.
type effect struct {
	kind   string
	from   account.Address
	to     account.Address
	amount uint256.Int
}

func newTx(base *State, now int64) *Tx {
	return &Tx{
		base:             base,
		now:              now,
		totalSupply:      base.TotalSupply,
		mintingAuthority: base.MintingAuthority,
		payee:            base.Payee,
		balances:         make(map[account.Address]uint256.Int),
		locked:           make(map[account.Address]uint256.Int),
		allowances:       make(map[AllowanceKey]uint256.Int),
	}
}

// Now is the clock reading the transaction was opened with.
func (tx *Tx) Now() int64 { return tx.now }

// BalanceOf returns a copy of the staged spendable balance of a.
func (tx *Tx) BalanceOf(a account.Address) *uint256.Int {
	v := tx.balanceOf(a)
	return &v
}

// LockedBalanceOf returns a copy of the staged locked balance of a.
func (tx *Tx) LockedBalanceOf(a account.Address) *uint256.Int {
	v := tx.lockedOf(a)
	return &v
}

// Allowance returns a copy of the staged allowance of spender over
// owner's balance.
func (tx *Tx) Allowance(owner, spender account.Address) *uint256.Int {
	v := tx.allowanceOf(owner, spender)
	return &v
}

// TotalSupply returns a copy of the staged total supply.
func (tx *Tx) TotalSupply() *uint256.Int {
	v := tx.totalSupply
	return &v
}

func (tx *Tx) balanceOf(a account.Address) uint256.Int {
	if v, ok := tx.balances[a]; ok {
		return v
	}
	return tx.base.Balances[a]
}

func (tx *Tx) lockedOf(a account.Address) uint256.Int {
	if v, ok := tx.locked[a]; ok {
		return v
	}
	return tx.base.Locked[a]
}

func (tx *Tx) allowanceOf(owner, spender account.Address) uint256.Int {
	k := AllowanceKey{Owner: owner, Spender: spender}
	if v, ok := tx.allowances[k]; ok {
		return v
	}
	return tx.base.Allowances[k]
}

// MintingAuthority returns the staged minting authority.
func (tx *Tx) MintingAuthority() account.Address { return tx.mintingAuthority }

// Payee returns the staged payee.
func (tx *Tx) Payee() account.Address { return tx.payee }

// Mint creates amount new tokens for to. Only the minting authority may mint.
func (tx *Tx) Mint(caller, to account.Address, amount *uint256.Int, locked bool) error {
	if amount == nil {
		return ErrNilAmount
	}
	if caller != tx.mintingAuthority {
		return fmt.Errorf("%w: %s is not the minting authority", ErrUnauthorized, caller)
	}
	supply, overflow := new(uint256.Int).AddOverflow(&tx.totalSupply, amount)
	if overflow || supply.Gt(&tx.base.MaxSupply) {
		return fmt.Errorf("%w: minting %s on top of %s (max %s)",
			ErrSupplyCapExceeded, amount.Dec(), tx.totalSupply.Dec(), tx.base.MaxSupply.Dec())
	}

	// Any single balance is bounded by total supply, which did not overflow.
	kind := "mint"
	if locked {
		cur := tx.lockedOf(to)
		tx.locked[to] = *new(uint256.Int).Add(&cur, amount)
		kind = "mint_locked"
	} else {
		cur := tx.balanceOf(to)
		tx.balances[to] = *new(uint256.Int).Add(&cur, amount)
	}
	tx.totalSupply = *supply
	tx.effects = append(tx.effects, effect{kind: kind, to: to, amount: *amount})
	return nil
}

// Unlock moves the whole locked balance of a to its spendable balance.
// Only the payee may unlock, and only from the unlock time on.
func (tx *Tx) Unlock(caller, a account.Address) error {
	if caller != tx.payee {
		return fmt.Errorf("%w: %s may not unlock balances", ErrUnauthorized, caller)
	}
	if tx.now < tx.base.UnlockTime {
		return fmt.Errorf("%w: now %d, unlock time %d", ErrTooEarly, tx.now, tx.base.UnlockTime)
	}
	locked := tx.lockedOf(a)
	if locked.IsZero() {
		return nil
	}
	bal := tx.balanceOf(a)
	tx.balances[a] = *new(uint256.Int).Add(&bal, &locked)
	tx.locked[a] = uint256.Int{}
	tx.effects = append(tx.effects, effect{kind: "unlock", to: a, amount: locked})
	return nil
}

// Transfer moves spendable tokens from one account to another once the
// transfer lockup is over.
func (tx *Tx) Transfer(from, to account.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if tx.now < tx.base.TransferableAt {
		return fmt.Errorf("%w: now %d, transferable at %d", ErrTransferRestricted, tx.now, tx.base.TransferableAt)
	}
	return tx.move(from, to, amount)
}

// TransferFrom spends spender's allowance over from's balance.
func (tx *Tx) TransferFrom(spender, from, to account.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if tx.now < tx.base.TransferableAt {
		return fmt.Errorf("%w: now %d, transferable at %d", ErrTransferRestricted, tx.now, tx.base.TransferableAt)
	}
	allowance := tx.allowanceOf(from, spender)
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: %s may spend %s of %s, needs %s",
			ErrInsufficientAllowance, spender, allowance.Dec(), from, amount.Dec())
	}
	if err := tx.move(from, to, amount); err != nil {
		return err
	}
	tx.allowances[AllowanceKey{Owner: from, Spender: spender}] = *new(uint256.Int).Sub(&allowance, amount)
	return nil
}

// Approve sets spender's allowance over owner's balance.
func (tx *Tx) Approve(owner, spender account.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	tx.allowances[AllowanceKey{Owner: owner, Spender: spender}] = *amount
	tx.effects = append(tx.effects, effect{kind: "approve", from: owner, to: spender, amount: *amount})
	return nil
}

func (tx *Tx) move(from, to account.Address, amount *uint256.Int) error {
	fromBal := tx.balanceOf(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from, fromBal.Dec(), amount.Dec())
	}
	if from == to || amount.IsZero() {
		return nil
	}
	toBal := tx.balanceOf(to)
	tx.balances[from] = *new(uint256.Int).Sub(&fromBal, amount)
	tx.balances[to] = *new(uint256.Int).Add(&toBal, amount)
	tx.effects = append(tx.effects, effect{kind: "transfer", from: from, to: to, amount: *amount})
	return nil
}

// ChangeMintingAuthority hands minting rights to next. The current
// authority or the payee may do this.
func (tx *Tx) ChangeMintingAuthority(caller, next account.Address) error {
	if caller != tx.mintingAuthority && caller != tx.payee {
		return fmt.Errorf("%w: %s may not change the minting authority", ErrUnauthorized, caller)
	}
	if next.IsZero() {
		return fmt.Errorf("%w: minting authority", ErrZeroAddress)
	}
	tx.effects = append(tx.effects, effect{kind: "minting_authority", from: tx.mintingAuthority, to: next})
	tx.mintingAuthority = next
	return nil
}

// ChangePayee replaces the payee. Only the current payee may do this.
func (tx *Tx) ChangePayee(caller, next account.Address) error {
	if caller != tx.payee {
		return fmt.Errorf("%w: %s is not the payee", ErrUnauthorized, caller)
	}
	if next.IsZero() {
		return fmt.Errorf("%w: payee", ErrZeroAddress)
	}
	tx.effects = append(tx.effects, effect{kind: "payee", from: tx.payee, to: next})
	tx.payee = next
	return nil
}

// commit writes the staged values into base.
func (tx *Tx) commit() {
	for a, v := range tx.balances {
		if v.IsZero() {
			delete(tx.base.Balances, a)
		} else {
			tx.base.Balances[a] = v
		}
	}
	for a, v := range tx.locked {
		if v.IsZero() {
			delete(tx.base.Locked, a)
		} else {
			tx.base.Locked[a] = v
		}
	}
	for k, v := range tx.allowances {
		if v.IsZero() {
			delete(tx.base.Allowances, k)
		} else {
			tx.base.Allowances[k] = v
		}
	}
	tx.base.TotalSupply = tx.totalSupply
	tx.base.MintingAuthority = tx.mintingAuthority
	tx.base.Payee = tx.payee
}

package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/account"
)

// AllowanceKey identifies one owner → spender allowance.
type AllowanceKey struct {
	Owner   account.Address
	Spender account.Address
}

// State is the complete ledger contents. Snapshot and Restore exchange it
// with persistence.
type State struct {
	TotalSupply      uint256.Int
	MaxSupply        uint256.Int
	Balances         map[account.Address]uint256.Int
	Locked           map[account.Address]uint256.Int
	Allowances       map[AllowanceKey]uint256.Int
	MintingAuthority account.Address
	Payee            account.Address
	UnlockTime       int64
	TransferableAt   int64
}

func newState() State {
	return State{
		Balances:   make(map[account.Address]uint256.Int),
		Locked:     make(map[account.Address]uint256.Int),
		Allowances: make(map[AllowanceKey]uint256.Int),
	}
}

// clone deep-copies the state, dropping zero entries.
func (s *State) clone() State {
	out := *s
	out.Balances = copyNonZero(s.Balances)
	out.Locked = copyNonZero(s.Locked)
	out.Allowances = make(map[AllowanceKey]uint256.Int, len(s.Allowances))
	for k, v := range s.Allowances {
		if !v.IsZero() {
			out.Allowances[k] = v
		}
	}
	return out
}

func copyNonZero(m map[account.Address]uint256.Int) map[account.Address]uint256.Int {
	out := make(map[account.Address]uint256.Int, len(m))
	for k, v := range m {
		if !v.IsZero() {
			out[k] = v
		}
	}
	return out
}

// ValidateConservation checks that spendable plus locked balances equal
// total supply and that total supply is within the cap.
func ValidateConservation(s *State) error {
	var sum uint256.Int
	for _, table := range []map[account.Address]uint256.Int{s.Balances, s.Locked} {
		for a, v := range table {
			if _, overflow := sum.AddOverflow(&sum, &v); overflow {
				return fmt.Errorf("%w: balance sum overflows at %s", ErrConservationViolated, a)
			}
		}
	}
	if !sum.Eq(&s.TotalSupply) {
		return fmt.Errorf("%w: balances sum to %s, total supply is %s",
			ErrConservationViolated, sum.Dec(), s.TotalSupply.Dec())
	}
	if s.TotalSupply.Gt(&s.MaxSupply) {
		return fmt.Errorf("%w: total supply %s exceeds max %s",
			ErrConservationViolated, s.TotalSupply.Dec(), s.MaxSupply.Dec())
	}
	return nil
}

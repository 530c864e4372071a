package sale

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/account"
)

// Allocation is one entry of the vesting table: a stake in basis points of
// the public supply, minted at construction.
type Allocation struct {
	Account account.Address `yaml:"account" json:"account"`
	Stake   uint64          `yaml:"stake" json:"stake"`
	Locked  bool            `yaml:"locked" json:"locked"`
}

// Grant is an allocation resolved to a token amount.
type Grant struct {
	Account account.Address
	Amount  uint256.Int
	Locked  bool
}

// AllocationAmounts resolves each allocation to maxPublic × stake / divisor.
// Stakes are floored individually; the table as a whole may not exceed the
// divisor.
func AllocationAmounts(allocs []Allocation, maxPublic *uint256.Int, divisor uint64) ([]Grant, error) {
	if divisor == 0 {
		return nil, fmt.Errorf("%w: zero stake divisor", ErrInvalidAllocation)
	}
	if maxPublic == nil {
		return nil, fmt.Errorf("%w: max public supply is required", ErrInvalidAllocation)
	}

	grants := make([]Grant, len(allocs))
	seen := make(map[account.Address]struct{}, len(allocs))
	var stakes uint64
	div := uint256.NewInt(divisor)
	for i, a := range allocs {
		if a.Account.IsZero() {
			return nil, fmt.Errorf("%w: entry %d has no account", ErrInvalidAllocation, i)
		}
		if a.Stake == 0 {
			return nil, fmt.Errorf("%w: entry %d has zero stake", ErrInvalidAllocation, i)
		}
		if _, dup := seen[a.Account]; dup {
			return nil, fmt.Errorf("%w: %s listed twice", ErrInvalidAllocation, a.Account)
		}
		seen[a.Account] = struct{}{}

		stakes += a.Stake
		if stakes > divisor || stakes < a.Stake {
			return nil, fmt.Errorf("%w: stakes exceed %d", ErrInvalidAllocation, divisor)
		}

		amount, overflow := new(uint256.Int).MulOverflow(maxPublic, uint256.NewInt(a.Stake))
		if overflow {
			return nil, fmt.Errorf("%w: entry %d overflows", ErrInvalidAllocation, i)
		}
		amount.Div(amount, div)
		grants[i] = Grant{Account: a.Account, Amount: *amount, Locked: a.Locked}
	}
	return grants, nil
}

// TotalGranted sums the grant amounts.
func TotalGranted(grants []Grant) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, g := range grants {
		if _, overflow := total.AddOverflow(total, &g.Amount); overflow {
			return nil, fmt.Errorf("%w: grant total overflows", ErrInvalidAllocation)
		}
	}
	return total, nil
}

func (c *Config) allocationAmounts() ([]Grant, error) {
	grants, err := AllocationAmounts(c.Allocations, c.MaxPublicSupply, c.StakeDivisor)
	if err != nil {
		return nil, err
	}
	total, err := TotalGranted(grants)
	if err != nil {
		return nil, err
	}
	if c.MaxSupply != nil && total.Gt(c.MaxSupply) {
		return nil, fmt.Errorf("%w: grants of %s exceed max supply %s", ErrInvalidAllocation, total.Dec(), c.MaxSupply.Dec())
	}
	return grants, nil
}

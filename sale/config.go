package sale

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/pricing"
)

// Config holds the immutable parameters of a sale.
type Config struct {
	// Tiers are the contiguous price windows. The sale runs from the
	// first tier's start to the last tier's end.
	Tiers        []pricing.Tier
	PriceDivisor uint64

	// Cap bounds the total value raised; PartnerCap bounds the partner's share of it.
	Cap        *uint256.Int
	PartnerCap *uint256.Int

	Signer  account.Address
	Partner account.Address
	Payee   account.Address

	// MaxPublicSupply is the base the allocation stakes are taken of.
	MaxPublicSupply *uint256.Int
	MaxSupply       *uint256.Int
	Allocations     []Allocation
	StakeDivisor    uint64

	// ThawDuration and TransferLockup are measured from the end of the sale.
	ThawDuration   int64
	TransferLockup int64
}

// Validate checks the configuration without building a schedule.
func (c *Config) Validate() error {
	if _, err := pricing.NewSchedule(c.Tiers, c.PriceDivisor); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case c.Cap == nil || c.Cap.IsZero():
		return fmt.Errorf("%w: cap must be positive", ErrInvalidConfig)
	case c.PartnerCap == nil:
		return fmt.Errorf("%w: partner cap is required", ErrInvalidConfig)
	case c.PartnerCap.Gt(c.Cap):
		return fmt.Errorf("%w: partner cap %s above cap %s", ErrInvalidConfig, c.PartnerCap.Dec(), c.Cap.Dec())
	case c.Signer.IsZero():
		return fmt.Errorf("%w: signer is required", ErrInvalidConfig)
	case c.Payee.IsZero():
		return fmt.Errorf("%w: payee is required", ErrInvalidConfig)
	case c.MaxSupply == nil || c.MaxSupply.IsZero():
		return fmt.Errorf("%w: max supply must be positive", ErrInvalidConfig)
	case c.ThawDuration < 0 || c.TransferLockup < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	if !c.PartnerCap.IsZero() && c.Partner.IsZero() {
		return fmt.Errorf("%w: partner cap set without a partner", ErrInvalidConfig)
	}
	if len(c.Allocations) > 0 {
		if _, err := c.allocationAmounts(); err != nil {
			return err
		}
	}
	return nil
}

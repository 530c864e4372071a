// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/pricing"
	"github.com/bitfsorg/libsale-go/sale"
)

// SaleConfig is the sale section of a deployment file. Tiers may be given
// explicitly, or as Start plus one TierDuration-long tier per rate.
type SaleConfig struct {
	Start        int64          `yaml:"start"`
	TierDuration int64          `yaml:"tier_duration"`
	Rates        []uint64       `yaml:"rates,omitempty"`
	Tiers        []pricing.Tier `yaml:"tiers,omitempty"`
	PriceDivisor uint64         `yaml:"price_divisor"`

	Cap        Amount `yaml:"cap"`
	PartnerCap Amount `yaml:"partner_cap"`

	Signer  account.Address `yaml:"signer"`
	Partner account.Address `yaml:"partner"`
	Payee   account.Address `yaml:"payee"`

	MaxPublicSupply Amount            `yaml:"max_public_supply"`
	MaxSupply       Amount            `yaml:"max_supply"`
	StakeDivisor    uint64            `yaml:"stake_divisor"`
	Allocations     []sale.Allocation `yaml:"allocations,omitempty"`

	ThawDuration   int64 `yaml:"thaw_duration"`
	TransferLockup int64 `yaml:"transfer_lockup"`
}

// TierList resolves the configured tiers.
func (c SaleConfig) TierList() ([]pricing.Tier, error) {
	if len(c.Tiers) > 0 {
		return c.Tiers, nil
	}
	s, err := pricing.Uniform(c.Start, c.TierDuration, c.PriceDivisor, c.Rates...)
	if err != nil {
		return nil, err
	}
	return s.Tiers(), nil
}

func (c SaleConfig) toSale(payee account.Address) (sale.Config, error) {
	tiers, err := c.TierList()
	if err != nil {
		return sale.Config{}, fmt.Errorf("%w: %w", ErrInvalidSale, err)
	}
	return sale.Config{
		Tiers:           tiers,
		PriceDivisor:    c.PriceDivisor,
		Cap:             c.Cap.Int(),
		PartnerCap:      c.PartnerCap.Int(),
		Signer:          c.Signer,
		Partner:         c.Partner,
		Payee:           payee,
		MaxPublicSupply: c.MaxPublicSupply.Int(),
		MaxSupply:       c.MaxSupply.Int(),
		Allocations:     c.Allocations,
		StakeDivisor:    c.StakeDivisor,
		ThawDuration:    c.ThawDuration,
		TransferLockup:  c.TransferLockup,
	}, nil
}

// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"strings"

	"github.com/bitfsorg/libsale-go/account"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks the runtime settings and returns the first error
// encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" {
		return ErrInvalidNetwork
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	return nil
}

// ValidateDeployment checks the sale and wallet sections.
func ValidateDeployment(cfg Config) error {
	w := cfg.Wallet
	if w.Enabled() {
		if w.Required < 1 || w.Required > len(w.Owners) {
			return fmt.Errorf("%w: %d of %d owners required", ErrInvalidWallet, w.Required, len(w.Owners))
		}
	} else if w.IsPayee {
		return fmt.Errorf("%w: wallet is payee but has no owners", ErrInvalidWallet)
	}

	payee := cfg.Sale.Payee
	if w.IsPayee {
		// Any non-zero stand-in; the deployment substitutes the wallet.
		payee = account.Derive("wallet")
	}
	sc, err := cfg.SaleParams(payee)
	if err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSale, err)
	}
	return nil
}

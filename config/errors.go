// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\" or \"testnet\")")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigFile indicates the configuration file is not valid YAML.
	ErrInvalidConfigFile = errors.New("config: invalid configuration file")

	// ErrInvalidAmount indicates an amount that is not a non-negative integer.
	ErrInvalidAmount = errors.New("config: invalid amount")

	// ErrInvalidSale indicates the sale section cannot produce a sale.
	ErrInvalidSale = errors.New("config: invalid sale section")

	// ErrInvalidWallet indicates the wallet section is unusable.
	ErrInvalidWallet = errors.New("config: invalid wallet section")
)

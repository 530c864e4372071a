// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads deployment parameters from a YAML file, with
// runtime settings overridable from SALE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/sale"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SALE"

const (
	configFileName = "sale.yaml"
	dbFileName     = "sale.db"
	keyFileName    = "signer.key"
)

// Config is a deployment description plus runtime settings.
type Config struct {
	DataDir  string `yaml:"data_dir"  envconfig:"DATA_DIR"`
	Network  string `yaml:"network"   envconfig:"NETWORK"`
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	// Now pins the clock to a Unix time. Zero means wall-clock time.
	Now int64 `yaml:"now,omitempty" envconfig:"NOW"`

	Sale   SaleConfig   `yaml:"sale"   ignored:"true"`
	Wallet WalletConfig `yaml:"wallet" ignored:"true"`
}

// WalletConfig describes the multisig wallet. An empty owner list means
// no wallet is deployed.
type WalletConfig struct {
	Owners   []account.Address `yaml:"owners"`
	Required int               `yaml:"required"`
	// IsPayee makes the wallet the sale's payee, so every administrative
	// action needs a quorum.
	IsPayee bool `yaml:"is_payee"`
}

// Enabled reports whether a wallet is configured.
func (w WalletConfig) Enabled() bool { return len(w.Owners) > 0 }

// DefaultDataDir returns ~/.libsale, or .libsale when the home directory
// is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".libsale"
	}
	return filepath.Join(home, ".libsale")
}

// ConfigPath returns the deployment file inside dataDir.
func ConfigPath(dataDir string) string { return filepath.Join(dataDir, configFileName) }

// DBPath returns the snapshot database inside dataDir.
func DBPath(dataDir string) string { return filepath.Join(dataDir, dbFileName) }

// KeyPath returns the encrypted signer seed inside dataDir.
func KeyPath(dataDir string) string { return filepath.Join(dataDir, keyFileName) }

// DefaultConfig returns runtime defaults and a four-week, four-tier sale
// with a 25% partner cap. Signer, payee, partner and start must still be
// filled in.
func DefaultConfig() Config {
	return Config{
		DataDir:  DefaultDataDir(),
		Network:  "mainnet",
		LogLevel: "info",
		Sale: SaleConfig{
			TierDuration:    7 * 24 * 3600,
			Rates:           []uint64{2000, 1950, 1900, 1850},
			PriceDivisor:    1000,
			Cap:             MustParseAmount("227000e18"),
			PartnerCap:      MustParseAmount("56750e18"),
			MaxPublicSupply: MustParseAmount("1000000e18"),
			MaxSupply:       MustParseAmount("1250000e18"),
			StakeDivisor:    10000,
			ThawDuration:    2 * 365 * 24 * 3600,
		},
	}
}

// LoadConfig reads the YAML file at path over DefaultConfig and applies
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides runtime settings from SALE_DATA_DIR, SALE_NETWORK,
// SALE_LOG_LEVEL and SALE_NOW.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// SaveConfig writes cfg to path as YAML, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("# libsale deployment\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}

// SaleParams converts the sale section into sale parameters with the
// given payee.
func (c Config) SaleParams(payee account.Address) (sale.Config, error) {
	return c.Sale.toSale(payee)
}

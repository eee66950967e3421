package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config captures the runtime configuration for the lending daemon.
type Config struct {
	// ListenAddress is the bind address of the read-only HTTP gateway.
	ListenAddress string `toml:"ListenAddress"`
	// DataDir is where the LevelDB-backed ledger state lives. Empty means
	// in-memory state.
	DataDir string `toml:"DataDir"`
	// Owner is the address allowed to configure collateral ratios.
	Owner string `toml:"Owner"`
	// LedgerAddress is the account under which the ledger holds pooled
	// assets and posted collateral.
	LedgerAddress string `toml:"LedgerAddress"`
	// FaucetAddress receives the seeded balance of each configured asset.
	FaucetAddress string `toml:"FaucetAddress"`
	// Assets lists the fungible assets seeded at startup.
	Assets []AssetConfig `toml:"asset"`
}

// AssetConfig describes one seeded asset: its identity, whether it is
// accepted as collateral, and the balance minted to the faucet at startup.
type AssetConfig struct {
	Address               string `toml:"Address"`
	Name                  string `toml:"Name"`
	Symbol                string `toml:"Symbol"`
	ScaledCollateralRatio string `toml:"ScaledCollateralRatio"`
	FaucetBalance         string `toml:"FaucetBalance"`
}

const (
	defaultListenAddress = ":8645"
	defaultDataDir       = "./lendingd-data"
)

// Load reads the configuration from path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyDefaults()
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = defaultListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
}

// Validate checks that every configured address and amount parses.
func (c *Config) Validate() error {
	if _, err := parseAddress("Owner", c.Owner); err != nil {
		return err
	}
	if _, err := parseAddress("LedgerAddress", c.LedgerAddress); err != nil {
		return err
	}
	if strings.TrimSpace(c.FaucetAddress) != "" {
		if _, err := parseAddress("FaucetAddress", c.FaucetAddress); err != nil {
			return err
		}
	}
	for i := range c.Assets {
		asset := &c.Assets[i]
		if _, err := parseAddress(fmt.Sprintf("asset[%d].Address", i), asset.Address); err != nil {
			return err
		}
		if _, err := parseAmount(fmt.Sprintf("asset[%d].ScaledCollateralRatio", i), asset.ScaledCollateralRatio); err != nil {
			return err
		}
		if _, err := parseAmount(fmt.Sprintf("asset[%d].FaucetBalance", i), asset.FaucetBalance); err != nil {
			return err
		}
	}
	return nil
}

// OwnerAddress returns the parsed owner address.
func (c *Config) OwnerAddress() common.Address {
	return common.HexToAddress(c.Owner)
}

// Ledger returns the parsed ledger module address.
func (c *Config) Ledger() common.Address {
	return common.HexToAddress(c.LedgerAddress)
}

// Faucet returns the parsed faucet address, zero when unset.
func (c *Config) Faucet() common.Address {
	if strings.TrimSpace(c.FaucetAddress) == "" {
		return common.Address{}
	}
	return common.HexToAddress(c.FaucetAddress)
}

// ParsedAddress returns the asset's identifier.
func (a *AssetConfig) ParsedAddress() common.Address {
	return common.HexToAddress(a.Address)
}

// Ratio returns the asset's required scaled collateral ratio, zero when the
// asset is not accepted as collateral.
func (a *AssetConfig) Ratio() *big.Int {
	v, _ := parseAmount("", a.ScaledCollateralRatio)
	return v
}

// Balance returns the faucet balance to seed for the asset.
func (a *AssetConfig) Balance() *big.Int {
	v, _ := parseAmount("", a.FaucetBalance)
	return v
}

func parseAddress(field, value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("config: %s must be set", field)
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("config: %s is not a valid address: %q", field, value)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("config: %s is not a valid amount: %q", field, value)
	}
	return v, nil
}

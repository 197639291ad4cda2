package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	GatewayAddress string `toml:"GatewayAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	Environment    string `toml:"Environment"`
	LogFile        string `toml:"LogFile"`

	Bootstrap Bootstrap `toml:"bootstrap"`

	// RateLimitPerMinute bounds gateway requests per client address.
	RateLimitPerMinute float64 `toml:"RateLimitPerMinute"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
}

// Bootstrap seeds the strategy and treasury state on first start. Amounts are
// decimal strings in base units.
type Bootstrap struct {
	Mint               string `toml:"Mint"`
	FeeCollector       string `toml:"FeeCollector"`
	Treasury           string `toml:"Treasury"`
	TotalSupply        string `toml:"TotalSupply"`
	FeePercentage      uint32 `toml:"FeePercentage"`
	UsdcVault          string `toml:"UsdcVault"`
	VaultAuthority     string `toml:"VaultAuthority"`
	RebalanceFrequency uint64 `toml:"RebalanceFrequency"`
	MinPurchaseAmount  string `toml:"MinPurchaseAmount"`
	Rules              []Rule `toml:"rules"`
}

// Rule seeds one strategy purchase rule.
type Rule struct {
	Asset                   string `toml:"Asset"`
	MaxAllocationPercentage uint32 `toml:"MaxAllocationPercentage"`
	Active                  bool   `toml:"Active"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
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
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8645"
	}
	if strings.TrimSpace(c.GatewayAddress) == "" {
		c.GatewayAddress = ":8646"
	}
	if strings.TrimSpace(c.MetricsAddress) == "" {
		c.MetricsAddress = ":9464"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./strategy-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "dev"
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 600
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 30
	}
}

// Validate checks the numeric fields that gate engine bootstrap.
func (c *Config) Validate() error {
	if c.Bootstrap.FeePercentage > 5000 {
		return fmt.Errorf("config: fee percentage %d exceeds 5000 bps", c.Bootstrap.FeePercentage)
	}
	if _, err := parseOptionalAmount(c.Bootstrap.TotalSupply); err != nil {
		return fmt.Errorf("config: total supply: %w", err)
	}
	if _, err := parseOptionalAmount(c.Bootstrap.MinPurchaseAmount); err != nil {
		return fmt.Errorf("config: min purchase amount: %w", err)
	}
	for _, rule := range c.Bootstrap.Rules {
		if strings.TrimSpace(rule.Asset) == "" {
			return fmt.Errorf("config: rule with empty asset")
		}
		if rule.MaxAllocationPercentage > 100 {
			return fmt.Errorf("config: rule %s allocation %d exceeds 100%%", rule.Asset, rule.MaxAllocationPercentage)
		}
	}
	return nil
}

// TotalSupply returns the bootstrap supply as a big integer.
func (b Bootstrap) TotalSupplyAmount() (*big.Int, error) {
	return parseOptionalAmount(b.TotalSupply)
}

// MinPurchase returns the bootstrap minimum purchase as a big integer.
func (b Bootstrap) MinPurchase() (*big.Int, error) {
	return parseOptionalAmount(b.MinPurchaseAmount)
}

func parseOptionalAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must be non-negative", raw)
	}
	return amount, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

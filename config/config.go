package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config captures the runtime configuration for the dscvault daemon.
type Config struct {
	RPCAddress        string            `toml:"RPCAddress"`
	DataDir           string            `toml:"DataDir"`
	LogFile           string            `toml:"LogFile,omitempty"`
	LogMaxSizeMB      int               `toml:"LogMaxSizeMB,omitempty"`
	LogMaxBackups     int               `toml:"LogMaxBackups,omitempty"`
	Environment       string            `toml:"Environment,omitempty"`
	JWTSecret         string            `toml:"JWTSecret,omitempty"`
	MaxFeedAgeSeconds uint64            `toml:"MaxFeedAgeSeconds"`
	Engine            EngineConfig      `toml:"engine"`
	Collateral        []CollateralAsset `toml:"collateral"`
}

// EngineConfig carries the risk parameters applied at engine construction,
// expressed in basis points.
type EngineConfig struct {
	LiquidationThresholdBps uint64 `toml:"LiquidationThresholdBps"`
	LiquidationBonusBps     uint64 `toml:"LiquidationBonusBps"`
}

// CollateralAsset describes one accepted collateral asset and its price
// source. Exactly one of FeedURL or StaticPrice must be set: FeedURL points
// at a JSON price endpoint, StaticPrice pins a fixed answer for local runs.
type CollateralAsset struct {
	Symbol       string `toml:"Symbol"`
	Token        string `toml:"Token"`
	FeedURL      string `toml:"FeedURL,omitempty"`
	FeedAPIKey   string `toml:"FeedAPIKey,omitempty"`
	StaticPrice  string `toml:"StaticPrice,omitempty"`
	FeedDecimals uint8  `toml:"FeedDecimals"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if cfg.Engine.LiquidationThresholdBps == 0 {
		cfg.Engine.LiquidationThresholdBps = 5_000
	}
	if cfg.Engine.LiquidationBonusBps == 0 {
		cfg.Engine.LiquidationBonusBps = 1_000
	}
	if cfg.LogMaxSizeMB == 0 {
		cfg.LogMaxSizeMB = 100
	}
	if cfg.LogMaxBackups == 0 {
		cfg.LogMaxBackups = 3
	}
}

// Validate rejects configurations the daemon cannot safely start with.
func (c *Config) Validate() error {
	if c.Engine.LiquidationThresholdBps == 0 || c.Engine.LiquidationThresholdBps > 10_000 {
		return fmt.Errorf("config: engine.LiquidationThresholdBps must be in (0, 10000], got %d", c.Engine.LiquidationThresholdBps)
	}
	if c.Engine.LiquidationBonusBps > 10_000 {
		return fmt.Errorf("config: engine.LiquidationBonusBps must not exceed 10000, got %d", c.Engine.LiquidationBonusBps)
	}
	seen := make(map[common.Address]bool, len(c.Collateral))
	for i, asset := range c.Collateral {
		if !common.IsHexAddress(asset.Token) {
			return fmt.Errorf("config: collateral[%d].Token %q is not a hex address", i, asset.Token)
		}
		token := common.HexToAddress(asset.Token)
		if seen[token] {
			return fmt.Errorf("config: collateral[%d].Token %s listed twice", i, asset.Token)
		}
		seen[token] = true

		hasFeed := strings.TrimSpace(asset.FeedURL) != ""
		hasStatic := strings.TrimSpace(asset.StaticPrice) != ""
		if hasFeed == hasStatic {
			return fmt.Errorf("config: collateral[%d] must set exactly one of FeedURL or StaticPrice", i)
		}
		if asset.FeedDecimals > 18 {
			return fmt.Errorf("config: collateral[%d].FeedDecimals %d exceeds 18", i, asset.FeedDecimals)
		}
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	return toml.NewEncoder(file).Encode(cfg)
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultBlockIntervalMs = 5000
	defaultLedgerAddress   = "0x00000000000000000000000000000000006c6472"
)

type Config struct {
	RPCAddress      string `toml:"RPCAddress"`
	DataDir         string `toml:"DataDir"`
	GenesisFile     string `toml:"GenesisFile"`
	Environment     string `toml:"Environment"`
	BlockIntervalMs int64  `toml:"BlockIntervalMs"`

	Ledger    Ledger    `toml:"Ledger"`
	RPC       RPC       `toml:"RPC"`
	Indexer   Indexer   `toml:"Indexer"`
	Logging   Logging   `toml:"Logging"`
	Telemetry Telemetry `toml:"Telemetry"`
}

// BlockInterval returns the block production interval.
func (c *Config) BlockInterval() time.Duration {
	return time.Duration(c.BlockIntervalMs) * time.Millisecond
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}

	for _, undecoded := range meta.Undecoded() {
		if len(undecoded) == 1 && undecoded[0] == "BlockInterval" {
			return nil, fmt.Errorf("config file %s uses deprecated BlockInterval field; set BlockIntervalMs", path)
		}
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded.String())
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		RPCAddress:      "127.0.0.1:8545",
		DataDir:         "./voteledger-data",
		Environment:     "local",
		BlockIntervalMs: defaultBlockIntervalMs,
		Ledger: Ledger{
			Name:     "Vote Token",
			Symbol:   "VOTE",
			Decimals: 18,
			ChainID:  1337,
			Address:  defaultLedgerAddress,
		},
		RPC: RPC{
			JWTSecretEnv:       "VOTELEDGER_JWT_SECRET",
			RateLimitPerMinute: 600,
			RateLimitBurst:     60,
			MaxRequestBytes:    1 << 20,
			ReadTimeoutSecs:    15,
			WriteTimeoutSecs:   15,
			AllowedOrigins:     []string{},
			IdempotencyTTLSecs: 86400,
		},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

func (c *Config) normalize() {
	c.Ledger.Symbol = strings.ToUpper(strings.TrimSpace(c.Ledger.Symbol))
	c.Indexer.Driver = strings.ToLower(strings.TrimSpace(c.Indexer.Driver))
	if c.RPC.AllowedOrigins == nil {
		c.RPC.AllowedOrigins = []string{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

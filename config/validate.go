package config

import (
	"fmt"
	"strings"

	"voteledger/crypto"
)

var supportedIndexerDrivers = map[string]struct{}{
	"":         {},
	"sqlite":   {},
	"postgres": {},
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must be set")
	}
	if c.BlockIntervalMs <= 0 {
		return fmt.Errorf("BlockIntervalMs must be positive")
	}
	if strings.TrimSpace(c.Ledger.Name) == "" {
		return fmt.Errorf("ledger: Name must be set")
	}
	if c.Ledger.Symbol == "" {
		return fmt.Errorf("ledger: Symbol must be set")
	}
	if c.Ledger.ChainID == 0 {
		return fmt.Errorf("ledger: ChainID must be non-zero")
	}
	addr, err := crypto.ParseAddress(c.Ledger.Address)
	if err != nil {
		return fmt.Errorf("ledger: Address: %w", err)
	}
	if addr == ([20]byte{}) {
		return fmt.Errorf("ledger: Address must not be the zero address")
	}
	if c.RPC.RateLimitPerMinute < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.MaxRequestBytes <= 0 {
		return fmt.Errorf("rpc: MaxRequestBytes must be positive")
	}
	if c.RPC.IdempotencyTTLSecs < 0 {
		return fmt.Errorf("rpc: IdempotencyTTLSecs must not be negative")
	}
	if _, ok := supportedIndexerDrivers[c.Indexer.Driver]; !ok {
		return fmt.Errorf("indexer: unsupported driver %q", c.Indexer.Driver)
	}
	if c.Indexer.Driver == "postgres" && strings.TrimSpace(c.Indexer.DSN) == "" {
		return fmt.Errorf("indexer: postgres requires a DSN")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0, 1]")
	}
	return nil
}

// LedgerAddress returns the parsed ledger account.
func (c *Config) LedgerAddress() ([20]byte, error) {
	return crypto.ParseAddress(c.Ledger.Address)
}

package config

// Ledger describes the token and signing domain of the ledger.
type Ledger struct {
	Name     string `toml:"Name"`
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
	ChainID  uint64 `toml:"ChainID"`
	// Address is the ledger's own account: the EIP-712 verifying contract and
	// a recipient that transfers may never target.
	Address string `toml:"Address"`
}

// RPC controls the JSON-RPC listener.
type RPC struct {
	JWTSecretEnv       string   `toml:"JWTSecretEnv"`
	RateLimitPerMinute int      `toml:"RateLimitPerMinute"`
	RateLimitBurst     int      `toml:"RateLimitBurst"`
	MaxRequestBytes    int64    `toml:"MaxRequestBytes"`
	ReadTimeoutSecs    int      `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs   int      `toml:"WriteTimeoutSecs"`
	AllowedOrigins     []string `toml:"AllowedOrigins"`
	// IdempotencyFile is the Bolt file caching write results by
	// Idempotency-Key. Empty disables replay.
	IdempotencyFile    string   `toml:"IdempotencyFile"`
	IdempotencyTTLSecs int      `toml:"IdempotencyTTLSecs"`
}

// Indexer selects the event index database. An empty driver disables it.
type Indexer struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Logging configures the structured logger and its rotating file sink.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

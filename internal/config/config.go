// Package config defines the top-level configuration for the triangular
// arbitrage scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRIARB_* environment variables.
type Config struct {
	Chain    ChainConfig   `toml:"chain"`
	Wallet   WalletConfig  `toml:"wallet"`
	Venues   VenuesConfig  `toml:"venues"`
	Scanner  ScannerConfig `toml:"scanner"`
	Trade    TradeConfig   `toml:"trade"`
	Redis    RedisConfig   `toml:"redis"`
	Notify   NotifyConfig  `toml:"notify"`
	Server   ServerConfig  `toml:"server"`
	Mode     string        `toml:"mode"`
	LogLevel string        `toml:"log_level"`
}

// ChainConfig holds RPC endpoints and chain constants.
type ChainConfig struct {
	RPCURLs              []string `toml:"rpc_urls"`
	ChainID              int64    `toml:"chain_id"`
	CallTimeout          duration `toml:"call_timeout"`
	RateLimitPerSec      float64  `toml:"rate_limit_per_sec"`
	RateLimitBurst       int      `toml:"rate_limit_burst"`
	NativeDecimals       int32    `toml:"native_decimals"`
	FallbackGasPriceGwei float64  `toml:"fallback_gas_price_gwei"`
}

// WalletConfig identifies the account used as swap sender and balance owner.
// The private key, when given, is only used to derive the address.
type WalletConfig struct {
	Address    string `toml:"address"`
	PrivateKey string `toml:"private_key"`
}

// VenuesConfig lists the DEX contracts to scan.
type VenuesConfig struct {
	FactoryAddress string   `toml:"factory_address"`
	Routers        []string `toml:"routers"`
	PairFetchLimit int      `toml:"pair_fetch_limit"`
	PairCacheTTL   duration `toml:"pair_cache_ttl"`
}

// ScannerConfig controls cycle scheduling and gas estimation.
type ScannerConfig struct {
	BatchSize       int      `toml:"batch_size"`
	Workers         int      `toml:"workers"`
	Interval        duration `toml:"interval"`
	GasBufferPct    int64    `toml:"gas_buffer_pct"`
	DefaultGasLimit uint64   `toml:"default_gas_limit"`
	SwapDeadline    duration `toml:"swap_deadline"`
	DrainTimeout    duration `toml:"drain_timeout"`
	WeightLookups   int      `toml:"weight_lookups"`
}

// TradeConfig sizes the notional and sets the acceptance floor.
// Values are decimals; quote them in TOML to keep them exact.
type TradeConfig struct {
	AvailableFunds    decimal.Decimal `toml:"available_funds"`
	AllocationPct     decimal.Decimal `toml:"allocation_pct"`
	SlippageTolerance decimal.Decimal `toml:"slippage_tolerance"`
	// WeightOverride > 0 gives every token the same weight instead of
	// reading wallet balances.
	WeightOverride decimal.Decimal `toml:"weight_override"`
}

// Amount returns the notional used for every candidate.
func (t TradeConfig) Amount() decimal.Decimal { return t.AvailableFunds.Mul(t.AllocationPct) }

// RedisConfig holds Redis connection parameters. Redis is optional; without
// it pairs are cached in process and cycles are not coordinated.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	StreamMaxLen int64    `toml:"stream_max_len"`
	ScanLockTTL  duration `toml:"scan_lock_ttl"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled    bool    `toml:"enabled"`
	Port       int     `toml:"port"`
	APIKey     string  `toml:"api_key"`
	RatePerSec float64 `toml:"rate_limit_per_sec"`
	RateBurst  int     `toml:"rate_limit_burst"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	Cooldown          duration `toml:"cooldown"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID:              1,
			CallTimeout:          duration{10 * time.Second},
			RateLimitPerSec:      25,
			RateLimitBurst:       50,
			NativeDecimals:       18,
			FallbackGasPriceGwei: 50,
		},
		Venues: VenuesConfig{
			PairFetchLimit: 100,
			PairCacheTTL:   duration{10 * time.Minute},
		},
		Scanner: ScannerConfig{
			BatchSize:       10,
			Workers:         0,
			Interval:        duration{time.Minute},
			GasBufferPct:    20,
			DefaultGasLimit: 300_000,
			SwapDeadline:    duration{20 * time.Minute},
			DrainTimeout:    duration{30 * time.Second},
			WeightLookups:   8,
		},
		Trade: TradeConfig{
			AvailableFunds:    decimal.NewFromInt(1000),
			AllocationPct:     decimal.RequireFromString("0.1"),
			SlippageTolerance: decimal.RequireFromString("0.01"),
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 10_000,
			ScanLockTTL:  duration{5 * time.Minute},
		},
		Server: ServerConfig{
			Enabled:    false,
			Port:       8000,
			RatePerSec: 5,
			RateBurst:  10,
		},
		Notify: NotifyConfig{
			Events:   []string{"opportunity_executed", "cycle_failed"},
			Cooldown: duration{10 * time.Minute},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":   true,
	"once":   true,
	"server": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, once, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if len(c.Chain.RPCURLs) == 0 {
		errs = append(errs, "chain: rpc_urls must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if c.Chain.RateLimitPerSec < 0 {
		errs = append(errs, "chain: rate_limit_per_sec must be >= 0")
	}
	if c.Chain.NativeDecimals < 0 || c.Chain.NativeDecimals > 36 {
		errs = append(errs, fmt.Sprintf("chain: native_decimals must be 0-36, got %d", c.Chain.NativeDecimals))
	}
	if c.Chain.FallbackGasPriceGwei <= 0 {
		errs = append(errs, "chain: fallback_gas_price_gwei must be > 0")
	}

	// Wallet
	if c.Wallet.Address == "" && c.Wallet.PrivateKey == "" {
		errs = append(errs, "wallet: either address or private_key must be set")
	}
	if c.Wallet.Address != "" && !common.IsHexAddress(c.Wallet.Address) {
		errs = append(errs, fmt.Sprintf("wallet: address %q is not a hex address", c.Wallet.Address))
	}

	// Venues
	if !common.IsHexAddress(c.Venues.FactoryAddress) {
		errs = append(errs, fmt.Sprintf("venues: factory_address %q is not a hex address", c.Venues.FactoryAddress))
	}
	if len(c.Venues.Routers) == 0 {
		errs = append(errs, "venues: routers must not be empty")
	}
	for _, r := range c.Venues.Routers {
		if !common.IsHexAddress(r) {
			errs = append(errs, fmt.Sprintf("venues: router %q is not a hex address", r))
		}
	}
	if c.Venues.PairFetchLimit < 1 {
		errs = append(errs, "venues: pair_fetch_limit must be >= 1")
	}

	// Scanner
	if c.Scanner.BatchSize < 1 {
		errs = append(errs, "scanner: batch_size must be >= 1")
	}
	if c.Scanner.Workers < 0 {
		errs = append(errs, "scanner: workers must be >= 0")
	}
	if c.Scanner.GasBufferPct < 0 {
		errs = append(errs, "scanner: gas_buffer_pct must be >= 0")
	}
	if c.Scanner.DefaultGasLimit == 0 {
		errs = append(errs, "scanner: default_gas_limit must be > 0")
	}
	if strings.EqualFold(c.Mode, "scan") && c.Scanner.Interval.Duration <= 0 {
		errs = append(errs, "scanner: interval must be > 0 in scan mode")
	}

	// Trade
	one := decimal.NewFromInt(1)
	if !c.Trade.Amount().IsPositive() {
		errs = append(errs, "trade: available_funds * allocation_pct must be > 0")
	}
	if c.Trade.AllocationPct.GreaterThan(one) {
		errs = append(errs, "trade: allocation_pct must not exceed 1")
	}
	if c.Trade.SlippageTolerance.IsNegative() || c.Trade.SlippageTolerance.GreaterThanOrEqual(one) {
		errs = append(errs, fmt.Sprintf("trade: slippage_tolerance must be in [0, 1), got %s", c.Trade.SlippageTolerance))
	}
	if c.Trade.WeightOverride.IsNegative() {
		errs = append(errs, "trade: weight_override must be >= 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	// Server
	if c.Server.Enabled || strings.EqualFold(c.Mode, "server") {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

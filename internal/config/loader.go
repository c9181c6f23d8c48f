package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRIARB_* environment variable overrides, and
// returns the final Config. An empty path skips the file so a deployment can
// be configured from the environment alone. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRIARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStringSlice(&cfg.Chain.RPCURLs, "TRIARB_CHAIN_RPC_URLS")
	setInt64(&cfg.Chain.ChainID, "TRIARB_CHAIN_CHAIN_ID")
	setDuration(&cfg.Chain.CallTimeout, "TRIARB_CHAIN_CALL_TIMEOUT")
	setFloat64(&cfg.Chain.RateLimitPerSec, "TRIARB_CHAIN_RATE_LIMIT_PER_SEC")
	setInt(&cfg.Chain.RateLimitBurst, "TRIARB_CHAIN_RATE_LIMIT_BURST")
	setInt32(&cfg.Chain.NativeDecimals, "TRIARB_CHAIN_NATIVE_DECIMALS")
	setFloat64(&cfg.Chain.FallbackGasPriceGwei, "TRIARB_CHAIN_FALLBACK_GAS_PRICE_GWEI")

	// ── Wallet ──
	setStr(&cfg.Wallet.Address, "TRIARB_WALLET_ADDRESS")
	setStr(&cfg.Wallet.PrivateKey, "TRIARB_WALLET_PRIVATE_KEY")

	// ── Venues ──
	setStr(&cfg.Venues.FactoryAddress, "TRIARB_VENUES_FACTORY_ADDRESS")
	setStringSlice(&cfg.Venues.Routers, "TRIARB_VENUES_ROUTERS")
	setInt(&cfg.Venues.PairFetchLimit, "TRIARB_VENUES_PAIR_FETCH_LIMIT")
	setDuration(&cfg.Venues.PairCacheTTL, "TRIARB_VENUES_PAIR_CACHE_TTL")

	// ── Scanner ──
	setInt(&cfg.Scanner.BatchSize, "TRIARB_SCANNER_BATCH_SIZE")
	setInt(&cfg.Scanner.Workers, "TRIARB_SCANNER_WORKERS")
	setDuration(&cfg.Scanner.Interval, "TRIARB_SCANNER_INTERVAL")
	setInt64(&cfg.Scanner.GasBufferPct, "TRIARB_SCANNER_GAS_BUFFER_PCT")
	setUint64(&cfg.Scanner.DefaultGasLimit, "TRIARB_SCANNER_DEFAULT_GAS_LIMIT")
	setDuration(&cfg.Scanner.SwapDeadline, "TRIARB_SCANNER_SWAP_DEADLINE")
	setDuration(&cfg.Scanner.DrainTimeout, "TRIARB_SCANNER_DRAIN_TIMEOUT")
	setInt(&cfg.Scanner.WeightLookups, "TRIARB_SCANNER_WEIGHT_LOOKUPS")

	// ── Trade ──
	setDecimal(&cfg.Trade.AvailableFunds, "TRIARB_TRADE_AVAILABLE_FUNDS")
	setDecimal(&cfg.Trade.AllocationPct, "TRIARB_TRADE_ALLOCATION_PCT")
	setDecimal(&cfg.Trade.SlippageTolerance, "TRIARB_TRADE_SLIPPAGE_TOLERANCE")
	setDecimal(&cfg.Trade.WeightOverride, "TRIARB_TRADE_WEIGHT_OVERRIDE")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRIARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRIARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRIARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRIARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRIARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRIARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRIARB_REDIS_TLS_ENABLED")
	setInt64(&cfg.Redis.StreamMaxLen, "TRIARB_REDIS_STREAM_MAX_LEN")
	setDuration(&cfg.Redis.ScanLockTTL, "TRIARB_REDIS_SCAN_LOCK_TTL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRIARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRIARB_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "TRIARB_SERVER_API_KEY")
	setFloat64(&cfg.Server.RatePerSec, "TRIARB_SERVER_RATE_LIMIT_PER_SEC")
	setInt(&cfg.Server.RateBurst, "TRIARB_SERVER_RATE_LIMIT_BURST")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRIARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRIARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRIARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRIARB_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.Cooldown, "TRIARB_NOTIFY_COOLDOWN")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRIARB_MODE")
	setStr(&cfg.LogLevel, "TRIARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			*dst = d
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

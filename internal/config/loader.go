package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ORDERBOOK_* environment variable overrides, and
// returns the final Config. A missing file is not an error; defaults plus
// environment overrides apply. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ORDERBOOK_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.BaseURL, "ORDERBOOK_EXCHANGE_BASE_URL")
	setDuration(&cfg.Exchange.Timeout, "ORDERBOOK_EXCHANGE_TIMEOUT")
	setInt(&cfg.Exchange.RetryMaxAttempts, "ORDERBOOK_EXCHANGE_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.Exchange.RetryInitialDelay, "ORDERBOOK_EXCHANGE_RETRY_INITIAL_DELAY")
	setFloat64(&cfg.Exchange.RetryMultiplier, "ORDERBOOK_EXCHANGE_RETRY_MULTIPLIER")

	// ── Book ──
	setInt(&cfg.Book.Depth, "ORDERBOOK_BOOK_DEPTH")
	setInt(&cfg.Book.TopLevels, "ORDERBOOK_BOOK_TOP_LEVELS")
	setInt(&cfg.Book.PricePrecision, "ORDERBOOK_BOOK_PRICE_PRECISION")
	setInt(&cfg.Book.QuantityPrecision, "ORDERBOOK_BOOK_QUANTITY_PRECISION")

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.Interval, "ORDERBOOK_SCHEDULER_INTERVAL")

	// ── Distribution ──
	setInt(&cfg.Distribution.MaxSubscribers, "ORDERBOOK_DISTRIBUTION_MAX_SUBSCRIBERS")
	setInt(&cfg.Distribution.QueueSize, "ORDERBOOK_DISTRIBUTION_QUEUE_SIZE")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ORDERBOOK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ORDERBOOK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ORDERBOOK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ORDERBOOK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ORDERBOOK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ORDERBOOK_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ORDERBOOK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ORDERBOOK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ORDERBOOK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ORDERBOOK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ORDERBOOK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ORDERBOOK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ORDERBOOK_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ORDERBOOK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ORDERBOOK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ORDERBOOK_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ORDERBOOK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ORDERBOOK_S3_REGION")
	setStr(&cfg.S3.Bucket, "ORDERBOOK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ORDERBOOK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ORDERBOOK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ORDERBOOK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ORDERBOOK_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ORDERBOOK_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "ORDERBOOK_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "ORDERBOOK_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ORDERBOOK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ORDERBOOK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ORDERBOOK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ORDERBOOK_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "ORDERBOOK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "ORDERBOOK_SERVER_RATE_WINDOW")

	// ── Top-level ──
	setStr(&cfg.Symbol, "ORDERBOOK_SYMBOL")
	setStr(&cfg.Mode, "ORDERBOOK_MODE")
	setStr(&cfg.LogLevel, "ORDERBOOK_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

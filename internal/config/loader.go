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
// built-in defaults, applies YVAULT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known YVAULT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Venue ──
	setStr(&cfg.Venue.RPCURL, "YVAULT_VENUE_RPC_URL")
	setInt64(&cfg.Venue.ChainID, "YVAULT_VENUE_CHAIN_ID")
	setStr(&cfg.Venue.RouterAddress, "YVAULT_VENUE_ROUTER_ADDRESS")
	setStr(&cfg.Venue.OperatorKey, "YVAULT_VENUE_OPERATOR_KEY")
	setStr(&cfg.Venue.EncryptedKeyPath, "YVAULT_VENUE_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Venue.KeyPassword, "YVAULT_VENUE_KEY_PASSWORD")
	setInt(&cfg.Venue.TxTimeoutSec, "YVAULT_VENUE_TX_TIMEOUT_SEC")
	setStringSlice(&cfg.Venue.Admins, "YVAULT_VENUE_ADMINS")
	setInt(&cfg.Venue.PaperFeeBps, "YVAULT_VENUE_PAPER_FEE_BPS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "YVAULT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "YVAULT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "YVAULT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "YVAULT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "YVAULT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "YVAULT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "YVAULT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "YVAULT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "YVAULT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "YVAULT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "YVAULT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "YVAULT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "YVAULT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "YVAULT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "YVAULT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "YVAULT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "YVAULT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "YVAULT_S3_REGION")
	setStr(&cfg.S3.Bucket, "YVAULT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "YVAULT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "YVAULT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "YVAULT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "YVAULT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "YVAULT_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "YVAULT_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "YVAULT_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "YVAULT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "YVAULT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "YVAULT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "YVAULT_SERVER_API_KEY")
	setStr(&cfg.Server.AdminKey, "YVAULT_SERVER_ADMIN_KEY")

	// ── Top-level ──
	setStr(&cfg.Mode, "YVAULT_MODE")
	setStr(&cfg.LogLevel, "YVAULT_LOG_LEVEL")
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

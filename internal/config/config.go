// Package config defines the top-level configuration for the yield vault
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by YVAULT_* environment variables.
type Config struct {
	Venue    VenueConfig    `toml:"venue"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// VenueConfig holds the connection to the on-chain yield-tokenization venue
// and the operator wallet that custodies deposits.
type VenueConfig struct {
	RPCURL           string `toml:"rpc_url"`
	ChainID          int64  `toml:"chain_id"`
	RouterAddress    string `toml:"router_address"`
	OperatorKey      string `toml:"operator_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	TxTimeoutSec     int    `toml:"tx_timeout_sec"`
	// Admins are addresses allowed to register markets, in addition to
	// the operator itself.
	Admins []string `toml:"admins"`
	// PaperFeeBps is the per-hop fee the paper venue charges in dev mode.
	PaperFeeBps int `toml:"paper_fee_bps"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables
// Redis entirely; the vault then falls back to in-process locking.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the event
// archive. An empty Bucket disables archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the ledger-event archive loop.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// ServerConfig holds the HTTP API server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey gates every endpoint except /api/health when set.
	APIKey string `toml:"api_key"`
	// AdminKey additionally gates market registration. Required in any
	// mode that serves the register endpoint.
	AdminKey string `toml:"admin_key"`
}

// duration wraps time.Duration so it can be written as "5m" in TOML.
type duration struct {
	time.Duration
}

// UnmarshalText implements toml.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Validate checks the configuration for inconsistencies that would only
// surface later at runtime. It returns the first problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "serve", "dev":
	default:
		return fmt.Errorf("config: unsupported mode %q (want serve or dev)", c.Mode)
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unsupported log_level %q", c.LogLevel)
	}

	if strings.ToLower(c.Mode) == "serve" {
		if c.Venue.RPCURL == "" {
			return fmt.Errorf("config: venue.rpc_url is required in serve mode")
		}
		if !common.IsHexAddress(c.Venue.RouterAddress) {
			return fmt.Errorf("config: venue.router_address %q is not a hex address", c.Venue.RouterAddress)
		}
		if c.Venue.ChainID <= 0 {
			return fmt.Errorf("config: venue.chain_id must be positive")
		}
		if c.Venue.OperatorKey == "" && c.Venue.EncryptedKeyPath == "" {
			return fmt.Errorf("config: one of venue.operator_key or venue.encrypted_key_path is required in serve mode")
		}
		if c.Postgres.DSN == "" && c.Postgres.Host == "" {
			return fmt.Errorf("config: postgres connection is required in serve mode")
		}
	}

	for _, a := range c.Venue.Admins {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("config: venue.admins entry %q is not a hex address", a)
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
		}
		if c.Server.AdminKey == "" {
			return fmt.Errorf("config: server.admin_key is required when the server is enabled")
		}
	}

	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("config: s3.bucket is required when archiving is enabled")
		}
		if c.Archive.RetentionDays <= 0 {
			return fmt.Errorf("config: archive.retention_days must be positive")
		}
		if c.Archive.Interval.Duration <= 0 {
			return fmt.Errorf("config: archive.interval must be positive")
		}
	}

	return nil
}

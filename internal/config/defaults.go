package config

import "time"

// Defaults returns the built-in configuration. Load merges the TOML file on
// top of these values, so a minimal config file only needs connection
// secrets.
func Defaults() Config {
	return Config{
		Venue: VenueConfig{
			ChainID:      42161,
			TxTimeoutSec: 90,
			PaperFeeBps:  30,
		},
		Postgres: PostgresConfig{
			Port:         5432,
			SSLMode:      "disable",
			PoolMaxConns: 8,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		Archive: ArchiveConfig{
			Interval:      duration{6 * time.Hour},
			RetentionDays: 30,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

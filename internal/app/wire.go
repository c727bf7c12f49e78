package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	s3blob "github.com/alanyoungcy/yieldvault/internal/blob/s3"
	"github.com/alanyoungcy/yieldvault/internal/cache/redis"
	"github.com/alanyoungcy/yieldvault/internal/config"
	"github.com/alanyoungcy/yieldvault/internal/domain"
	"github.com/alanyoungcy/yieldvault/internal/keys"
	"github.com/alanyoungcy/yieldvault/internal/ledger"
	"github.com/alanyoungcy/yieldvault/internal/store/memory"
	"github.com/alanyoungcy/yieldvault/internal/store/postgres"
	"github.com/alanyoungcy/yieldvault/internal/venue"
)

// EventPruner deletes ledger events that have been archived. Only the
// persistent stores implement meaningful pruning.
type EventPruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Dependencies bundles everything the serve loop needs. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Registry *ledger.Registry
	Ledger   *ledger.Ledger
	Events   domain.EventStore
	Archiver domain.Archiver // nil when archiving is disabled
	Pruner   EventPruner     // nil when archiving is disabled
	Operator common.Address
}

// Wire constructs all concrete dependency implementations for the configured
// mode and returns them together with a cleanup function that should be
// called on shutdown to release resources.
//
// In dev mode everything is in-process: memory stores, the paper venue, and
// local locks. Serve mode connects to the real venue, PostgreSQL, and
// optionally Redis and S3.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Mode == "dev" {
		return wireDev(cfg, logger, cleanup)
	}

	// --- Operator key and venue connection ---
	operatorKey, err := keys.Load(keys.Config{
		RawKey:        cfg.Venue.OperatorKey,
		EncryptedPath: cfg.Venue.EncryptedKeyPath,
		Password:      cfg.Venue.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: operator key: %w", err)
	}

	venueClient, err := venue.Dial(ctx, venue.ClientConfig{
		RPCURL:      cfg.Venue.RPCURL,
		ChainID:     cfg.Venue.ChainID,
		Router:      common.HexToAddress(cfg.Venue.RouterAddress),
		OperatorKey: operatorKey,
		TxTimeout:   time.Duration(cfg.Venue.TxTimeoutSec) * time.Second,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: venue: %w", err)
	}
	closers = append(closers, venueClient.Close)

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	marketStore := postgres.NewMarketStore(pgClient)
	ledgerStore := postgres.NewLedgerStore(pgClient)

	// --- Redis (optional; empty addr falls back to in-process locking) ---
	var marketCache domain.MarketCache
	var lockManager domain.LockManager
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		marketCache = redis.NewMarketCache(redisClient)
		lockManager = redis.NewLockManager(redisClient)
	}

	// --- S3 event archive (optional) ---
	var archiver domain.Archiver
	var pruner EventPruner
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), ledgerStore)
		pruner = ledgerStore
	}

	operator := ethcrypto.PubkeyToAddress(operatorKey.PublicKey)
	registry := ledger.NewRegistry(
		marketStore,
		marketCache,
		venue.NewDescriptor(venueClient),
		authorizer(operator, cfg.Venue.Admins),
		logger,
	)
	led := ledger.New(
		registry,
		ledgerStore,
		venue.NewRouter(venueClient),
		venue.NewCustody(venueClient),
		logger,
	)
	if lockManager != nil {
		led.WithLockManager(lockManager)
	}

	return &Dependencies{
		Registry: registry,
		Ledger:   led,
		Events:   ledgerStore,
		Archiver: archiver,
		Pruner:   pruner,
		Operator: operator,
	}, cleanup, nil
}

// wireDev builds the all-in-process dependency graph: memory stores and the
// paper venue. No external service is touched.
func wireDev(cfg *config.Config, logger *slog.Logger, cleanup func()) (*Dependencies, func(), error) {
	paper := venue.NewPaper(cfg.Venue.PaperFeeBps)
	ledgerStore := memory.NewLedgerStore()

	registry := ledger.NewRegistry(
		memory.NewMarketStore(),
		nil,
		paper,
		authorizer(paper.Operator(), cfg.Venue.Admins),
		logger,
	)
	led := ledger.New(registry, ledgerStore, paper, paper, logger).
		WithLockManager(memory.NewInProcessLocks())

	return &Dependencies{
		Registry: registry,
		Ledger:   led,
		Events:   ledgerStore,
		Operator: paper.Operator(),
	}, cleanup, nil
}

// authorizer allows the operator plus any configured admin address to
// register markets.
func authorizer(operator common.Address, admins []string) ledger.AuthorizeFunc {
	allowed := map[common.Address]bool{operator: true}
	for _, a := range admins {
		allowed[common.HexToAddress(a)] = true
	}
	return func(caller common.Address) bool {
		return allowed[caller]
	}
}

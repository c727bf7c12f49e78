package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MarketCache provides fast market record lookups in front of the store.
// Market records are immutable once written, so staleness is harmless.
type MarketCache interface {
	Set(ctx context.Context, m MarketInfo) error
	// Get returns ErrNotFound on a cache miss.
	Get(ctx context.Context, id common.Address) (MarketInfo, error)
	Invalidate(ctx context.Context, id common.Address) error
}

// LockManager provides exclusive locks keyed by string. The ledger uses it
// to serialize operations on the same (user, market) entry across replicas.
type LockManager interface {
	// Acquire returns an unlock function on success and ErrLockHeld when
	// another party holds the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

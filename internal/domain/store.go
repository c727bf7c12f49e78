package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MarketStore persists immutable market records.
type MarketStore interface {
	// Insert writes a new market record. It returns ErrMarketRegistered
	// when a record for the same ID already exists; existing records are
	// never overwritten.
	Insert(ctx context.Context, m MarketInfo) error
	// GetByID returns the market record, or ErrNotFound.
	GetByID(ctx context.Context, id common.Address) (MarketInfo, error)
	List(ctx context.Context) ([]MarketInfo, error)
}

// PositionStore persists per-(user, market) positions together with the
// ledger event that produced each state. Apply must write the position and
// append the event atomically: an empty position clears the stored record.
type PositionStore interface {
	// Get returns the current position, or the empty position when no
	// record exists. Absence is not an error.
	Get(ctx context.Context, user, market common.Address) (Position, error)
	Apply(ctx context.Context, p Position, evt LedgerEvent) error
}

// EventStore reads back the append-only ledger event log.
type EventStore interface {
	ListRecent(ctx context.Context, limit int) ([]LedgerEvent, error)
	// ListBefore returns events created strictly before the cutoff, used
	// by the archiver.
	ListBefore(ctx context.Context, before time.Time) ([]LedgerEvent, error)
}

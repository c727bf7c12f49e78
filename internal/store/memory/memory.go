// Package memory implements the domain store interfaces with in-process
// maps. It backs dev mode and tests, where running PostgreSQL would be
// overkill; the semantics mirror the postgres package exactly.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// MarketStore implements domain.MarketStore in memory.
type MarketStore struct {
	mu      sync.RWMutex
	markets map[common.Address]domain.MarketInfo
}

// NewMarketStore creates an empty MarketStore.
func NewMarketStore() *MarketStore {
	return &MarketStore{markets: make(map[common.Address]domain.MarketInfo)}
}

// Insert writes a new market record; existing records are never replaced.
func (s *MarketStore) Insert(_ context.Context, m domain.MarketInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; ok {
		return fmt.Errorf("memory: market %s: %w", m.ID.Hex(), domain.ErrMarketRegistered)
	}
	s.markets[m.ID] = m
	return nil
}

// GetByID returns the market record, or domain.ErrNotFound.
func (s *MarketStore) GetByID(_ context.Context, id common.Address) (domain.MarketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return domain.MarketInfo{}, domain.ErrNotFound
	}
	return m, nil
}

// List returns all markets ordered by registration time.
func (s *MarketStore) List(_ context.Context) ([]domain.MarketInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.MarketInfo, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// positionKey identifies one (user, market) entry.
type positionKey struct {
	user   common.Address
	market common.Address
}

// LedgerStore implements domain.PositionStore and domain.EventStore in
// memory. Apply mutates the position and appends the event under one lock,
// matching the transactional write of the postgres implementation.
type LedgerStore struct {
	mu        sync.RWMutex
	positions map[positionKey]domain.Position
	events    []domain.LedgerEvent
}

// NewLedgerStore creates an empty LedgerStore.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{positions: make(map[positionKey]domain.Position)}
}

// Get returns the stored position, or the empty position when absent.
func (s *LedgerStore) Get(_ context.Context, user, market common.Address) (domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.positions[positionKey{user, market}]; ok {
		return p, nil
	}
	return domain.NewPosition(user, market), nil
}

// Apply commits a position transition together with its event. An empty
// position clears the stored record.
func (s *LedgerStore) Apply(_ context.Context, p domain.Position, evt domain.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := positionKey{p.User, p.MarketID}
	if p.Empty() {
		delete(s.positions, key)
	} else {
		s.positions[key] = p
	}
	s.events = append(s.events, evt)
	return nil
}

// ListRecent returns up to limit events, newest first.
func (s *LedgerStore) ListRecent(_ context.Context, limit int) ([]domain.LedgerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}

	out := make([]domain.LedgerEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// ListBefore returns events created strictly before the cutoff, oldest
// first.
func (s *LedgerStore) ListBefore(_ context.Context, before time.Time) ([]domain.LedgerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.LedgerEvent
	for _, evt := range s.events {
		if evt.CreatedAt.Before(before) {
			out = append(out, evt)
		}
	}
	return out, nil
}

// DeleteBefore removes events created strictly before the cutoff and
// returns the number removed.
func (s *LedgerStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var removed int64
	for _, evt := range s.events {
		if evt.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, evt)
	}
	s.events = kept
	return removed, nil
}

// InProcessLocks implements domain.LockManager with a plain mutex map. It
// exists so dev mode can run without Redis; single-replica only.
type InProcessLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewInProcessLocks creates an empty lock manager.
func NewInProcessLocks() *InProcessLocks {
	return &InProcessLocks{held: make(map[string]bool)}
}

// Acquire takes the named lock or returns domain.ErrLockHeld.
func (l *InProcessLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true

	released := false
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if released {
			return
		}
		released = true
		delete(l.held, key)
	}, nil
}

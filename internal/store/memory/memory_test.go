package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

var (
	user   = common.HexToAddress("0x00000000000000000000000000000000cafe0001")
	market = common.HexToAddress("0x00000000000000000000000000000000beef0001")
)

func testEvent(kind domain.EventKind, at time.Time) domain.LedgerEvent {
	return domain.LedgerEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		User:      user,
		MarketID:  market,
		SrcKind:   domain.KindPT,
		DstKind:   domain.KindPT,
		AmountIn:  big.NewInt(1),
		AmountOut: big.NewInt(1),
		CreatedAt: at,
	}
}

func TestMarketStoreInsertOnce(t *testing.T) {
	s := NewMarketStore()
	ctx := context.Background()

	m := domain.MarketInfo{ID: market, CreatedAt: time.Now()}
	if err := s.Insert(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, m); !errors.Is(err, domain.ErrMarketRegistered) {
		t.Errorf("duplicate insert error = %v, want ErrMarketRegistered", err)
	}

	if _, err := s.GetByID(ctx, common.HexToAddress("0x99")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing market error = %v, want ErrNotFound", err)
	}
}

func TestLedgerStoreGetAbsent(t *testing.T) {
	s := NewLedgerStore()

	pos, err := s.Get(context.Background(), user, market)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !pos.Empty() {
		t.Error("absent position should come back empty")
	}
	if pos.User != user || pos.MarketID != market {
		t.Error("empty position should carry the requested identity")
	}
}

func TestLedgerStoreApply(t *testing.T) {
	s := NewLedgerStore()
	ctx := context.Background()

	p := domain.Position{
		User:     user,
		MarketID: market,
		Kind:     domain.KindPT,
		Amount:   big.NewInt(100),
	}
	if err := s.Apply(ctx, p, testEvent(domain.EventDeposit, time.Now())); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, _ := s.Get(ctx, user, market)
	if got.Amount.Int64() != 100 || got.Kind != domain.KindPT {
		t.Errorf("position = %d %s", got.Amount.Int64(), got.Kind)
	}

	// An empty position clears the stored record.
	if err := s.Apply(ctx, domain.NewPosition(user, market), testEvent(domain.EventWithdraw, time.Now())); err != nil {
		t.Fatalf("apply clear: %v", err)
	}
	got, _ = s.Get(ctx, user, market)
	if !got.Empty() {
		t.Error("position should be cleared")
	}

	events, _ := s.ListRecent(ctx, 10)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != domain.EventWithdraw {
		t.Error("ListRecent should return newest first")
	}
}

func TestLedgerStoreListAndDeleteBefore(t *testing.T) {
	s := NewLedgerStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		evt := testEvent(domain.EventDeposit, base.Add(time.Duration(i)*time.Hour))
		if err := s.Apply(ctx, domain.NewPosition(user, market), evt); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	cutoff := base.Add(2 * time.Hour)
	old, err := s.ListBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("list before: %v", err)
	}
	if len(old) != 2 {
		t.Fatalf("got %d old events, want 2", len(old))
	}
	if !old[0].CreatedAt.Before(old[1].CreatedAt) {
		t.Error("ListBefore should return oldest first")
	}

	removed, err := s.DeleteBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed %d, want 2", removed)
	}
	rest, _ := s.ListRecent(ctx, 10)
	if len(rest) != 3 {
		t.Errorf("got %d remaining events, want 3", len(rest))
	}
}

func TestInProcessLocks(t *testing.T) {
	locks := NewInProcessLocks()
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "entry:a", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := locks.Acquire(ctx, "entry:a", time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Errorf("second acquire error = %v, want ErrLockHeld", err)
	}

	// A different key is unaffected.
	other, err := locks.Acquire(ctx, "entry:b", time.Minute)
	if err != nil {
		t.Fatalf("acquire other key: %v", err)
	}
	other()

	release()
	release() // idempotent

	if _, err := locks.Acquire(ctx, "entry:a", time.Minute); err != nil {
		t.Errorf("reacquire after release: %v", err)
	}
}

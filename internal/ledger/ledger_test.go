package ledger_test

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/yieldvault/internal/domain"
	"github.com/alanyoungcy/yieldvault/internal/ledger"
	"github.com/alanyoungcy/yieldvault/internal/store/memory"
	"github.com/alanyoungcy/yieldvault/internal/venue"
)

var (
	marketAddr = common.HexToAddress("0x00000000000000000000000000000000beef0001")
	userAddr   = common.HexToAddress("0x00000000000000000000000000000000cafe0001")
	otherUser  = common.HexToAddress("0x00000000000000000000000000000000cafe0002")
	strangerA  = common.HexToAddress("0x00000000000000000000000000000000dead0001")
)

// fixture is one fully wired in-memory ledger with a registered market.
type fixture struct {
	ledger *ledger.Ledger
	paper  *venue.Paper
	store  *memory.LedgerStore
	market domain.MarketInfo
}

// newFixture wires the ledger against the paper venue and memory stores and
// registers one market. The paper operator is the only authorized registrar.
func newFixture(t *testing.T, feeBps int) *fixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	paper := venue.NewPaper(feeBps)
	store := memory.NewLedgerStore()

	authorize := func(caller common.Address) bool {
		return caller == paper.Operator()
	}
	registry := ledger.NewRegistry(memory.NewMarketStore(), nil, paper, authorize, logger)
	led := ledger.New(registry, store, paper, paper, logger).
		WithLockManager(memory.NewInProcessLocks())

	m, err := registry.Register(context.Background(), paper.Operator(), marketAddr)
	if err != nil {
		t.Fatalf("register market: %v", err)
	}

	return &fixture{ledger: led, paper: paper, store: store, market: m}
}

// fund mints tokens of the given kind straight to the user's wallet.
func (f *fixture) fund(user common.Address, kind domain.TokenKind, amount int64) {
	f.paper.Mint(f.market.Token(kind), user, big.NewInt(amount))
}

// wallet reads the user's external balance of the given kind.
func (f *fixture) wallet(user common.Address, kind domain.TokenKind) int64 {
	return f.paper.Balance(f.market.Token(kind), user).Int64()
}

func TestRegisterMarket(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	reg := f.ledger.Registry()

	// The record is complete: five distinct token slots, LP being the
	// market contract itself.
	seen := make(map[common.Address]bool)
	for k := 0; k < domain.NumTokenKinds; k++ {
		addr := f.market.Tokens[k]
		if addr == (common.Address{}) {
			t.Fatalf("slot %d is the zero address", k)
		}
		if seen[addr] {
			t.Fatalf("slot %d duplicates another token", k)
		}
		seen[addr] = true
	}
	if f.market.Token(domain.KindLP) != marketAddr {
		t.Error("liquidity share slot should be the market contract")
	}

	// Registration is once-only.
	if _, err := reg.Register(ctx, f.paper.Operator(), marketAddr); !errors.Is(err, domain.ErrMarketRegistered) {
		t.Errorf("duplicate register error = %v, want ErrMarketRegistered", err)
	}

	// Unauthorized callers are rejected before any venue read.
	if _, err := reg.Register(ctx, strangerA, common.HexToAddress("0xbeef0002")); !errors.Is(err, domain.ErrPrivilegeDenied) {
		t.Errorf("unauthorized register error = %v, want ErrPrivilegeDenied", err)
	}

	// The stored record never changes.
	got, err := reg.Get(ctx, marketAddr)
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	if got.Tokens != f.market.Tokens {
		t.Error("token table changed after registration")
	}
}

func TestResolveUnregisteredMarket(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	addr, err := f.ledger.Registry().Resolve(ctx, common.HexToAddress("0xbeef0099"), domain.KindPT)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if addr != (common.Address{}) {
		t.Errorf("unregistered market resolved to %s, want zero address", addr.Hex())
	}

	ok, err := f.ledger.Registry().IsRegistered(ctx, common.HexToAddress("0xbeef0099"))
	if err != nil {
		t.Fatalf("is registered: %v", err)
	}
	if ok {
		t.Error("unregistered market reported as registered")
	}
}

func TestDeposit(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.fund(userAddr, domain.KindPT, 1_000)

	pos, err := f.ledger.Deposit(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(400))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if pos.Kind != domain.KindPT || pos.Amount.Int64() != 400 {
		t.Errorf("position = %d %s, want 400 pt", pos.Amount.Int64(), pos.Kind)
	}
	if got := f.wallet(userAddr, domain.KindPT); got != 600 {
		t.Errorf("user wallet = %d, want 600", got)
	}

	// Same-kind deposits accumulate.
	pos, err = f.ledger.Deposit(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(100))
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if pos.Amount.Int64() != 500 {
		t.Errorf("accumulated amount = %d, want 500", pos.Amount.Int64())
	}
}

func TestDepositRejectsSecondKind(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.fund(userAddr, domain.KindPT, 500)
	f.fund(userAddr, domain.KindYT, 500)

	if _, err := f.ledger.Deposit(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_, err := f.ledger.Deposit(ctx, userAddr, marketAddr, domain.KindYT, big.NewInt(500))
	if !errors.Is(err, domain.ErrAlreadyDeposited) {
		t.Fatalf("mixed-kind deposit error = %v, want ErrAlreadyDeposited", err)
	}

	// The failed deposit moved nothing.
	if got := f.wallet(userAddr, domain.KindYT); got != 500 {
		t.Errorf("yt wallet = %d, want 500", got)
	}
	pos, _ := f.ledger.GetPosition(ctx, userAddr, marketAddr)
	if pos.Kind != domain.KindPT || pos.Amount.Int64() != 500 {
		t.Errorf("position changed to %d %s", pos.Amount.Int64(), pos.Kind)
	}
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.fund(userAddr, domain.KindPT, 100)

	tests := []struct {
		name    string
		market  common.Address
		kind    domain.TokenKind
		amount  *big.Int
		wantErr error
	}{
		{name: "zero amount", market: marketAddr, kind: domain.KindPT, amount: new(big.Int), wantErr: domain.ErrZeroAmount},
		{name: "nil amount", market: marketAddr, kind: domain.KindPT, amount: nil, wantErr: domain.ErrZeroAmount},
		{name: "negative amount", market: marketAddr, kind: domain.KindPT, amount: big.NewInt(-5), wantErr: domain.ErrZeroAmount},
		{name: "unregistered market", market: common.HexToAddress("0xbeef0099"), kind: domain.KindPT, amount: big.NewInt(1), wantErr: domain.ErrMarketNotRegistered},
		{name: "invalid kind", market: marketAddr, kind: domain.TokenKind(9), amount: big.NewInt(1), wantErr: domain.ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Deposit(ctx, userAddr, tt.market, tt.kind, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConvert(t *testing.T) {
	// 30 bps per hop; pt -> yt is two hops.
	f := newFixture(t, 30)
	ctx := context.Background()
	f.fund(userAddr, domain.KindPT, 10_000)

	if _, err := f.ledger.Deposit(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(10_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	pos, err := f.ledger.Convert(ctx, userAddr, marketAddr, domain.KindYT)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if pos.Kind != domain.KindYT {
		t.Errorf("kind = %s, want yt", pos.Kind)
	}
	if pos.Amount.Int64() != 9_940 {
		t.Errorf("amount = %d, want 9940 after two 30 bps hops", pos.Amount.Int64())
	}
}

func TestConvertSameKindRoundTrips(t *testing.T) {
	// Converting to the kind already held still routes through the venue
	// and pays both hops.
	f := newFixture(t, 30)
	ctx := context.Background()
	f.fund(userAddr, domain.KindPT, 10_000)

	if _, err := f.ledger.Deposit(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(10_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	pos, err := f.ledger.Convert(ctx, userAddr, marketAddr, domain.KindPT)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if pos.Amount.Int64() != 9_940 {
		t.Errorf("amount = %d, want 9940", pos.Amount.Int64())
	}
}

func TestConvertEmptyPosition(t *testing.T) {
	f := newFixture(t, 30)
	ctx := context.Background()

	pos, err := f.ledger.Convert(ctx, userAddr, marketAddr, domain.KindYT)
	if err != nil {
		t.Fatalf("convert empty: %v", err)
	}
	if !pos.Empty() {
		t.Errorf("position = %d %s, want empty", pos.Amount.Int64(), pos.Kind)
	}
	// The venue was never touched.
	if len(f.paper.Approvals()) != 0 {
		t.Error("empty conversion granted venue approvals")
	}
	// The no-op is still recorded.
	events, _ := f.store.ListRecent(ctx, 10)
	if len(events) != 1 || events[0].Kind != domain.EventConvert {
		t.Fatalf("events = %v, want one convert record", events)
	}
}

func TestWithdrawWithConversion(t *testing.T) {
	f := newFixture(t, 30)
	ctx := context.Background()
	f.fund(userAddr, domain.KindPT, 10_000)

	if _, err := f.ledger.Deposit(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(10_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	out, err := f.ledger.Withdraw(ctx, userAddr, marketAddr, domain.KindUnderlying)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if out.Int64() != 9_940 {
		t.Errorf("out = %d, want 9940", out.Int64())
	}
	if got := f.wallet(userAddr, domain.KindUnderlying); got != 9_940 {
		t.Errorf("user wallet = %d, want 9940", got)
	}

	pos, _ := f.ledger.GetPosition(ctx, userAddr, marketAddr)
	if !pos.Empty() {
		t.Error("position should be empty after withdraw")
	}
}

func TestWithdrawInKindSkipsVenue(t *testing.T) {
	f := newFixture(t, 30)
	ctx := context.Background()
	f.fund(userAddr, domain.KindPT, 1_000)

	if _, err := f.ledger.Deposit(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	out, err := f.ledger.Withdraw(ctx, userAddr, marketAddr, domain.KindPT)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// No conversion hop, so no fee and no approvals.
	if out.Int64() != 1_000 {
		t.Errorf("out = %d, want 1000", out.Int64())
	}
	if len(f.paper.Approvals()) != 0 {
		t.Error("in-kind withdraw should not touch the converter")
	}
	if got := f.wallet(userAddr, domain.KindPT); got != 1_000 {
		t.Errorf("user wallet = %d, want 1000", got)
	}
}

func TestWithdrawEmptyPosition(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	out, err := f.ledger.Withdraw(ctx, userAddr, marketAddr, domain.KindPT)
	if err != nil {
		t.Fatalf("withdraw empty: %v", err)
	}
	if out.Sign() != 0 {
		t.Errorf("out = %s, want 0", out)
	}
	if got := f.wallet(userAddr, domain.KindPT); got != 0 {
		t.Errorf("user wallet = %d, want 0", got)
	}
}

func TestSwap(t *testing.T) {
	f := newFixture(t, 30)
	ctx := context.Background()
	f.fund(userAddr, domain.KindPT, 10_000)

	out, err := f.ledger.Swap(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(10_000), domain.KindYT)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Int64() != 9_940 {
		t.Errorf("out = %d, want 9940", out.Int64())
	}

	// The position passes through and ends empty; the wallet delta is the
	// whole story.
	pos, _ := f.ledger.GetPosition(ctx, userAddr, marketAddr)
	if !pos.Empty() {
		t.Error("position should be empty after swap")
	}
	if got := f.wallet(userAddr, domain.KindPT); got != 0 {
		t.Errorf("pt wallet = %d, want 0", got)
	}
	if got := f.wallet(userAddr, domain.KindYT); got != 9_940 {
		t.Errorf("yt wallet = %d, want 9940", got)
	}

	// A swap is its three constituent transitions on the event log.
	events, _ := f.store.ListRecent(ctx, 10)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	wantKinds := []domain.EventKind{domain.EventWithdraw, domain.EventConvert, domain.EventDeposit}
	for i, want := range wantKinds {
		if events[i].Kind != want {
			t.Errorf("event %d kind = %s, want %s", i, events[i].Kind, want)
		}
	}
}

func TestSwapRejectsSamePair(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.fund(userAddr, domain.KindPT, 100)

	_, err := f.ledger.Swap(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(100), domain.KindPT)
	if !errors.Is(err, domain.ErrSameTokenPair) {
		t.Fatalf("error = %v, want ErrSameTokenPair", err)
	}
	// Rejected before any transfer.
	if got := f.wallet(userAddr, domain.KindPT); got != 100 {
		t.Errorf("wallet = %d, want 100", got)
	}
	events, _ := f.store.ListRecent(ctx, 10)
	if len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
}

func TestSwapSweepsPriorHolding(t *testing.T) {
	// A swap whose source kind matches an existing holding drains the whole
	// entry: prior balance and swap input leave together.
	f := newFixture(t, 0)
	ctx := context.Background()
	f.fund(userAddr, domain.KindPT, 1_000)

	if _, err := f.ledger.Deposit(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(400)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	out, err := f.ledger.Swap(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(600), domain.KindYT)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Int64() != 1_000 {
		t.Errorf("out = %d, want 1000 (prior 400 + swapped 600)", out.Int64())
	}

	pos, _ := f.ledger.GetPosition(ctx, userAddr, marketAddr)
	if !pos.Empty() {
		t.Error("position should be empty after swap")
	}
}

func TestPositionsAreIndependentPerUser(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.fund(userAddr, domain.KindPT, 500)
	f.fund(otherUser, domain.KindYT, 500)

	if _, err := f.ledger.Deposit(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(500)); err != nil {
		t.Fatalf("deposit user: %v", err)
	}
	// A different user may hold a different kind in the same market.
	if _, err := f.ledger.Deposit(ctx, otherUser, marketAddr, domain.KindYT, big.NewInt(500)); err != nil {
		t.Fatalf("deposit other user: %v", err)
	}

	a, _ := f.ledger.GetPosition(ctx, userAddr, marketAddr)
	b, _ := f.ledger.GetPosition(ctx, otherUser, marketAddr)
	if a.Kind != domain.KindPT || b.Kind != domain.KindYT {
		t.Errorf("kinds = %s/%s, want pt/yt", a.Kind, b.Kind)
	}
}

// collectingPublisher records published events for assertions.
type collectingPublisher struct {
	events []domain.LedgerEvent
}

func (c *collectingPublisher) Publish(evt domain.LedgerEvent) {
	c.events = append(c.events, evt)
}

func TestEventsArePublished(t *testing.T) {
	f := newFixture(t, 0)
	pub := &collectingPublisher{}
	f.ledger.WithPublisher(pub)

	ctx := context.Background()
	f.fund(userAddr, domain.KindPT, 100)

	if _, err := f.ledger.Deposit(ctx, userAddr, marketAddr, domain.KindPT, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.ledger.Withdraw(ctx, userAddr, marketAddr, domain.KindPT); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	if len(pub.events) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.events))
	}
	for _, evt := range pub.events {
		if evt.ID == "" {
			t.Error("event published without an ID")
		}
		if evt.User != userAddr || evt.MarketID != marketAddr {
			t.Errorf("event addressed to %s/%s", evt.User.Hex(), evt.MarketID.Hex())
		}
	}
	if pub.events[0].Kind != domain.EventDeposit || pub.events[1].Kind != domain.EventWithdraw {
		t.Errorf("kinds = %s, %s", pub.events[0].Kind, pub.events[1].Kind)
	}
}

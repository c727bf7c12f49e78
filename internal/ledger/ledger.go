package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// lockTTL bounds how long a distributed entry lock may outlive its holder.
// It covers the slowest path: two on-chain hops plus custody transfers.
const lockTTL = 2 * time.Minute

// Ledger owns every position record. Each operation runs under an exclusive
// per-(user, market) lock, consults the registry, optionally routes through
// the converter, and commits the new position together with its event in one
// store write.
//
// Atomicity note: the position write and its event are committed atomically
// by the store, but custody and conversion transfers are external and cannot
// be rolled back. A failure between transfer and commit is surfaced as an
// error and logged; the position is never left describing tokens the vault
// does not hold, because the store write happens only after all transfers
// succeed.
type Ledger struct {
	registry  *Registry
	positions domain.PositionStore
	converter Converter
	custody   Custody
	locks     *keyedMutex
	dlocks    domain.LockManager // optional cross-replica lock
	publisher EventPublisher     // optional
	logger    *slog.Logger
}

// New creates a Ledger with its required dependencies.
func New(registry *Registry, positions domain.PositionStore, converter Converter, custody Custody, logger *slog.Logger) *Ledger {
	return &Ledger{
		registry:  registry,
		positions: positions,
		converter: converter,
		custody:   custody,
		locks:     newKeyedMutex(),
		logger:    logger.With(slog.String("component", "ledger")),
	}
}

// WithLockManager layers a distributed lock over the in-process one so
// multiple replicas can share a database. Returns the ledger for chaining.
func (l *Ledger) WithLockManager(lm domain.LockManager) *Ledger {
	l.dlocks = lm
	return l
}

// WithPublisher attaches a live event publisher. Returns the ledger for
// chaining.
func (l *Ledger) WithPublisher(p EventPublisher) *Ledger {
	l.publisher = p
	return l
}

// Registry exposes the registry the ledger was built with.
func (l *Ledger) Registry() *Registry {
	return l.registry
}

// GetPosition returns the current position; absent records come back as the
// empty position.
func (l *Ledger) GetPosition(ctx context.Context, user, market common.Address) (domain.Position, error) {
	return l.positions.Get(ctx, user, market)
}

// Deposit pulls amount of the given kind from the user into custody and
// credits the position. A non-empty position only accepts more of the kind
// it already holds; any other kind fails with ErrAlreadyDeposited.
func (l *Ledger) Deposit(ctx context.Context, user, market common.Address, kind domain.TokenKind, amount *big.Int) (domain.Position, error) {
	unlock, err := l.lockEntry(ctx, user, market)
	if err != nil {
		return domain.Position{}, err
	}
	defer unlock()

	return l.deposit(ctx, user, market, kind, amount)
}

// Convert exchanges the caller's entire holding for the destination kind
// through the venue and replaces the position with the conversion output.
// Converting to the kind already held still routes through the venue (a
// round trip through SY at whatever cost that implies). Converting an empty
// position is a no-op that never touches the venue.
func (l *Ledger) Convert(ctx context.Context, user, market common.Address, dst domain.TokenKind) (domain.Position, error) {
	unlock, err := l.lockEntry(ctx, user, market)
	if err != nil {
		return domain.Position{}, err
	}
	defer unlock()

	return l.convert(ctx, user, market, dst)
}

// Withdraw converts the holding to the destination kind if necessary,
// transfers the result out of custody to the user, and clears the position
// unconditionally. It returns the amount transferred out.
func (l *Ledger) Withdraw(ctx context.Context, user, market common.Address, dst domain.TokenKind) (*big.Int, error) {
	unlock, err := l.lockEntry(ctx, user, market)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.withdraw(ctx, user, market, dst)
}

// Swap is the pass-through composite: deposit, convert, withdraw, under one
// entry lock. The position returns to empty; the user's external balances
// change by -amount of the source token and +output of the destination
// token. Identical source and destination kinds are rejected before any
// transfer.
func (l *Ledger) Swap(ctx context.Context, user, market common.Address, src domain.TokenKind, amount *big.Int, dst domain.TokenKind) (*big.Int, error) {
	if src == dst {
		return nil, fmt.Errorf("ledger: swap %s for itself: %w", src, domain.ErrSameTokenPair)
	}

	unlock, err := l.lockEntry(ctx, user, market)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := l.deposit(ctx, user, market, src, amount); err != nil {
		return nil, err
	}
	if _, err := l.convert(ctx, user, market, dst); err != nil {
		return nil, err
	}
	return l.withdraw(ctx, user, market, dst)
}

// ---------------------------------------------------------------------------
// Transitions. Callers hold the entry lock.
// ---------------------------------------------------------------------------

func (l *Ledger) deposit(ctx context.Context, user, market common.Address, kind domain.TokenKind, amount *big.Int) (domain.Position, error) {
	if !kind.Valid() {
		return domain.Position{}, fmt.Errorf("ledger: deposit: %w: %d", domain.ErrInvalidKind, uint8(kind))
	}

	m, err := l.registry.require(ctx, market)
	if err != nil {
		return domain.Position{}, err
	}

	if amount == nil || amount.Sign() <= 0 {
		return domain.Position{}, fmt.Errorf("ledger: deposit %s: %w", kind, domain.ErrZeroAmount)
	}

	pos, err := l.positions.Get(ctx, user, market)
	if err != nil {
		return domain.Position{}, fmt.Errorf("ledger: load position: %w", err)
	}

	if !pos.Empty() && pos.Kind != kind {
		return domain.Position{}, fmt.Errorf("ledger: deposit %s while holding %s: %w", kind, pos.Kind, domain.ErrAlreadyDeposited)
	}

	if err := l.custody.TransferIn(ctx, m.Token(kind), user, amount); err != nil {
		return domain.Position{}, fmt.Errorf("ledger: deposit transfer: %w", err)
	}

	next := pos
	next.Kind = kind
	next.Amount = new(big.Int).Add(pos.AmountOrZero(), amount)
	next.UpdatedAt = time.Now().UTC()

	evt := l.newEvent(domain.EventDeposit, user, market, kind, kind, amount, amount)
	if err := l.positions.Apply(ctx, next, evt); err != nil {
		return domain.Position{}, fmt.Errorf("ledger: commit deposit: %w", err)
	}

	l.emit(ctx, evt)
	return next, nil
}

func (l *Ledger) convert(ctx context.Context, user, market common.Address, dst domain.TokenKind) (domain.Position, error) {
	if !dst.Valid() {
		return domain.Position{}, fmt.Errorf("ledger: convert: %w: %d", domain.ErrInvalidKind, uint8(dst))
	}

	m, err := l.registry.require(ctx, market)
	if err != nil {
		return domain.Position{}, err
	}

	pos, err := l.positions.Get(ctx, user, market)
	if err != nil {
		return domain.Position{}, fmt.Errorf("ledger: load position: %w", err)
	}

	held := pos.AmountOrZero()
	out := new(big.Int)
	if !pos.Empty() {
		out, err = l.converter.Convert(ctx, m, pos.Kind, held, dst)
		if err != nil {
			return domain.Position{}, fmt.Errorf("ledger: convert %s to %s: %w", pos.Kind, dst, err)
		}
		if out.Sign() == 0 {
			// Fees consumed the whole holding; the position becomes
			// empty, which is a valid if economically poor outcome.
			l.logger.WarnContext(ctx, "conversion returned zero output",
				slog.String("user", user.Hex()),
				slog.String("market", market.Hex()),
				slog.String("src", pos.Kind.String()),
				slog.String("dst", dst.String()),
				slog.String("amount_in", held.String()),
			)
		}
	}

	next := pos
	next.Kind = dst
	next.Amount = out
	next.UpdatedAt = time.Now().UTC()

	evt := l.newEvent(domain.EventConvert, user, market, pos.Kind, dst, held, out)
	if err := l.positions.Apply(ctx, next, evt); err != nil {
		return domain.Position{}, fmt.Errorf("ledger: commit convert: %w", err)
	}

	l.emit(ctx, evt)
	return next, nil
}

func (l *Ledger) withdraw(ctx context.Context, user, market common.Address, dst domain.TokenKind) (*big.Int, error) {
	if !dst.Valid() {
		return nil, fmt.Errorf("ledger: withdraw: %w: %d", domain.ErrInvalidKind, uint8(dst))
	}

	m, err := l.registry.require(ctx, market)
	if err != nil {
		return nil, err
	}

	pos, err := l.positions.Get(ctx, user, market)
	if err != nil {
		return nil, fmt.Errorf("ledger: load position: %w", err)
	}

	held := pos.AmountOrZero()
	out := held

	// Only convert when the held kind differs; withdrawing in kind skips
	// the venue entirely.
	if !pos.Empty() && pos.Kind != dst {
		out, err = l.converter.Convert(ctx, m, pos.Kind, held, dst)
		if err != nil {
			return nil, fmt.Errorf("ledger: withdraw convert %s to %s: %w", pos.Kind, dst, err)
		}
	}

	if out.Sign() > 0 {
		if err := l.custody.TransferOut(ctx, m.Token(dst), user, out); err != nil {
			return nil, fmt.Errorf("ledger: withdraw transfer: %w", err)
		}
	}

	next := domain.NewPosition(user, market)
	next.UpdatedAt = time.Now().UTC()

	evt := l.newEvent(domain.EventWithdraw, user, market, pos.Kind, dst, held, out)
	if err := l.positions.Apply(ctx, next, evt); err != nil {
		return nil, fmt.Errorf("ledger: commit withdraw: %w", err)
	}

	l.emit(ctx, evt)
	return out, nil
}

// ---------------------------------------------------------------------------
// Locking and event plumbing
// ---------------------------------------------------------------------------

func entryKey(user, market common.Address) string {
	return "entry:" + user.Hex() + ":" + market.Hex()
}

// lockEntry serializes all work on one (user, market) entry. The in-process
// mutex covers a single replica; the optional distributed lock extends the
// guarantee across replicas sharing a database.
func (l *Ledger) lockEntry(ctx context.Context, user, market common.Address) (func(), error) {
	release := l.locks.lock(entryKey(user, market))

	if l.dlocks == nil {
		return release, nil
	}

	unlock, err := l.dlocks.Acquire(ctx, entryKey(user, market), lockTTL)
	if err != nil {
		release()
		return nil, fmt.Errorf("ledger: acquire entry lock: %w", err)
	}
	return func() {
		unlock()
		release()
	}, nil
}

func (l *Ledger) newEvent(kind domain.EventKind, user, market common.Address, src, dst domain.TokenKind, in, out *big.Int) domain.LedgerEvent {
	return domain.LedgerEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		User:      user,
		MarketID:  market,
		SrcKind:   src,
		DstKind:   dst,
		AmountIn:  new(big.Int).Set(in),
		AmountOut: new(big.Int).Set(out),
		CreatedAt: time.Now().UTC(),
	}
}

func (l *Ledger) emit(ctx context.Context, evt domain.LedgerEvent) {
	if l.publisher != nil {
		l.publisher.Publish(evt)
	}
	l.logger.InfoContext(ctx, string(evt.Kind),
		slog.String("user", evt.User.Hex()),
		slog.String("market", evt.MarketID.Hex()),
		slog.String("src", evt.SrcKind.String()),
		slog.String("dst", evt.DstKind.String()),
		slog.String("amount_in", evt.AmountIn.String()),
		slog.String("amount_out", evt.AmountOut.String()),
	)
}

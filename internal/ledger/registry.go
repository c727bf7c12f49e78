package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// Registry maps market identifiers to their five token contracts. Records
// are written exactly once; a market's token set never changes after
// registration.
type Registry struct {
	markets    domain.MarketStore
	cache      domain.MarketCache // optional
	descriptor Descriptor
	authorize  AuthorizeFunc // optional; nil allows any caller
	logger     *slog.Logger
}

// NewRegistry creates a Registry. cache may be nil, in which case every
// lookup hits the store.
func NewRegistry(markets domain.MarketStore, cache domain.MarketCache, descriptor Descriptor, authorize AuthorizeFunc, logger *slog.Logger) *Registry {
	return &Registry{
		markets:    markets,
		cache:      cache,
		descriptor: descriptor,
		authorize:  authorize,
		logger:     logger.With(slog.String("component", "registry")),
	}
}

// Register queries the venue for the market's core tokens and persists the
// immutable record. The liquidity-share slot is the market contract itself;
// the underlying is derived from the SY wrapper's backing asset.
//
// It returns domain.ErrPrivilegeDenied for unauthorized callers and
// domain.ErrMarketRegistered when the market already has a record.
func (r *Registry) Register(ctx context.Context, caller, marketID common.Address) (domain.MarketInfo, error) {
	if r.authorize != nil && !r.authorize(caller) {
		return domain.MarketInfo{}, fmt.Errorf("registry: register %s by %s: %w", marketID.Hex(), caller.Hex(), domain.ErrPrivilegeDenied)
	}

	// Fast-path duplicate check; the store insert is the authoritative one.
	if _, err := r.Get(ctx, marketID); err == nil {
		return domain.MarketInfo{}, fmt.Errorf("registry: %s: %w", marketID.Hex(), domain.ErrMarketRegistered)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.MarketInfo{}, err
	}

	sy, pt, yt, err := r.descriptor.ReadCoreTokens(ctx, marketID)
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("registry: core tokens of %s: %w", marketID.Hex(), err)
	}
	underlying, err := r.descriptor.BackingAsset(ctx, sy)
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("registry: backing asset of %s: %w", marketID.Hex(), err)
	}

	m := domain.MarketInfo{
		ID:        marketID,
		CreatedAt: time.Now().UTC(),
	}
	m.Tokens[domain.KindUnderlying] = underlying
	m.Tokens[domain.KindSY] = sy
	m.Tokens[domain.KindPT] = pt
	m.Tokens[domain.KindYT] = yt
	m.Tokens[domain.KindLP] = marketID

	if err := r.markets.Insert(ctx, m); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("registry: insert %s: %w", marketID.Hex(), err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, m); err != nil {
			r.logger.WarnContext(ctx, "market cache set failed",
				slog.String("market", marketID.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}

	r.logger.InfoContext(ctx, "market registered",
		slog.String("market", marketID.Hex()),
		slog.String("underlying", underlying.Hex()),
		slog.String("sy", sy.Hex()),
		slog.String("pt", pt.Hex()),
		slog.String("yt", yt.Hex()),
	)
	return m, nil
}

// Get returns the market record, or domain.ErrNotFound.
func (r *Registry) Get(ctx context.Context, marketID common.Address) (domain.MarketInfo, error) {
	if r.cache != nil {
		if m, err := r.cache.Get(ctx, marketID); err == nil {
			return m, nil
		}
	}

	m, err := r.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.MarketInfo{}, err
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, m)
	}
	return m, nil
}

// Resolve returns the token contract for the given kind, or the zero
// address when the market is unregistered. Callers that need registration
// enforced should use IsRegistered or the ledger operations, which fail with
// ErrMarketNotRegistered.
func (r *Registry) Resolve(ctx context.Context, marketID common.Address, kind domain.TokenKind) (common.Address, error) {
	m, err := r.Get(ctx, marketID)
	if errors.Is(err, domain.ErrNotFound) {
		return common.Address{}, nil
	}
	if err != nil {
		return common.Address{}, err
	}
	return m.Token(kind), nil
}

// IsRegistered reports whether the market has a record.
func (r *Registry) IsRegistered(ctx context.Context, marketID common.Address) (bool, error) {
	m, err := r.Get(ctx, marketID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Registered(), nil
}

// List returns all registered markets.
func (r *Registry) List(ctx context.Context) ([]domain.MarketInfo, error) {
	return r.markets.List(ctx)
}

// require returns the market record or ErrMarketNotRegistered. It is the
// lookup every ledger operation goes through.
func (r *Registry) require(ctx context.Context, marketID common.Address) (domain.MarketInfo, error) {
	m, err := r.Get(ctx, marketID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.MarketInfo{}, fmt.Errorf("registry: %s: %w", marketID.Hex(), domain.ErrMarketNotRegistered)
	}
	if err != nil {
		return domain.MarketInfo{}, err
	}
	return m, nil
}

// Package ledger implements the position ledger: a per-(user, market) state
// machine tracking one typed balance per entry and driving deposits,
// conversions, withdrawals, and pass-through swaps against the external
// venue.
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// Descriptor reads market metadata from the venue at registration time.
type Descriptor interface {
	ReadCoreTokens(ctx context.Context, market common.Address) (sy, pt, yt common.Address, err error)
	BackingAsset(ctx context.Context, sy common.Address) (common.Address, error)
}

// Converter exchanges a custody balance between two token representations of
// the same market and reports the amount received. Output is non-negative;
// a zero input yields a zero output.
type Converter interface {
	Convert(ctx context.Context, m domain.MarketInfo, src domain.TokenKind, amount *big.Int, dst domain.TokenKind) (*big.Int, error)
}

// Custody moves token balances between users and the vault's custody wallet.
type Custody interface {
	TransferIn(ctx context.Context, token, from common.Address, amount *big.Int) error
	TransferOut(ctx context.Context, token, to common.Address, amount *big.Int) error
}

// EventPublisher pushes committed ledger events to live subscribers.
// Publishing is fire-and-forget; delivery failures never abort a ledger
// operation.
type EventPublisher interface {
	Publish(evt domain.LedgerEvent)
}

// AuthorizeFunc decides whether a caller may register markets.
type AuthorizeFunc func(caller common.Address) bool

package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Position is the single typed balance a user holds in one market. A
// position with a zero amount is the canonical empty state; Kind carries
// no meaning then. A non-empty position holds exactly one token kind.
type Position struct {
	User      common.Address `json:"user"`
	MarketID  common.Address `json:"market_id"`
	Kind      TokenKind      `json:"kind"`
	Amount    *big.Int       `json:"amount"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewPosition returns the empty position for a (user, market) pair.
func NewPosition(user, market common.Address) Position {
	return Position{
		User:     user,
		MarketID: market,
		Kind:     KindUnderlying,
		Amount:   new(big.Int),
	}
}

// Empty reports whether the position holds nothing.
func (p Position) Empty() bool {
	return p.Amount == nil || p.Amount.Sign() == 0
}

// AmountOrZero returns the held amount, normalizing a nil pointer to zero
// so callers can do arithmetic without nil checks.
func (p Position) AmountOrZero() *big.Int {
	if p.Amount == nil {
		return new(big.Int)
	}
	return p.Amount
}

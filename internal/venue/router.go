package venue

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// Router converts between the five token representations by routing every
// conversion through the standardized-yield representation: at most two
// hops, each a single router-contract call. When the source or destination
// already is SY, that side of the trip is a free identity hop.
type Router struct {
	c *Client
}

// NewRouter creates a Router backed by the given client.
func NewRouter(c *Client) *Router {
	return &Router{c: c}
}

// Convert exchanges amount of the src representation for the dst
// representation on market m and returns the amount received. A zero input
// short-circuits to a zero output without touching the chain.
//
// Convert is deliberately not short-circuited when src == dst: the caller
// asked for a round trip through SY and pays whatever that costs.
func (r *Router) Convert(ctx context.Context, m domain.MarketInfo, src domain.TokenKind, amount *big.Int, dst domain.TokenKind) (*big.Int, error) {
	if amount == nil || amount.Sign() == 0 {
		return new(big.Int), nil
	}

	syAmount, err := r.intoSY(ctx, m, src, amount)
	if err != nil {
		return nil, err
	}

	out, err := r.fromSY(ctx, m, dst, syAmount)
	if err != nil {
		return nil, err
	}

	r.c.logger.Info("conversion executed",
		slog.String("market", m.ID.Hex()),
		slog.String("src", src.String()),
		slog.String("dst", dst.String()),
		slog.String("amount_in", amount.String()),
		slog.String("amount_out", out.String()),
	)
	return out, nil
}

// intoSY normalizes a holding to the SY representation. The switch is
// exhaustive over the token kinds; an unknown kind is a programming error.
func (r *Router) intoSY(ctx context.Context, m domain.MarketInfo, src domain.TokenKind, amount *big.Int) (*big.Int, error) {
	var sel []byte
	switch src {
	case domain.KindSY:
		return amount, nil
	case domain.KindUnderlying:
		sel = selMintSy
	case domain.KindPT:
		sel = selSwapPtForSy
	case domain.KindYT:
		sel = selSwapYtForSy
	case domain.KindLP:
		sel = selRemoveLiqSy
	default:
		return nil, fmt.Errorf("venue: %w: %d", domain.ErrInvalidKind, uint8(src))
	}
	return r.hop(ctx, m, m.Token(src), sel, amount)
}

// fromSY denormalizes an SY amount into the destination representation.
func (r *Router) fromSY(ctx context.Context, m domain.MarketInfo, dst domain.TokenKind, amount *big.Int) (*big.Int, error) {
	var sel []byte
	switch dst {
	case domain.KindSY:
		return amount, nil
	case domain.KindUnderlying:
		sel = selRedeemSy
	case domain.KindPT:
		sel = selSwapSyForPt
	case domain.KindYT:
		sel = selSwapSyForYt
	case domain.KindLP:
		sel = selAddLiqSy
	default:
		return nil, fmt.Errorf("venue: %w: %d", domain.ErrInvalidKind, uint8(dst))
	}
	return r.hop(ctx, m, m.Token(domain.KindSY), sel, amount)
}

// hop executes one conversion step: grant the router a spend allowance for
// exactly the input amount, quote the output with a simulated call, then
// submit the real transaction. The quote is taken immediately before
// execution, so it is what the venue would have returned at submission
// time.
func (r *Router) hop(ctx context.Context, m domain.MarketInfo, inputToken common.Address, sel []byte, amount *big.Int) (*big.Int, error) {
	if amount.Sign() == 0 {
		return new(big.Int), nil
	}

	if err := r.c.approve(ctx, inputToken, r.c.router, amount); err != nil {
		return nil, err
	}

	data := calldata(sel, encodeAddress(m.ID), encodeUint256(amount))

	quoted, err := r.c.call(ctx, r.c.router, data)
	if err != nil {
		return nil, fmt.Errorf("venue: quote hop on %s: %w", m.ID.Hex(), err)
	}
	out, err := decodeUint256(quoted, 0)
	if err != nil {
		return nil, err
	}

	if _, err := r.c.send(ctx, r.c.router, data); err != nil {
		return nil, fmt.Errorf("venue: execute hop on %s: %w", m.ID.Hex(), err)
	}

	return out, nil
}

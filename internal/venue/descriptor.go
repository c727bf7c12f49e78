package venue

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Descriptor reads market metadata from the venue. It is consulted once per
// market, at registration time.
type Descriptor struct {
	c *Client
}

// NewDescriptor creates a Descriptor backed by the given client.
func NewDescriptor(c *Client) *Descriptor {
	return &Descriptor{c: c}
}

// ReadCoreTokens returns the market's three core token contracts
// (standardized yield, principal, yield), read from the market contract's
// readTokens() view.
func (d *Descriptor) ReadCoreTokens(ctx context.Context, market common.Address) (sy, pt, yt common.Address, err error) {
	out, err := d.c.call(ctx, market, calldata(selReadTokens))
	if err != nil {
		return common.Address{}, common.Address{}, common.Address{}, fmt.Errorf("venue: read core tokens of %s: %w", market.Hex(), err)
	}

	if sy, err = decodeAddress(out, 0); err != nil {
		return common.Address{}, common.Address{}, common.Address{}, err
	}
	if pt, err = decodeAddress(out, 1); err != nil {
		return common.Address{}, common.Address{}, common.Address{}, err
	}
	if yt, err = decodeAddress(out, 2); err != nil {
		return common.Address{}, common.Address{}, common.Address{}, err
	}
	return sy, pt, yt, nil
}

// BackingAsset returns the asset a standardized-yield wrapper is denominated
// in, from the SY contract's assetInfo() view. The address is the second
// word of the return tuple (assetType, assetAddress, decimals).
func (d *Descriptor) BackingAsset(ctx context.Context, sy common.Address) (common.Address, error) {
	out, err := d.c.call(ctx, sy, calldata(selAssetInfo))
	if err != nil {
		return common.Address{}, fmt.Errorf("venue: asset info of %s: %w", sy.Hex(), err)
	}
	return decodeAddress(out, 1)
}

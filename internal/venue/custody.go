package venue

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Custody moves ERC-20 balances between users and the operator wallet.
type Custody struct {
	c *Client
}

// NewCustody creates a Custody backed by the given client.
func NewCustody(c *Client) *Custody {
	return &Custody{c: c}
}

// TransferIn pulls amount of token from the user into the operator wallet
// via transferFrom. The user must have approved the operator beforehand;
// without that allowance the transaction reverts and the enclosing ledger
// operation aborts.
func (cu *Custody) TransferIn(ctx context.Context, token, from common.Address, amount *big.Int) error {
	data := calldata(selTransferFrom,
		encodeAddress(from),
		encodeAddress(cu.c.operator),
		encodeUint256(amount),
	)
	if _, err := cu.c.send(ctx, token, data); err != nil {
		return fmt.Errorf("venue: transfer in %s from %s: %w", token.Hex(), from.Hex(), err)
	}
	return nil
}

// TransferOut sends amount of token from the operator wallet to the user.
func (cu *Custody) TransferOut(ctx context.Context, token, to common.Address, amount *big.Int) error {
	data := calldata(selTransfer, encodeAddress(to), encodeUint256(amount))
	if _, err := cu.c.send(ctx, token, data); err != nil {
		return fmt.Errorf("venue: transfer out %s to %s: %w", token.Hex(), to.Hex(), err)
	}
	return nil
}

// Balance reads the operator wallet's balance of the given token.
func (cu *Custody) Balance(ctx context.Context, token common.Address) (*big.Int, error) {
	out, err := cu.c.call(ctx, token, calldata(selBalanceOf, encodeAddress(cu.c.operator)))
	if err != nil {
		return nil, err
	}
	return decodeUint256(out, 0)
}

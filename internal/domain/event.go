package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind labels a ledger event record.
type EventKind string

const (
	EventDeposit  EventKind = "deposit"
	EventConvert  EventKind = "convert"
	EventWithdraw EventKind = "withdraw"
)

// LedgerEvent is the append-only record emitted by every successful ledger
// transition. A swap emits its three constituent events rather than a
// record of its own.
//
// Field meaning per kind:
//
//	deposit:  SrcKind == DstKind == deposited kind, AmountIn == AmountOut
//	convert:  SrcKind/AmountIn are the prior holding, DstKind/AmountOut the new one
//	withdraw: SrcKind/AmountIn are the holding drained, DstKind/AmountOut what left custody
type LedgerEvent struct {
	ID        string         `json:"id"`
	Kind      EventKind      `json:"kind"`
	User      common.Address `json:"user"`
	MarketID  common.Address `json:"market_id"`
	SrcKind   TokenKind      `json:"src_kind"`
	DstKind   TokenKind      `json:"dst_kind"`
	AmountIn  *big.Int       `json:"amount_in"`
	AmountOut *big.Int       `json:"amount_out"`
	CreatedAt time.Time      `json:"created_at"`
}

// ledgerEventJSON is the wire shape of a LedgerEvent. Amounts travel as
// decimal strings because uint256 values do not survive JSON numbers.
type ledgerEventJSON struct {
	ID        string         `json:"id"`
	Kind      EventKind      `json:"kind"`
	User      common.Address `json:"user"`
	MarketID  common.Address `json:"market_id"`
	SrcKind   TokenKind      `json:"src_kind"`
	DstKind   TokenKind      `json:"dst_kind"`
	AmountIn  string         `json:"amount_in"`
	AmountOut string         `json:"amount_out"`
	CreatedAt time.Time      `json:"created_at"`
}

// MarshalJSON implements json.Marshaler.
func (e LedgerEvent) MarshalJSON() ([]byte, error) {
	zeroIfNil := func(n *big.Int) string {
		if n == nil {
			return "0"
		}
		return n.String()
	}
	return json.Marshal(ledgerEventJSON{
		ID:        e.ID,
		Kind:      e.Kind,
		User:      e.User,
		MarketID:  e.MarketID,
		SrcKind:   e.SrcKind,
		DstKind:   e.DstKind,
		AmountIn:  zeroIfNil(e.AmountIn),
		AmountOut: zeroIfNil(e.AmountOut),
		CreatedAt: e.CreatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *LedgerEvent) UnmarshalJSON(data []byte) error {
	var wire ledgerEventJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	amountIn, ok := new(big.Int).SetString(wire.AmountIn, 10)
	if !ok {
		return fmt.Errorf("domain: malformed amount_in %q", wire.AmountIn)
	}
	amountOut, ok := new(big.Int).SetString(wire.AmountOut, 10)
	if !ok {
		return fmt.Errorf("domain: malformed amount_out %q", wire.AmountOut)
	}

	*e = LedgerEvent{
		ID:        wire.ID,
		Kind:      wire.Kind,
		User:      wire.User,
		MarketID:  wire.MarketID,
		SrcKind:   wire.SrcKind,
		DstKind:   wire.DstKind,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		CreatedAt: wire.CreatedAt,
	}
	return nil
}

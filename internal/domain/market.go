// Package domain holds the core types, store interfaces, and sentinel errors
// shared by every layer of the vault.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MarketInfo maps a registered yield market to its five token contracts.
// The record is written exactly once at registration and never mutated:
// a zero underlying address means the market is unregistered.
type MarketInfo struct {
	ID        common.Address                `json:"id"`
	Tokens    [NumTokenKinds]common.Address `json:"tokens"`
	CreatedAt time.Time                     `json:"created_at"`
}

// Token returns the contract address for the given kind, or the zero
// address when the kind is out of range.
func (m MarketInfo) Token(k TokenKind) common.Address {
	if !k.Valid() {
		return common.Address{}
	}
	return m.Tokens[k]
}

// Registered reports whether the market record has been populated. The
// underlying slot is the sentinel: every registered market has one.
func (m MarketInfo) Registered() bool {
	return m.Tokens[KindUnderlying] != (common.Address{})
}

package venue

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

// paperOperator is the fixed custody address of the paper venue.
var paperOperator = common.HexToAddress("0x00000000000000000000000000000000aaaa0001")

// Approval records one scoped spend grant issued during a paper conversion.
type Approval struct {
	Token   common.Address
	Spender common.Address
	Amount  *big.Int
}

// Paper is an in-memory venue used in dev mode and tests. Token contracts
// are derived deterministically from the market address, balances live in a
// map, and every non-identity conversion hop charges a flat fee in basis
// points. It satisfies the ledger's Descriptor, Converter, and Custody
// contracts.
type Paper struct {
	mu        sync.Mutex
	feeBps    int64
	balances  map[common.Address]map[common.Address]*big.Int // token -> holder -> amount
	backing   map[common.Address]common.Address              // sy -> underlying
	approvals []Approval
}

// NewPaper creates a paper venue charging feeBps per conversion hop.
func NewPaper(feeBps int) *Paper {
	return &Paper{
		feeBps:   int64(feeBps),
		balances: make(map[common.Address]map[common.Address]*big.Int),
		backing:  make(map[common.Address]common.Address),
	}
}

// Operator returns the paper custody address.
func (p *Paper) Operator() common.Address {
	return paperOperator
}

// TokenFor derives the deterministic token contract address for a kind of
// the given market. The LP token is the market itself, matching the real
// venue.
func (p *Paper) TokenFor(market common.Address, kind domain.TokenKind) common.Address {
	if kind == domain.KindLP {
		return market
	}
	h := ethcrypto.Keccak256(market.Bytes(), []byte{byte(kind)})
	return common.BytesToAddress(h[12:])
}

// ReadCoreTokens implements the descriptor contract.
func (p *Paper) ReadCoreTokens(_ context.Context, market common.Address) (sy, pt, yt common.Address, err error) {
	sy = p.TokenFor(market, domain.KindSY)
	pt = p.TokenFor(market, domain.KindPT)
	yt = p.TokenFor(market, domain.KindYT)

	p.mu.Lock()
	p.backing[sy] = p.TokenFor(market, domain.KindUnderlying)
	p.mu.Unlock()
	return sy, pt, yt, nil
}

// BackingAsset implements the descriptor contract. The SY address must have
// been seen by ReadCoreTokens first, mirroring the registration flow.
func (p *Paper) BackingAsset(_ context.Context, sy common.Address) (common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.backing[sy]
	if !ok {
		return common.Address{}, fmt.Errorf("venue: unknown sy token %s", sy.Hex())
	}
	return u, nil
}

// Convert implements the converter contract: two hops through SY, each
// non-identity hop charging the configured fee and recording a scoped
// approval, the way the real router grants allowances per hop.
func (p *Paper) Convert(_ context.Context, m domain.MarketInfo, src domain.TokenKind, amount *big.Int, dst domain.TokenKind) (*big.Int, error) {
	if !src.Valid() || !dst.Valid() {
		return nil, domain.ErrInvalidKind
	}
	if amount == nil || amount.Sign() == 0 {
		return new(big.Int), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	syAmount := amount
	if src != domain.KindSY {
		p.approvals = append(p.approvals, Approval{Token: m.Token(src), Spender: m.ID, Amount: new(big.Int).Set(amount)})
		syAmount = p.afterFee(amount)
	}

	out := syAmount
	if dst != domain.KindSY {
		p.approvals = append(p.approvals, Approval{Token: m.Token(domain.KindSY), Spender: m.ID, Amount: new(big.Int).Set(syAmount)})
		out = p.afterFee(syAmount)
	}

	// Move the custody balance from the source to the destination token.
	if err := p.debit(m.Token(src), paperOperator, amount); err != nil {
		return nil, err
	}
	p.credit(m.Token(dst), paperOperator, out)

	return out, nil
}

// TransferIn implements the custody contract: user -> operator.
func (p *Paper) TransferIn(_ context.Context, token, from common.Address, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.debit(token, from, amount); err != nil {
		return err
	}
	p.credit(token, paperOperator, amount)
	return nil
}

// TransferOut implements the custody contract: operator -> user.
func (p *Paper) TransferOut(_ context.Context, token, to common.Address, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.debit(token, paperOperator, amount); err != nil {
		return err
	}
	p.credit(token, to, amount)
	return nil
}

// Mint credits a holder with amount of token out of thin air. Dev and test
// helper.
func (p *Paper) Mint(token, holder common.Address, amount *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.credit(token, holder, amount)
}

// Balance returns a holder's balance of token.
func (p *Paper) Balance(token, holder common.Address) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.balances[token][holder]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Approvals returns the scoped spend grants issued so far.
func (p *Paper) Approvals() []Approval {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Approval, len(p.approvals))
	copy(out, p.approvals)
	return out
}

func (p *Paper) afterFee(amount *big.Int) *big.Int {
	keep := big.NewInt(10_000 - p.feeBps)
	out := new(big.Int).Mul(amount, keep)
	return out.Div(out, big.NewInt(10_000))
}

func (p *Paper) credit(token, holder common.Address, amount *big.Int) {
	if p.balances[token] == nil {
		p.balances[token] = make(map[common.Address]*big.Int)
	}
	cur := p.balances[token][holder]
	if cur == nil {
		cur = new(big.Int)
	}
	p.balances[token][holder] = new(big.Int).Add(cur, amount)
}

func (p *Paper) debit(token, holder common.Address, amount *big.Int) error {
	cur := p.balances[token][holder]
	if cur == nil || cur.Cmp(amount) < 0 {
		return fmt.Errorf("venue: insufficient %s balance for %s", token.Hex(), holder.Hex())
	}
	p.balances[token][holder] = new(big.Int).Sub(cur, amount)
	return nil
}

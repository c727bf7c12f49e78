package venue

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/yieldvault/internal/domain"
)

var (
	testMarket = common.HexToAddress("0x00000000000000000000000000000000beef0001")
	testUser   = common.HexToAddress("0x00000000000000000000000000000000cafe0001")
)

// paperMarket registers the market with the paper venue and returns its
// token table, the way the registry would build it.
func paperMarket(t *testing.T, p *Paper) domain.MarketInfo {
	t.Helper()

	sy, pt, yt, err := p.ReadCoreTokens(context.Background(), testMarket)
	if err != nil {
		t.Fatalf("read core tokens: %v", err)
	}
	underlying, err := p.BackingAsset(context.Background(), sy)
	if err != nil {
		t.Fatalf("backing asset: %v", err)
	}

	m := domain.MarketInfo{ID: testMarket}
	m.Tokens[domain.KindUnderlying] = underlying
	m.Tokens[domain.KindSY] = sy
	m.Tokens[domain.KindPT] = pt
	m.Tokens[domain.KindYT] = yt
	m.Tokens[domain.KindLP] = testMarket
	return m
}

func TestPaperTokenDerivation(t *testing.T) {
	p := NewPaper(0)
	m := paperMarket(t, p)

	seen := make(map[common.Address]bool)
	for k := 0; k < domain.NumTokenKinds; k++ {
		addr := m.Tokens[k]
		if addr == (common.Address{}) {
			t.Fatalf("kind %d derived the zero address", k)
		}
		if seen[addr] {
			t.Fatalf("kind %d collides with another token", k)
		}
		seen[addr] = true
	}

	if m.Tokens[domain.KindLP] != testMarket {
		t.Error("liquidity share token should be the market contract itself")
	}

	// Derivation is deterministic across instances.
	p2 := NewPaper(0)
	if p2.TokenFor(testMarket, domain.KindPT) != m.Tokens[domain.KindPT] {
		t.Error("token derivation differs across paper instances")
	}
}

func TestPaperConvertFees(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		feeBps int
		src    domain.TokenKind
		dst    domain.TokenKind
		in     int64
		want   int64
	}{
		{name: "no fee pt to yt", feeBps: 0, src: domain.KindPT, dst: domain.KindYT, in: 10_000, want: 10_000},
		{name: "one hop into sy", feeBps: 30, src: domain.KindPT, dst: domain.KindSY, in: 10_000, want: 9_970},
		{name: "one hop out of sy", feeBps: 30, src: domain.KindSY, dst: domain.KindLP, in: 10_000, want: 9_970},
		{name: "two hops", feeBps: 30, src: domain.KindPT, dst: domain.KindYT, in: 10_000, want: 9_940},
		{name: "fee rounds down", feeBps: 30, src: domain.KindPT, dst: domain.KindSY, in: 3, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPaper(tt.feeBps)
			m := paperMarket(t, p)
			p.Mint(m.Token(tt.src), p.Operator(), big.NewInt(tt.in))

			out, err := p.Convert(ctx, m, tt.src, big.NewInt(tt.in), tt.dst)
			if err != nil {
				t.Fatalf("convert: %v", err)
			}
			if out.Int64() != tt.want {
				t.Errorf("output = %s, want %d", out, tt.want)
			}

			if got := p.Balance(m.Token(tt.dst), p.Operator()); got.Int64() != tt.want {
				t.Errorf("custody balance of dst = %s, want %d", got, tt.want)
			}
			if got := p.Balance(m.Token(tt.src), p.Operator()); got.Sign() != 0 {
				t.Errorf("custody balance of src = %s, want 0", got)
			}
		})
	}
}

func TestPaperConvertZeroAmount(t *testing.T) {
	p := NewPaper(30)
	m := paperMarket(t, p)

	out, err := p.Convert(context.Background(), m, domain.KindPT, new(big.Int), domain.KindYT)
	if err != nil {
		t.Fatalf("convert zero: %v", err)
	}
	if out.Sign() != 0 {
		t.Errorf("zero input produced output %s", out)
	}
	if len(p.Approvals()) != 0 {
		t.Error("zero conversion should not grant approvals")
	}
}

func TestPaperConvertScopedApprovals(t *testing.T) {
	p := NewPaper(10)
	m := paperMarket(t, p)
	p.Mint(m.Token(domain.KindPT), p.Operator(), big.NewInt(1_000))

	if _, err := p.Convert(context.Background(), m, domain.KindPT, big.NewInt(1_000), domain.KindYT); err != nil {
		t.Fatalf("convert: %v", err)
	}

	approvals := p.Approvals()
	if len(approvals) != 2 {
		t.Fatalf("got %d approvals, want one per hop", len(approvals))
	}

	// First hop spends the exact input of PT; second spends the exact SY
	// received, not the original amount.
	if approvals[0].Token != m.Token(domain.KindPT) || approvals[0].Amount.Int64() != 1_000 {
		t.Errorf("hop 1 approval = %s of %s", approvals[0].Amount, approvals[0].Token.Hex())
	}
	if approvals[1].Token != m.Token(domain.KindSY) || approvals[1].Amount.Int64() != 999 {
		t.Errorf("hop 2 approval = %s of %s", approvals[1].Amount, approvals[1].Token.Hex())
	}
}

func TestPaperCustodyTransfers(t *testing.T) {
	p := NewPaper(0)
	m := paperMarket(t, p)
	token := m.Token(domain.KindUnderlying)

	p.Mint(token, testUser, big.NewInt(500))

	if err := p.TransferIn(context.Background(), token, testUser, big.NewInt(300)); err != nil {
		t.Fatalf("transfer in: %v", err)
	}
	if got := p.Balance(token, testUser); got.Int64() != 200 {
		t.Errorf("user balance = %s, want 200", got)
	}
	if got := p.Balance(token, p.Operator()); got.Int64() != 300 {
		t.Errorf("custody balance = %s, want 300", got)
	}

	// Overdrawing fails and changes nothing.
	if err := p.TransferIn(context.Background(), token, testUser, big.NewInt(900)); err == nil {
		t.Fatal("expected insufficient balance error")
	}
	if got := p.Balance(token, testUser); got.Int64() != 200 {
		t.Errorf("user balance after failed transfer = %s, want 200", got)
	}

	if err := p.TransferOut(context.Background(), token, testUser, big.NewInt(300)); err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	if got := p.Balance(token, testUser); got.Int64() != 500 {
		t.Errorf("user balance after withdraw = %s, want 500", got)
	}
}

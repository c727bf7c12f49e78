package venue

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestSelectorsMatchKnownERC20(t *testing.T) {
	// Selectors published in the ERC-20 ABI; any drift here means calldata
	// would hit the wrong function.
	tests := []struct {
		name string
		sel  []byte
		want string
	}{
		{name: "approve", sel: selApprove, want: "095ea7b3"},
		{name: "transfer", sel: selTransfer, want: "a9059cbb"},
		{name: "transferFrom", sel: selTransferFrom, want: "23b872dd"},
		{name: "balanceOf", sel: selBalanceOf, want: "70a08231"},
	}

	for _, tt := range tests {
		if got := hex.EncodeToString(tt.sel); got != tt.want {
			t.Errorf("%s selector = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestSelectorsAreDistinct(t *testing.T) {
	sels := [][]byte{
		selApprove, selTransfer, selTransferFrom, selBalanceOf,
		selReadTokens, selAssetInfo,
		selMintSy, selSwapPtForSy, selSwapYtForSy, selRemoveLiqSy,
		selRedeemSy, selSwapSyForPt, selSwapSyForYt, selAddLiqSy,
	}
	seen := make(map[string]bool)
	for _, s := range sels {
		if len(s) != 4 {
			t.Fatalf("selector length %d, want 4", len(s))
		}
		key := hex.EncodeToString(s)
		if seen[key] {
			t.Errorf("duplicate selector %s", key)
		}
		seen[key] = true
	}
}

func TestEncodeDecodeWords(t *testing.T) {
	addr := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	amount := new(big.Int).SetUint64(1_000_000_000_000_000_000)

	data := append(encodeAddress(addr), encodeUint256(amount)...)
	if len(data) != 64 {
		t.Fatalf("encoded length %d, want 64", len(data))
	}

	gotAddr, err := decodeAddress(data, 0)
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if gotAddr != addr {
		t.Errorf("decoded address %s, want %s", gotAddr.Hex(), addr.Hex())
	}

	gotAmount, err := decodeUint256(data, 1)
	if err != nil {
		t.Fatalf("decode uint256: %v", err)
	}
	if gotAmount.Cmp(amount) != 0 {
		t.Errorf("decoded amount %s, want %s", gotAmount, amount)
	}
}

func TestDecodeShortData(t *testing.T) {
	if _, err := decodeUint256(make([]byte, 32), 1); err == nil {
		t.Error("expected error decoding word 1 of a 32-byte blob")
	}
	if _, err := decodeAddress(nil, 0); err == nil {
		t.Error("expected error decoding an empty blob")
	}
}

func TestCalldataLayout(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	amount := big.NewInt(42)

	data := calldata(selApprove, encodeAddress(addr), encodeUint256(amount))

	if len(data) != 4+32+32 {
		t.Fatalf("calldata length %d, want 68", len(data))
	}
	if !bytes.Equal(data[:4], selApprove) {
		t.Error("calldata does not start with the selector")
	}
	if got, _ := decodeUint256(data[4:], 1); got.Cmp(amount) != 0 {
		t.Errorf("amount word = %s, want %s", got, amount)
	}
}

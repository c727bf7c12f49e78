package venue

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// --------------------------------------------------------------------------
// Function selectors (first 4 bytes of keccak256 of the canonical
// signature). The venue router exposes one entry point per conversion hop;
// every hop takes the market address and an exact input amount.
// --------------------------------------------------------------------------

var (
	// ERC-20
	selApprove      = selector("approve(address,uint256)")
	selTransfer     = selector("transfer(address,uint256)")
	selTransferFrom = selector("transferFrom(address,address,uint256)")
	selBalanceOf    = selector("balanceOf(address)")

	// Market descriptor
	selReadTokens = selector("readTokens()")
	selAssetInfo  = selector("assetInfo()")

	// Router hops into the normalized (SY) representation
	selMintSy      = selector("mintSy(address,uint256)")
	selSwapPtForSy = selector("swapExactPtForSy(address,uint256)")
	selSwapYtForSy = selector("swapExactYtForSy(address,uint256)")
	selRemoveLiqSy = selector("removeLiquiditySingleSy(address,uint256)")

	// Router hops out of the normalized representation
	selRedeemSy    = selector("redeemSy(address,uint256)")
	selSwapSyForPt = selector("swapExactSyForPt(address,uint256)")
	selSwapSyForYt = selector("swapExactSyForYt(address,uint256)")
	selAddLiqSy    = selector("addLiquiditySingleSy(address,uint256)")
)

func selector(sig string) []byte {
	return ethcrypto.Keccak256([]byte(sig))[:4]
}

// encodeAddress left-pads a 20-byte address to a 32-byte ABI word.
func encodeAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

// encodeUint256 encodes a non-negative big.Int as a 32-byte ABI word.
func encodeUint256(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}

// decodeUint256 decodes the ABI word at the given index of a return blob.
func decodeUint256(data []byte, word int) (*big.Int, error) {
	start := word * 32
	if len(data) < start+32 {
		return nil, fmt.Errorf("venue: return data too short for word %d (%d bytes)", word, len(data))
	}
	return new(big.Int).SetBytes(data[start : start+32]), nil
}

// decodeAddress decodes the ABI word at the given index as an address.
func decodeAddress(data []byte, word int) (common.Address, error) {
	start := word * 32
	if len(data) < start+32 {
		return common.Address{}, fmt.Errorf("venue: return data too short for word %d (%d bytes)", word, len(data))
	}
	return common.BytesToAddress(data[start+12 : start+32]), nil
}

// calldata concatenates a selector with its ABI-encoded arguments.
func calldata(sel []byte, args ...[]byte) []byte {
	size := len(sel)
	for _, a := range args {
		size += len(a)
	}
	out := make([]byte, 0, size)
	out = append(out, sel...)
	for _, a := range args {
		out = append(out, a...)
	}
	return out
}

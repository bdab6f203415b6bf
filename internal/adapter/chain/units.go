package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

const tokenDecimals = 18

// ToWei converts a whole-token amount to base units. Amounts with more than
// 18 fractional digits are rejected rather than rounded.
func ToWei(amount decimal.Decimal) (*big.Int, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}
	wei := amount.Shift(tokenDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, tokenDecimals)
	}
	return wei.BigInt(), nil
}

// FromWei converts base units back to whole tokens.
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -tokenDecimals)
}

// DecodeAuthorization parses a 0x-hex authorization into the contract's bytes32 slot.
func DecodeAuthorization(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hexutil.Decode(s)
	if err != nil {
		return out, fmt.Errorf("authorization is not 0x-hex: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("authorization must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

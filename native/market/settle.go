package market

import (
	"fmt"
	"math/big"
)

// MaxFeeBps caps the marketplace fee at 100%.
const MaxFeeBps uint16 = 10_000

var bpsDenominator = big.NewInt(int64(MaxFeeBps))

// Settle splits a sale price into the seller payout and the treasury fee.
// feeAmount = floor(price * feeBps / 10000), sellerAmount = price - feeAmount,
// so sellerAmount + feeAmount == price exactly with no rounding leakage. The
// intermediate product is computed on big.Int so a maximal u64 price cannot
// overflow.
func Settle(priceLamports uint64, feeBps uint16) (sellerAmount, feeAmount uint64, err error) {
	if feeBps > MaxFeeBps {
		return 0, 0, ErrFeeTooHigh
	}
	fee := new(big.Int).SetUint64(priceLamports)
	fee.Mul(fee, new(big.Int).SetUint64(uint64(feeBps)))
	fee.Div(fee, bpsDenominator)
	if !fee.IsUint64() {
		return 0, 0, fmt.Errorf("market: fee overflows u64")
	}
	feeAmount = fee.Uint64()
	return priceLamports - feeAmount, feeAmount, nil
}

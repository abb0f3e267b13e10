package monitor

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Normalize scales a raw token amount by the asset's decimals and values it
// in USD. The division is exact and the USD value is floored to whole
// dollars, rounding toward negative infinity. Signs propagate unchanged.
func Normalize(raw *big.Int, decimals uint8, usdPerUnit decimal.Decimal) (normalized decimal.Decimal, usdValue decimal.Decimal) {
	if raw == nil {
		return decimal.Zero, decimal.Zero
	}
	normalized = decimal.NewFromBigInt(raw, -int32(decimals))
	usdValue = usdPerUnit.Mul(normalized).Floor()
	return normalized, usdValue
}

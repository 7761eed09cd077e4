package utils

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// BaseUnitsToDecimal scales a base-unit amount (wei, lamports, raw SPL units)
// down by 10^decimals.
func BaseUnitsToDecimal(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, 0).Shift(-decimals)
}

// RawAmountToDecimal parses a base-10 base-unit string (the Solana token
// amount encoding) and scales it down by 10^decimals. Malformed input yields
// zero.
func RawAmountToDecimal(raw string, decimals int32) decimal.Decimal {
	n, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return decimal.Zero
	}
	return BaseUnitsToDecimal(n, decimals)
}

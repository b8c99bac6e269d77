package drift

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ScaleInt converts a signed fixed-point value into human units.
func ScaleInt(raw int64, decimals int32) decimal.Decimal {
	return decimal.NewFromInt(raw).Shift(-decimals)
}

// ScaleUint converts an unsigned fixed-point value into human units without overflowing int64.
func ScaleUint(raw uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -decimals)
}

// QuoteAmount scales a QUOTE_PRECISION value (USDC).
func QuoteAmount(raw int64) decimal.Decimal {
	return ScaleInt(raw, QuoteDecimals)
}

// BaseAmount scales a BASE_PRECISION value.
func BaseAmount(raw int64) decimal.Decimal {
	return ScaleInt(raw, BaseDecimals)
}

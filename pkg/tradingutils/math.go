// Package tradingutils holds small, pure decimal helpers shared by the
// rung-pricing and rounding logic of the grid engine.
package tradingutils

import (
	"github.com/shopspring/decimal"
)

// RoundPrice rounds a price to the specified decimal precision.
func RoundPrice(price decimal.Decimal, priceDecimals int32) decimal.Decimal {
	return price.Round(priceDecimals)
}

// RoundQuantity rounds a quantity to the specified decimal precision.
func RoundQuantity(qty decimal.Decimal, qtyDecimals int32) decimal.Decimal {
	return qty.Round(qtyDecimals)
}

// GeometricRung computes ref * (1 + signedSpread*spread)^(rungIndex+1), the
// compounding ladder-rung formula: each rung is one more spread-multiple
// away from the reference price than the last, so consecutive rungs keep
// a constant percentage gap rather than a constant absolute one.
//
// signedSpread already carries both the bias sign and the side direction
// (positive moves rungs up from ref, negative moves them down); callers
// combine GridConfig.SideBias.Sign() with the side being priced before
// calling this.
func GeometricRung(ref, spread decimal.Decimal, rungIndex int, signedSpread int) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(spread.Mul(decimal.NewFromInt(int64(signedSpread))))
	price := ref
	for i := 0; i <= rungIndex; i++ {
		price = price.Mul(factor)
	}
	return price
}

// SeedRung computes ref * (1 + signedSpread*spread)^rungIndex: unlike
// GeometricRung, rung 0 sits exactly at ref and each later rung compounds
// one more step away. Used only for the one-shot initial ladder, where the
// first order is posted at the observed mid price itself.
func SeedRung(ref, spread decimal.Decimal, rungIndex int, signedSpread int) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(spread.Mul(decimal.NewFromInt(int64(signedSpread))))
	price := ref
	for i := 0; i < rungIndex; i++ {
		price = price.Mul(factor)
	}
	return price
}

// FindNearestGridPrice aligns a price to the nearest grid level based on an
// anchor and a fixed interval.
func FindNearestGridPrice(currentPrice, anchorPrice, interval decimal.Decimal) decimal.Decimal {
	if interval.IsZero() {
		return currentPrice
	}
	offset := currentPrice.Sub(anchorPrice)
	intervals := offset.Div(interval).Round(0)
	return anchorPrice.Add(intervals.Mul(interval))
}

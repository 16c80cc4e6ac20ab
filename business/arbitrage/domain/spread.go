package domain

import "github.com/shopspring/decimal"

var bpsFactor = decimal.NewFromInt(10000)

// Spread represents the price difference between a buy venue and a sell venue.
type Spread struct {
	BuyPrice    decimal.Decimal
	SellPrice   decimal.Decimal
	Absolute    decimal.Decimal // sell - buy
	Fraction    decimal.Decimal // (sell - buy) / buy
	BasisPoints decimal.Decimal // Fraction * 10000
}

// CalculateSpread computes the gross spread of buying at buyPrice and
// selling at sellPrice.
func CalculateSpread(buyPrice, sellPrice decimal.Decimal) Spread {
	absolute := sellPrice.Sub(buyPrice)
	fraction := decimal.Zero
	if buyPrice.IsPositive() {
		fraction = absolute.Div(buyPrice)
	}

	return Spread{
		BuyPrice:    buyPrice,
		SellPrice:   sellPrice,
		Absolute:    absolute,
		Fraction:    fraction,
		BasisPoints: fraction.Mul(bpsFactor),
	}
}

// IsPositive reports whether selling yields more than buying.
func (s Spread) IsPositive() bool {
	return s.Absolute.IsPositive() && s.BuyPrice.IsPositive()
}

package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateSpread(t *testing.T) {
	tests := []struct {
		name         string
		buyPrice     string
		sellPrice    string
		wantAbsolute string
		wantBPS      string
		wantPositive bool
	}{
		{
			name:         "equal_prices_no_spread",
			buyPrice:     "100.00",
			sellPrice:    "100.00",
			wantAbsolute: "0",
			wantBPS:      "0",
		},
		{
			name:         "sell_higher_180bps",
			buyPrice:     "100.00",
			sellPrice:    "101.80",
			wantAbsolute: "1.8",
			wantBPS:      "180",
			wantPositive: true,
		},
		{
			name:         "sell_lower_negative",
			buyPrice:     "101.80",
			sellPrice:    "100.00",
			wantAbsolute: "-1.8",
			wantBPS:      "-177", // -1.8/101.8 * 10000 = -176.8
		},
		{
			name:         "zero_buy_price_no_panic",
			buyPrice:     "0",
			sellPrice:    "100.00",
			wantAbsolute: "100",
			wantBPS:      "0",
		},
		{
			name:         "tiny_spread",
			buyPrice:     "3400.00",
			sellPrice:    "3400.34",
			wantAbsolute: "0.34",
			wantBPS:      "1",
			wantPositive: true,
		},
		{
			name:         "small_numbers",
			buyPrice:     "0.001",
			sellPrice:    "0.00101",
			wantAbsolute: "0.00001",
			wantBPS:      "100",
			wantPositive: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buy := decimal.RequireFromString(tt.buyPrice)
			sell := decimal.RequireFromString(tt.sellPrice)

			spread := CalculateSpread(buy, sell)

			if !spread.BuyPrice.Equal(buy) {
				t.Errorf("BuyPrice = %s, want %s", spread.BuyPrice, buy)
			}
			if !spread.SellPrice.Equal(sell) {
				t.Errorf("SellPrice = %s, want %s", spread.SellPrice, sell)
			}

			wantAbsolute := decimal.RequireFromString(tt.wantAbsolute)
			if !spread.Absolute.Equal(wantAbsolute) {
				t.Errorf("Absolute = %s, want %s", spread.Absolute, wantAbsolute)
			}

			wantBPS := decimal.RequireFromString(tt.wantBPS)
			if got := spread.BasisPoints.Round(0); !got.Equal(wantBPS) {
				t.Errorf("BasisPoints = %s (rounded: %s), want %s", spread.BasisPoints, got, wantBPS)
			}

			if got := spread.IsPositive(); got != tt.wantPositive {
				t.Errorf("IsPositive() = %v, want %v", got, tt.wantPositive)
			}
		})
	}
}

func TestCalculateSpread_FractionMatchesBasisPoints(t *testing.T) {
	spread := CalculateSpread(decimal.RequireFromString("100"), decimal.RequireFromString("101.8"))

	if !spread.Fraction.Equal(decimal.RequireFromString("0.018")) {
		t.Errorf("Fraction = %s, want 0.018", spread.Fraction)
	}
	if !spread.BasisPoints.Equal(decimal.NewFromInt(180)) {
		t.Errorf("BasisPoints = %s, want 180", spread.BasisPoints)
	}
}

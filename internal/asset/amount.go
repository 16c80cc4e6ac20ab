package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrNilAsset        = errors.New("asset: nil asset")
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrTooManyDecimals = errors.New("asset: too many decimal places for asset")
	ErrOverflow        = errors.New("asset: amount does not fit in u64")
	ErrEmptyReserve    = errors.New("asset: empty reserve")
)

// pricePrecision is the number of fractional digits kept by MidPrice.
const pricePrecision = 18

var pricePrecisionMultiplier = new(big.Int).Exp(big.NewInt(10), big.NewInt(pricePrecision), nil)

// Amount is a token balance in the mint's smallest unit.
type Amount struct {
	raw   *big.Int
	asset *Asset
}

// NewAmount copies raw. It panics on a nil asset or a negative value.
func NewAmount(a *Asset, raw *big.Int) Amount {
	if a == nil {
		panic(ErrNilAsset)
	}
	if raw == nil || raw.Sign() < 0 {
		panic(ErrNegativeAmount)
	}
	return Amount{raw: new(big.Int).Set(raw), asset: a}
}

// NewAmountFromUint64 wraps an on-chain u64 balance.
func NewAmountFromUint64(a *Asset, raw uint64) Amount {
	return NewAmount(a, new(big.Int).SetUint64(raw))
}

// ParseDecimal converts whole-token units into raw units. Digits beyond
// the mint's decimals are an error, not rounded.
func ParseDecimal(a *Asset, d decimal.Decimal) (Amount, error) {
	if a == nil {
		return Amount{}, ErrNilAsset
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}

	scaled := d.Shift(int32(a.Decimals()))
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, ErrTooManyDecimals
	}
	return NewAmount(a, scaled.BigInt()), nil
}

// ParseString is ParseDecimal for a decimal string.
func ParseString(a *Asset, s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("asset: invalid decimal string: %w", err)
	}
	return ParseDecimal(a, d)
}

// Raw returns a copy of the raw value.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.raw)
}

// Uint64 returns the raw value at the width SPL token balances use.
func (a Amount) Uint64() (uint64, error) {
	if a.raw == nil {
		return 0, nil
	}
	if !a.raw.IsUint64() {
		return 0, ErrOverflow
	}
	return a.raw.Uint64(), nil
}

func (a Amount) Asset() *Asset { return a.asset }

func (a Amount) IsZero() bool { return a.raw == nil || a.raw.Sign() == 0 }

// ToDecimal converts to whole-token units.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.raw == nil || a.asset == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.asset.Decimals()))
}

func (a Amount) String() string {
	if a.asset == nil {
		return "0 ???"
	}
	return a.ToDecimal().String() + " " + a.asset.Symbol()
}

// MidPrice is the constant-product mid price: quote per base in
// whole-token units, truncated to 18 fractional digits.
func MidPrice(base, quote Amount) (decimal.Decimal, error) {
	if base.asset == nil || quote.asset == nil {
		return decimal.Zero, ErrNilAsset
	}
	if base.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrEmptyReserve, base.asset.Symbol())
	}

	// quoteRaw * 10^(baseDec - quoteDec) * 10^18 / baseRaw
	num := new(big.Int).Mul(quote.Raw(), pricePrecisionMultiplier)
	den := base.Raw()
	shift := int64(base.asset.Decimals()) - int64(quote.asset.Decimals())
	switch {
	case shift > 0:
		num.Mul(num, new(big.Int).Exp(big.NewInt(10), big.NewInt(shift), nil))
	case shift < 0:
		den.Mul(den, new(big.Int).Exp(big.NewInt(10), big.NewInt(-shift), nil))
	}
	return decimal.NewFromBigInt(num.Quo(num, den), -pricePrecision), nil
}

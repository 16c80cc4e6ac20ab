// Package asset models SPL token mints and on-chain balances. Balances stay
// in raw u64/big.Int units; decimal.Decimal appears only where prices and
// profits are computed.
package asset

import "fmt"

// NativeMint is the wrapped SOL mint every DEX uses for the native coin.
const NativeMint = "So11111111111111111111111111111111111111112"

// AssetID identifies a token by its base58 mint. Symbols are display only.
type AssetID struct {
	mint string
}

// NewAssetID creates an AssetID for a mint.
func NewAssetID(mint string) AssetID {
	if mint == "" {
		panic("asset: empty mint")
	}
	return AssetID{mint: mint}
}

// Mint returns the base58 mint address.
func (id AssetID) Mint() string { return id.mint }

// IsNative reports whether the mint is wrapped SOL.
func (id AssetID) IsNative() bool { return id.mint == NativeMint }

// String shortens the mint for logs.
func (id AssetID) String() string {
	if len(id.mint) <= 8 {
		return id.mint
	}
	return fmt.Sprintf("%s..%s", id.mint[:4], id.mint[len(id.mint)-4:])
}

// Asset is a mint plus the metadata needed to scale its balances.
type Asset struct {
	id       AssetID
	symbol   string
	decimals uint8
}

// NewAsset creates an asset. SPL mints never exceed 18 decimals.
func NewAsset(id AssetID, symbol string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 18 {
		panic("asset: suspicious decimals (>18)")
	}
	return &Asset{id: id, symbol: symbol, decimals: decimals}
}

func (a *Asset) ID() AssetID     { return a.id }
func (a *Asset) Mint() string    { return a.id.mint }
func (a *Asset) Symbol() string  { return a.symbol }
func (a *Asset) Decimals() uint8 { return a.decimals }
func (a *Asset) String() string  { return a.symbol }

// Equals compares mints.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id == other.id
}

package asset

import (
	"fmt"
	"strings"
	"sync"
)

// Mainnet mints known at startup.
const (
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	MintMSOL = "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So"
	MintBONK = "DezXAZ8z7PnrnRJjz3wXBoRgixCaAPd2CX4iGyYD7XJF"
)

var (
	SOL  = NewAsset(NewAssetID(NativeMint), "SOL", 9)
	USDC = NewAsset(NewAssetID(MintUSDC), "USDC", 6)
	USDT = NewAsset(NewAssetID(MintUSDT), "USDT", 6)
	MSOL = NewAsset(NewAssetID(MintMSOL), "mSOL", 9)
	BONK = NewAsset(NewAssetID(MintBONK), "BONK", 5)
)

// Registry resolves pair symbols to assets. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	byMint   map[AssetID]*Asset
	bySymbol map[string]*Asset
}

func NewRegistry() *Registry {
	return &Registry{
		byMint:   make(map[AssetID]*Asset),
		bySymbol: make(map[string]*Asset),
	}
}

// DefaultRegistry holds the well-known mainnet assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []*Asset{SOL, USDC, USDT, MSOL, BONK} {
		r.Register(a)
	}
	return r
}

// Register panics on a mint that is already registered.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byMint[a.ID()]; exists {
		panic(fmt.Sprintf("asset: %s already registered", a.ID()))
	}
	r.byMint[a.ID()] = a
	r.bySymbol[strings.ToUpper(a.Symbol())] = a
}

// GetByMint looks up a base58 mint.
func (r *Registry) GetByMint(mint string) (*Asset, bool) {
	if mint == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byMint[NewAssetID(mint)]
	return a, ok
}

// GetBySymbol ignores case.
func (r *Registry) GetBySymbol(symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.bySymbol[strings.ToUpper(symbol)]
	return a, ok
}

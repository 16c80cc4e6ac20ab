package asset_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/internal/asset"
)

func TestAmount_Basic(t *testing.T) {
	oneSOL := asset.NewAmountFromUint64(asset.SOL, 1_000_000_000)

	if oneSOL.IsZero() {
		t.Error("expected non-zero amount")
	}
	if d := oneSOL.ToDecimal(); !d.Equal(decimal.NewFromInt(1)) {
		t.Errorf("ToDecimal() = %s, want 1", d)
	}
	if oneSOL.String() != "1 SOL" {
		t.Errorf("String() = %q, want %q", oneSOL.String(), "1 SOL")
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr error
	}{
		{name: "whole_sol", input: "2", want: 2_000_000_000},
		{name: "fractional_sol", input: "0.5", want: 500_000_000},
		{name: "lamport_precision", input: "0.000000001", want: 1},
		{name: "too_many_decimals", input: "0.0000000001", wantErr: asset.ErrTooManyDecimals},
		{name: "negative", input: "-1", wantErr: asset.ErrNegativeAmount},
		{name: "beyond_u64", input: "20000000000", wantErr: asset.ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asset.ParseDecimal(asset.SOL, decimal.RequireFromString(tt.input))
			if err == nil {
				_, err = got.Uint64()
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if raw, _ := got.Uint64(); raw != tt.want {
				t.Errorf("raw = %d, want %d", raw, tt.want)
			}
		})
	}
}

func TestMidPrice(t *testing.T) {
	tests := []struct {
		name    string
		base    asset.Amount
		quote   asset.Amount
		want    string
		wantErr error
	}{
		{
			// 1,000 SOL against 101,800 USDC
			name:  "sol_usdc",
			base:  asset.NewAmountFromUint64(asset.SOL, 1_000*1_000_000_000),
			quote: asset.NewAmountFromUint64(asset.USDC, 101_800*1_000_000),
			want:  "101.8",
		},
		{
			name:  "quote_has_more_decimals",
			base:  asset.NewAmountFromUint64(asset.USDC, 101_800*1_000_000),
			quote: asset.NewAmountFromUint64(asset.SOL, 1_000*1_000_000_000),
			want:  "0.009823182711198428",
		},
		{
			name:    "empty_base",
			base:    asset.NewAmountFromUint64(asset.SOL, 0),
			quote:   asset.NewAmountFromUint64(asset.USDC, 1),
			wantErr: asset.ErrEmptyReserve,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asset.MidPrice(tt.base, tt.quote)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want := decimal.RequireFromString(tt.want); !got.Equal(want) {
				t.Errorf("MidPrice() = %s, want %s", got, want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := asset.DefaultRegistry()

	if a, ok := r.GetBySymbol("sol"); !ok || !a.Equals(asset.SOL) {
		t.Errorf("GetBySymbol(sol) = %v, %v", a, ok)
	}
	if a, ok := r.GetByMint(asset.MintUSDC); !ok || a.Symbol() != "USDC" {
		t.Errorf("GetByMint(USDC) = %v, %v", a, ok)
	}
	if _, ok := r.GetBySymbol("XYZ"); ok {
		t.Error("GetBySymbol(XYZ) found an asset")
	}
	if !asset.SOL.ID().IsNative() {
		t.Error("SOL is not the native mint")
	}

	defer func() {
		if recover() == nil {
			t.Error("registering a duplicate mint did not panic")
		}
	}()
	r.Register(asset.NewAsset(asset.NewAssetID(asset.MintUSDC), "USDC2", 6))
}

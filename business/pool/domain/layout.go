package domain

import (
	"errors"
	"sort"
)

// Protocol identifies a venue program family.
type Protocol string

const (
	ProtocolRaydiumAMM      Protocol = "raydium-amm"
	ProtocolOrcaWhirlpool   Protocol = "orca-whirlpool"
	ProtocolSPLToken        Protocol = "spl-token"
	ProtocolConstantProduct Protocol = "constant-product"
	ProtocolQuote           Protocol = "quote"
)

// ErrUnsupportedLayout is returned for an unregistered (protocol, version).
var ErrUnsupportedLayout = errors.New("unsupported layout")

// LayoutKey selects one layout variant.
type LayoutKey struct {
	Protocol Protocol
	Version  string
}

func (k LayoutKey) String() string {
	return string(k.Protocol) + "/" + k.Version
}

// FieldKind is the on-chain encoding of a field. All integers are little-endian.
type FieldKind uint8

const (
	KindU8 FieldKind = iota + 1
	KindU16
	KindU32
	KindU64
	KindU128
	KindPubkey
)

// Size returns the byte width of the kind.
func (k FieldKind) Size() int {
	switch k {
	case KindU8:
		return 1
	case KindU16:
		return 2
	case KindU32:
		return 4
	case KindU64:
		return 8
	case KindU128:
		return 16
	case KindPubkey:
		return 32
	}
	return 0
}

// Field is one fixed-offset field of an account layout.
type Field struct {
	Offset int
	Kind   FieldKind
}

// End returns the first byte past the field.
func (f Field) End() int {
	return f.Offset + f.Kind.Size()
}

// ReserveSource says where a pool layout keeps its balances.
type ReserveSource uint8

const (
	// ReservesEmbedded: balances are fields of the pool account itself.
	ReservesEmbedded ReserveSource = iota + 1
	// ReservesInVaults: balances live in two SPL token accounts the pool references.
	ReservesInVaults
	// ReservesSelf: the account is itself a token account (one side).
	ReservesSelf
)

// Field names used across layouts.
const (
	FieldStatus         = "status"
	FieldBaseDecimals   = "base_decimals"
	FieldQuoteDecimals  = "quote_decimals"
	FieldFeeNumerator   = "fee_numerator"
	FieldFeeDenominator = "fee_denominator"
	FieldFeeBps         = "fee_bps"
	FieldFeeRate        = "fee_rate" // hundredths of a bp
	FieldBaseNeedPnl    = "base_need_take_pnl"
	FieldQuoteNeedPnl   = "quote_need_take_pnl"
	FieldLiquidity      = "liquidity"
	FieldSqrtPrice      = "sqrt_price"
	FieldReserveA       = "reserve_a"
	FieldReserveB       = "reserve_b"
	FieldMintA          = "mint_a"
	FieldMintB          = "mint_b"
	FieldVaultA         = "vault_a"
	FieldVaultB         = "vault_b"
	FieldOwner          = "owner"
	FieldAmount         = "amount"
	FieldState          = "state"
	FieldLayoutVersion  = "layout_version"
)

// Layout declares the byte offsets of one (protocol, version) variant.
type Layout struct {
	Key      LayoutKey
	Size     int // minimum account length
	Reserves ReserveSource
	Fields   map[string]Field
}

// Field returns a named field.
func (l Layout) Field(name string) (Field, bool) {
	f, ok := l.Fields[name]
	return f, ok
}

// FieldNames returns the field names ordered by offset.
func (l Layout) FieldNames() []string {
	names := make([]string, 0, len(l.Fields))
	for n := range l.Fields {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		fi, fj := l.Fields[names[i]], l.Fields[names[j]]
		if fi.Offset != fj.Offset {
			return fi.Offset < fj.Offset
		}
		return names[i] < names[j]
	})
	return names
}

var layouts = map[LayoutKey]Layout{
	// Raydium AMM v4 LIQUIDITY_STATE. Balances are the vault amounts minus
	// the PnL the program still owes.
	{ProtocolRaydiumAMM, "v4"}: {
		Size:     752,
		Reserves: ReservesInVaults,
		Fields: map[string]Field{
			FieldStatus:         {0, KindU64},
			FieldBaseDecimals:   {32, KindU64},
			FieldQuoteDecimals:  {40, KindU64},
			FieldFeeNumerator:   {176, KindU64},
			FieldFeeDenominator: {184, KindU64},
			FieldBaseNeedPnl:    {192, KindU64},
			FieldQuoteNeedPnl:   {200, KindU64},
			FieldVaultA:         {336, KindPubkey},
			FieldVaultB:         {368, KindPubkey},
			FieldMintA:          {400, KindPubkey},
			FieldMintB:          {432, KindPubkey},
		},
	},
	// Orca Whirlpool account (8 byte anchor discriminator first).
	{ProtocolOrcaWhirlpool, "v1"}: {
		Size:     653,
		Reserves: ReservesInVaults,
		Fields: map[string]Field{
			FieldFeeRate:   {45, KindU16},
			FieldLiquidity: {49, KindU128},
			FieldSqrtPrice: {65, KindU128},
			FieldMintA:     {101, KindPubkey},
			FieldVaultA:    {133, KindPubkey},
			FieldMintB:     {181, KindPubkey},
			FieldVaultB:    {213, KindPubkey},
		},
	},
	// SPL token account.
	{ProtocolSPLToken, "v1"}: {
		Size:     165,
		Reserves: ReservesSelf,
		Fields: map[string]Field{
			FieldMintA:  {0, KindPubkey},
			FieldOwner:  {32, KindPubkey},
			FieldAmount: {64, KindU64},
			FieldState:  {108, KindU8},
		},
	},
	// Generic self-contained constant-product pool.
	{ProtocolConstantProduct, "v1"}: {
		Size:     120,
		Reserves: ReservesEmbedded,
		Fields: map[string]Field{
			FieldLayoutVersion: {0, KindU8},
			FieldBaseDecimals:  {1, KindU8},
			FieldQuoteDecimals: {2, KindU8},
			FieldFeeBps:        {4, KindU16},
			FieldReserveA:      {8, KindU64},
			FieldReserveB:      {16, KindU64},
			FieldMintA:         {24, KindPubkey},
			FieldMintB:         {56, KindPubkey},
		},
	},
}

func init() {
	for k, l := range layouts {
		l.Key = k
		layouts[k] = l
	}
}

// LookupLayout returns the registered variant for key.
func LookupLayout(key LayoutKey) (Layout, bool) {
	l, ok := layouts[key]
	return l, ok
}

// Layouts returns every registered variant ordered by key.
func Layouts() []Layout {
	out := make([]Layout, 0, len(layouts))
	for _, l := range layouts {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

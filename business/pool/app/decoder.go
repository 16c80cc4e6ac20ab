package app

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/business/pool/domain"
	"github.com/fd1az/dex-arbitrage/internal/asset"
)

const (
	tokenAccountInitialized = 1
	pricePrecision          = 18
)

var (
	bps     = decimal.NewFromInt(10000)
	q64Sq   = new(big.Int).Lsh(big.NewInt(1), 128)
	precMul = new(big.Int).Exp(big.NewInt(10), big.NewInt(pricePrecision), nil)
)

// AccountSet is the raw input for decoding one account-sourced target.
type AccountSet struct {
	Pool       Account
	VaultA     *Account
	VaultB     *Account
	Slot       uint64
	ObservedAt time.Time
}

// variantFn decodes one layout variant into the two sides of a pool.
type variantFn func(d *Decoder, t domain.Target, l domain.Layout, set AccountSet) (sides, error)

// sides is the orientation-free result of a variant decode. A side is "A"
// or "B" as the venue stores it; finish maps them onto base/quote.
type sides struct {
	mintA, mintB string // "" when the layout does not carry mints
	rawA, rawB   uint64
	decA, decB   int // -1 when the layout does not carry decimals
	fee          decimal.Decimal
	price        *decimal.Decimal // B per A; nil derives it from reserves
}

var variants = map[domain.LayoutKey]variantFn{
	{Protocol: domain.ProtocolRaydiumAMM, Version: "v4"}:      decodeRaydiumV4,
	{Protocol: domain.ProtocolOrcaWhirlpool, Version: "v1"}:   decodeWhirlpoolV1,
	{Protocol: domain.ProtocolSPLToken, Version: "v1"}:        decodeVaultPair,
	{Protocol: domain.ProtocolConstantProduct, Version: "v1"}: decodeConstantProductV1,
}

// Decoder turns raw account bytes into PoolState. It is a pure function of
// its inputs; offsets come only from the layout table.
type Decoder struct {
	assets        *asset.Registry
	maxReserveRaw uint64
}

// NewDecoder creates a decoder. Balances above maxReserveRaw fail decoding.
func NewDecoder(assets *asset.Registry, maxReserveRaw uint64) *Decoder {
	if maxReserveRaw == 0 {
		maxReserveRaw = 1<<63 - 1
	}
	return &Decoder{assets: assets, maxReserveRaw: maxReserveRaw}
}

// Decode decodes an account-sourced target.
func (d *Decoder) Decode(t domain.Target, set AccountSet) (domain.PoolState, error) {
	key := t.LayoutKey()
	layout, ok := domain.LookupLayout(key)
	fn, hasFn := variants[key]
	if !ok || !hasFn {
		return domain.PoolState{}, &domain.DecodeError{
			Venue: t.Venue, Layout: key, Reason: "no layout registered", Err: domain.ErrUnsupportedLayout,
		}
	}
	if err := checkSize(t, layout, set.Pool.Data); err != nil {
		return domain.PoolState{}, err
	}

	s, err := fn(d, t, layout, set)
	if err != nil {
		return domain.PoolState{}, err
	}
	return d.finish(t, key, s, set.Slot, set.ObservedAt)
}

// VaultRefs returns the vault accounts a vault-backed pool references.
func (d *Decoder) VaultRefs(t domain.Target, poolData []byte) (string, string, error) {
	key := t.LayoutKey()
	layout, ok := domain.LookupLayout(key)
	if !ok {
		return "", "", &domain.DecodeError{
			Venue: t.Venue, Layout: key, Reason: "no layout registered", Err: domain.ErrUnsupportedLayout,
		}
	}
	if layout.Reserves != domain.ReservesInVaults {
		return "", "", domain.NewDecodeError(t.Venue, key, "layout does not reference vaults")
	}
	if err := checkSize(t, layout, poolData); err != nil {
		return "", "", err
	}
	r := reader{data: poolData, layout: layout}
	return r.pubkey(domain.FieldVaultA), r.pubkey(domain.FieldVaultB), nil
}

// FromQuote converts a quote endpoint response into a PoolState.
func (d *Decoder) FromQuote(t domain.Target, q Quote, observedAt time.Time) (domain.PoolState, error) {
	key := domain.LayoutKey{Protocol: domain.ProtocolQuote, Version: "v1"}
	fail := func(reason string) (domain.PoolState, error) {
		return domain.PoolState{}, domain.NewDecodeError(t.Venue, key, reason)
	}

	switch {
	case !strings.EqualFold(q.Pair, t.Pair):
		return fail(fmt.Sprintf("pair mismatch: quote %q, target %q", q.Pair, t.Pair))
	case !q.Price.IsPositive():
		return fail("non-positive price")
	case q.BaseDepth.IsNegative() || q.QuoteDepth.IsNegative():
		return fail("negative depth")
	case q.FeeBps.IsNegative():
		return fail("negative fee")
	}

	base, quote, err := d.resolve(t, key, "", "", -1, -1)
	if err != nil {
		return domain.PoolState{}, err
	}
	rawA, err := d.toRaw(t, key, base, q.BaseDepth)
	if err != nil {
		return domain.PoolState{}, err
	}
	rawB, err := d.toRaw(t, key, quote, q.QuoteDepth)
	if err != nil {
		return domain.PoolState{}, err
	}

	ts := q.Timestamp
	if ts.IsZero() {
		ts = observedAt
	}

	return domain.PoolState{
		TargetID:   t.ID,
		Venue:      t.Venue,
		Pair:       t.Pair,
		Protocol:   key.Protocol,
		Version:    key.Version,
		ReserveA:   asset.NewAmountFromUint64(base, rawA),
		ReserveB:   asset.NewAmountFromUint64(quote, rawB),
		FeeBps:     q.FeeBps,
		Price:      q.Price,
		Slot:       q.Slot,
		ObservedAt: ts,
	}, nil
}

func (d *Decoder) toRaw(t domain.Target, key domain.LayoutKey, a *asset.Asset, depth decimal.Decimal) (uint64, error) {
	amt, err := asset.ParseDecimal(a, depth.Truncate(int32(a.Decimals())))
	if err != nil {
		return 0, domain.NewDecodeError(t.Venue, key, err.Error())
	}
	raw, err := amt.Uint64()
	if err != nil || raw > d.maxReserveRaw {
		return 0, domain.NewDecodeError(t.Venue, key, "balance exceeds sanity bound")
	}
	return raw, nil
}

func decodeRaydiumV4(d *Decoder, t domain.Target, l domain.Layout, set AccountSet) (sides, error) {
	r := reader{data: set.Pool.Data, layout: l}
	if r.u64(domain.FieldStatus) == 0 {
		return sides{}, domain.NewDecodeError(t.Venue, l.Key, "uninitialized pool")
	}

	num, den := r.u64(domain.FieldFeeNumerator), r.u64(domain.FieldFeeDenominator)
	if den == 0 || num >= den {
		return sides{}, domain.NewDecodeError(t.Venue, l.Key, fmt.Sprintf("invalid fee %d/%d", num, den))
	}
	decA, decB := r.u64(domain.FieldBaseDecimals), r.u64(domain.FieldQuoteDecimals)
	if decA > 18 || decB > 18 {
		return sides{}, domain.NewDecodeError(t.Venue, l.Key, "implausible decimals")
	}

	mintA, mintB := r.pubkey(domain.FieldMintA), r.pubkey(domain.FieldMintB)
	vaultA, err := d.tokenBalance(t, l.Key, set.VaultA, r.pubkey(domain.FieldVaultA), mintA)
	if err != nil {
		return sides{}, err
	}
	vaultB, err := d.tokenBalance(t, l.Key, set.VaultB, r.pubkey(domain.FieldVaultB), mintB)
	if err != nil {
		return sides{}, err
	}

	pnlA, pnlB := r.u64(domain.FieldBaseNeedPnl), r.u64(domain.FieldQuoteNeedPnl)
	if pnlA > vaultA || pnlB > vaultB {
		return sides{}, domain.NewDecodeError(t.Venue, l.Key, "pending pnl exceeds vault balance")
	}

	return sides{
		mintA: mintA, mintB: mintB,
		rawA: vaultA - pnlA, rawB: vaultB - pnlB,
		decA: int(decA), decB: int(decB),
		fee: decimal.NewFromInt(int64(num)).Mul(bps).Div(decimal.NewFromInt(int64(den))),
	}, nil
}

func decodeWhirlpoolV1(d *Decoder, t domain.Target, l domain.Layout, set AccountSet) (sides, error) {
	r := reader{data: set.Pool.Data, layout: l}

	sqrtPrice := r.u128(domain.FieldSqrtPrice)
	if sqrtPrice.Sign() == 0 {
		return sides{}, domain.NewDecodeError(t.Venue, l.Key, "zero sqrt price")
	}

	mintA, mintB := r.pubkey(domain.FieldMintA), r.pubkey(domain.FieldMintB)
	rawA, err := d.tokenBalance(t, l.Key, set.VaultA, r.pubkey(domain.FieldVaultA), mintA)
	if err != nil {
		return sides{}, err
	}
	rawB, err := d.tokenBalance(t, l.Key, set.VaultB, r.pubkey(domain.FieldVaultB), mintB)
	if err != nil {
		return sides{}, err
	}

	base, quote, err := d.resolve(t, l.Key, "", "", -1, -1)
	if err != nil {
		return sides{}, err
	}
	decA, decB := int(base.Decimals()), int(quote.Decimals())
	if mintA == quote.Mint() && mintB == base.Mint() {
		decA, decB = decB, decA
	}
	price := sqrtPriceToPrice(sqrtPrice, decA, decB)

	return sides{
		mintA: mintA, mintB: mintB,
		rawA: rawA, rawB: rawB,
		decA: decA, decB: decB,
		// fee_rate is in hundredths of a basis point.
		fee:   decimal.NewFromInt(int64(r.u16(domain.FieldFeeRate))).Div(decimal.NewFromInt(100)),
		price: &price,
	}, nil
}

func decodeConstantProductV1(_ *Decoder, t domain.Target, l domain.Layout, set AccountSet) (sides, error) {
	r := reader{data: set.Pool.Data, layout: l}
	if v := r.u8(domain.FieldLayoutVersion); v != 1 {
		return sides{}, domain.NewDecodeError(t.Venue, l.Key, fmt.Sprintf("layout version byte %d", v))
	}
	fee := r.u16(domain.FieldFeeBps)
	if fee >= 10000 {
		return sides{}, domain.NewDecodeError(t.Venue, l.Key, "fee exceeds 100%")
	}

	return sides{
		mintA: r.pubkey(domain.FieldMintA), mintB: r.pubkey(domain.FieldMintB),
		rawA: r.u64(domain.FieldReserveA), rawB: r.u64(domain.FieldReserveB),
		decA: int(r.u8(domain.FieldBaseDecimals)), decB: int(r.u8(domain.FieldQuoteDecimals)),
		fee: decimal.NewFromInt(int64(fee)),
	}, nil
}

// decodeVaultPair treats the target account and VaultB as the two token
// accounts of a pool with no state account of its own.
func decodeVaultPair(d *Decoder, t domain.Target, l domain.Layout, set AccountSet) (sides, error) {
	a := set.Pool
	r := reader{data: a.Data, layout: l}
	mintA := r.pubkey(domain.FieldMintA)
	rawA, err := d.tokenBalance(t, l.Key, &a, a.Address, mintA)
	if err != nil {
		return sides{}, err
	}

	if set.VaultB == nil {
		return sides{}, domain.NewDecodeError(t.Venue, l.Key, "missing second token account")
	}
	if err := checkSize(t, l, set.VaultB.Data); err != nil {
		return sides{}, err
	}
	mintB := reader{data: set.VaultB.Data, layout: l}.pubkey(domain.FieldMintA)
	rawB, err := d.tokenBalance(t, l.Key, set.VaultB, set.VaultB.Address, mintB)
	if err != nil {
		return sides{}, err
	}

	return sides{mintA: mintA, mintB: mintB, rawA: rawA, rawB: rawB, decA: -1, decB: -1, fee: decimal.Zero}, nil
}

// tokenBalance decodes an SPL token account and checks it is the vault the
// pool references, holding the expected mint.
func (d *Decoder) tokenBalance(t domain.Target, key domain.LayoutKey, acc *Account, wantAddr, wantMint string) (uint64, error) {
	layout, _ := domain.LookupLayout(domain.LayoutKey{Protocol: domain.ProtocolSPLToken, Version: "v1"})
	if acc == nil {
		return 0, domain.NewDecodeError(t.Venue, key, "vault account missing from input")
	}
	if acc.Address != "" && wantAddr != "" && acc.Address != wantAddr {
		return 0, domain.NewDecodeError(t.Venue, key, fmt.Sprintf("vault %s is not referenced by pool (want %s)", acc.Address, wantAddr))
	}
	if len(acc.Data) < layout.Size {
		return 0, domain.NewDecodeError(t.Venue, key,
			fmt.Sprintf("truncated token account: %d bytes, need %d", len(acc.Data), layout.Size))
	}

	r := reader{data: acc.Data, layout: layout}
	if r.u8(domain.FieldState) != tokenAccountInitialized {
		return 0, domain.NewDecodeError(t.Venue, key, "token account not initialized")
	}
	if mint := r.pubkey(domain.FieldMintA); wantMint != "" && mint != wantMint {
		return 0, domain.NewDecodeError(t.Venue, key, fmt.Sprintf("vault mint %s, want %s", mint, wantMint))
	}
	return r.u64(domain.FieldAmount), nil
}

// finish orients the sides onto the target pair and builds the state.
func (d *Decoder) finish(t domain.Target, key domain.LayoutKey, s sides, slot uint64, observedAt time.Time) (domain.PoolState, error) {
	if s.rawA > d.maxReserveRaw || s.rawB > d.maxReserveRaw {
		return domain.PoolState{}, domain.NewDecodeError(t.Venue, key, "balance exceeds sanity bound")
	}

	base, quote, err := d.resolve(t, key, "", "", -1, -1)
	if err != nil {
		return domain.PoolState{}, err
	}
	inverted := s.mintA != "" && s.mintA == quote.Mint() && s.mintB == base.Mint()
	if inverted {
		s.mintA, s.mintB = s.mintB, s.mintA
		s.rawA, s.rawB = s.rawB, s.rawA
		s.decA, s.decB = s.decB, s.decA
		if s.price != nil {
			if s.price.IsZero() {
				return domain.PoolState{}, domain.NewDecodeError(t.Venue, key, "zero price")
			}
			inv := decimal.NewFromInt(1).DivRound(*s.price, pricePrecision)
			s.price = &inv
		}
	}

	base, quote, err = d.resolve(t, key, s.mintA, s.mintB, s.decA, s.decB)
	if err != nil {
		return domain.PoolState{}, err
	}
	reserveA := asset.NewAmountFromUint64(base, s.rawA)
	reserveB := asset.NewAmountFromUint64(quote, s.rawB)

	var price decimal.Decimal
	if s.price != nil {
		price = *s.price
	} else {
		price, err = asset.MidPrice(reserveA, reserveB)
		if err != nil {
			return domain.PoolState{}, domain.NewDecodeError(t.Venue, key, err.Error())
		}
	}

	return domain.PoolState{
		TargetID:   t.ID,
		Venue:      t.Venue,
		Pair:       t.Pair,
		Protocol:   key.Protocol,
		Version:    key.Version,
		ReserveA:   reserveA,
		ReserveB:   reserveB,
		FeeBps:     s.fee,
		Price:      price,
		Slot:       slot,
		ObservedAt: observedAt,
	}, nil
}

// resolve maps the pair symbols onto assets. Registered assets must agree
// with any mint or decimals the account carries; unknown symbols become
// ad-hoc assets.
func (d *Decoder) resolve(t domain.Target, key domain.LayoutKey, mintA, mintB string, decA, decB int) (*asset.Asset, *asset.Asset, error) {
	symbols := strings.Split(t.Pair, "/")
	if len(symbols) != 2 || symbols[0] == "" || symbols[1] == "" {
		return nil, nil, domain.NewDecodeError(t.Venue, key, fmt.Sprintf("malformed pair %q", t.Pair))
	}

	base, err := d.resolveSide(t, key, symbols[0], mintA, decA, t.BaseDecimals)
	if err != nil {
		return nil, nil, err
	}
	quote, err := d.resolveSide(t, key, symbols[1], mintB, decB, t.QuoteDecimals)
	if err != nil {
		return nil, nil, err
	}
	return base, quote, nil
}

func (d *Decoder) resolveSide(t domain.Target, key domain.LayoutKey, symbol, mint string, dec int, fallback uint8) (*asset.Asset, error) {
	if a, ok := d.assets.GetBySymbol(symbol); ok {
		if mint != "" && mint != a.Mint() {
			return nil, domain.NewDecodeError(t.Venue, key, fmt.Sprintf("mint mismatch for %s: %s", symbol, mint))
		}
		if dec >= 0 && uint8(dec) != a.Decimals() {
			return nil, domain.NewDecodeError(t.Venue, key, fmt.Sprintf("decimals mismatch for %s: %d", symbol, dec))
		}
		return a, nil
	}

	decimals := fallback
	if dec >= 0 {
		decimals = uint8(dec)
	}
	if decimals > 18 {
		return nil, domain.NewDecodeError(t.Venue, key, "implausible decimals")
	}
	id := mint
	if id == "" {
		id = "unregistered:" + strings.ToUpper(symbol)
	}
	return asset.NewAsset(asset.NewAssetID(id), symbol, decimals), nil
}

// sqrtPriceToPrice converts a Q64.64 sqrt price of B per A (raw units)
// into a whole-token price.
func sqrtPriceToPrice(sqrtPrice *big.Int, decA, decB int) decimal.Decimal {
	num := new(big.Int).Mul(sqrtPrice, sqrtPrice)
	num.Mul(num, precMul)
	den := new(big.Int).Set(q64Sq)

	shift := decA - decB
	if shift > 0 {
		num.Mul(num, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil))
	} else if shift < 0 {
		den.Mul(den, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-shift)), nil))
	}
	return decimal.NewFromBigInt(num.Quo(num, den), -pricePrecision)
}

func checkSize(t domain.Target, l domain.Layout, data []byte) error {
	if len(data) < l.Size {
		return domain.NewDecodeError(t.Venue, l.Key, fmt.Sprintf("truncated buffer: %d bytes, need %d", len(data), l.Size))
	}
	return nil
}

// reader reads layout fields; callers check the buffer size first.
type reader struct {
	data   []byte
	layout domain.Layout
}

func (r reader) field(name string) domain.Field {
	f, ok := r.layout.Field(name)
	if !ok {
		panic(fmt.Sprintf("layout %s has no field %q", r.layout.Key, name))
	}
	return f
}

func (r reader) u8(name string) uint8 {
	return r.data[r.field(name).Offset]
}

func (r reader) u16(name string) uint16 {
	f := r.field(name)
	return binary.LittleEndian.Uint16(r.data[f.Offset:f.End()])
}

func (r reader) u64(name string) uint64 {
	f := r.field(name)
	return binary.LittleEndian.Uint64(r.data[f.Offset:f.End()])
}

func (r reader) u128(name string) *big.Int {
	f := r.field(name)
	lo := binary.LittleEndian.Uint64(r.data[f.Offset : f.Offset+8])
	hi := binary.LittleEndian.Uint64(r.data[f.Offset+8 : f.End()])
	v := new(big.Int).SetUint64(hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(lo))
}

func (r reader) pubkey(name string) string {
	f := r.field(name)
	return base58.Encode(r.data[f.Offset:f.End()])
}

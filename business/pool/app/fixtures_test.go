package app

import (
	"bytes"
	"context"
	"encoding/binary"
	"math/big"

	"github.com/mr-tron/base58"

	"github.com/fd1az/dex-arbitrage/internal/asset"
)

type mockLogger struct{}

func (mockLogger) Debug(context.Context, string, ...any)       {}
func (mockLogger) Info(context.Context, string, ...any)        {}
func (mockLogger) Warn(context.Context, string, ...any)        {}
func (mockLogger) Error(context.Context, string, ...any)       {}
func (mockLogger) Debugc(context.Context, int, string, ...any) {}
func (mockLogger) Infoc(context.Context, int, string, ...any)  {}
func (mockLogger) Warnc(context.Context, int, string, ...any)  {}
func (mockLogger) Errorc(context.Context, int, string, ...any) {}

func mustPubkey(s string) []byte {
	b, err := base58.Decode(s)
	if err != nil || len(b) != 32 {
		panic("bad pubkey " + s)
	}
	return b
}

// addr returns a deterministic fake account address.
func addr(seed byte) string {
	return base58.Encode(bytes.Repeat([]byte{seed}, 32))
}

var (
	solMint  = mustPubkey(asset.NativeMint)
	usdcMint = mustPubkey(asset.MintUSDC)
)

func tokenAccount(mint []byte, amount uint64) []byte {
	b := make([]byte, 165)
	copy(b[0:], mint)
	copy(b[32:], bytes.Repeat([]byte{9}, 32))
	binary.LittleEndian.PutUint64(b[64:], amount)
	b[108] = 1
	return b
}

func constantProduct(decA, decB uint8, feeBps uint16, reserveA, reserveB uint64, mintA, mintB []byte) []byte {
	b := make([]byte, 120)
	b[0] = 1
	b[1], b[2] = decA, decB
	binary.LittleEndian.PutUint16(b[4:], feeBps)
	binary.LittleEndian.PutUint64(b[8:], reserveA)
	binary.LittleEndian.PutUint64(b[16:], reserveB)
	copy(b[24:], mintA)
	copy(b[56:], mintB)
	return b
}

type raydiumFields struct {
	feeNum, feeDen uint64
	pnlA, pnlB     uint64
	vaultA, vaultB string
	mintA, mintB   []byte
	decA, decB     uint64
}

func raydiumPool(f raydiumFields) []byte {
	b := make([]byte, 752)
	binary.LittleEndian.PutUint64(b[0:], 6)
	binary.LittleEndian.PutUint64(b[32:], f.decA)
	binary.LittleEndian.PutUint64(b[40:], f.decB)
	binary.LittleEndian.PutUint64(b[176:], f.feeNum)
	binary.LittleEndian.PutUint64(b[184:], f.feeDen)
	binary.LittleEndian.PutUint64(b[192:], f.pnlA)
	binary.LittleEndian.PutUint64(b[200:], f.pnlB)
	copy(b[336:], mustPubkey(f.vaultA))
	copy(b[368:], mustPubkey(f.vaultB))
	copy(b[400:], f.mintA)
	copy(b[432:], f.mintB)
	return b
}

func putU128(b []byte, v *big.Int) {
	lo := new(big.Int).And(v, new(big.Int).SetUint64(^uint64(0)))
	hi := new(big.Int).Rsh(v, 64)
	binary.LittleEndian.PutUint64(b[0:], lo.Uint64())
	binary.LittleEndian.PutUint64(b[8:], hi.Uint64())
}

func whirlpool(sqrtPrice *big.Int, feeRate uint16, mintA []byte, vaultA string, mintB []byte, vaultB string) []byte {
	b := make([]byte, 653)
	binary.LittleEndian.PutUint16(b[45:], feeRate)
	putU128(b[49:], big.NewInt(1_000_000_000))
	putU128(b[65:], sqrtPrice)
	copy(b[101:], mintA)
	copy(b[133:], mustPubkey(vaultA))
	copy(b[181:], mintB)
	copy(b[213:], mustPubkey(vaultB))
	return b
}

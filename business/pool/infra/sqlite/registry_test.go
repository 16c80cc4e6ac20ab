package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fd1az/dex-arbitrage/business/pool/domain"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

func TestRegistry_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	reg, err := Open(ctx, filepath.Join(t.TempDir(), "targets.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reg.Close()

	targets := []domain.Target{
		{
			ID: "raydium-sol-usdc", Venue: "raydium", Pair: "SOL/USDC",
			Source: domain.SourceAccount, Protocol: domain.ProtocolRaydiumAMM, Version: "v4",
			Account: "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2",
		},
		{
			ID: "meteora-sol-usdc", Venue: "meteora", Pair: "SOL/USDC",
			Source: domain.SourceQuote, BaseDecimals: 9, QuoteDecimals: 6,
		},
	}
	for _, tg := range targets {
		if err := reg.Upsert(ctx, tg); err != nil {
			t.Fatalf("Upsert(%s): %v", tg.ID, err)
		}
	}

	// Upsert replaces in place.
	targets[1].Venue = "meteora-dlmm"
	if err := reg.Upsert(ctx, targets[1]); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := reg.Targets(ctx)
	if err != nil {
		t.Fatalf("Targets: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "meteora-sol-usdc" || got[1].ID != "raydium-sol-usdc" {
		t.Errorf("order = %s, %s; want ordered by id", got[0].ID, got[1].ID)
	}
	if got[0].Venue != "meteora-dlmm" || got[0].QuoteDecimals != 6 || got[0].Source != domain.SourceQuote {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Protocol != domain.ProtocolRaydiumAMM || got[1].Version != "v4" {
		t.Errorf("got[1] = %+v", got[1])
	}

	if err := reg.Disable(ctx, "meteora-sol-usdc"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	got, err = reg.Targets(ctx)
	if err != nil {
		t.Fatalf("Targets: %v", err)
	}
	if len(got) != 1 || got[0].ID != "raydium-sol-usdc" {
		t.Errorf("after disable = %+v", got)
	}

	if err := reg.Disable(ctx, "missing"); !apperror.HasCode(err, apperror.CodeNotFound) {
		t.Errorf("Disable(missing) = %v, want NOT_FOUND", err)
	}
}

package domain

import (
	"errors"
	"testing"
	"time"
)

func TestLayouts_FieldsFitAccountSize(t *testing.T) {
	for _, l := range Layouts() {
		for _, name := range l.FieldNames() {
			f, _ := l.Field(name)
			if f.Kind.Size() == 0 {
				t.Errorf("%s.%s: unknown kind %d", l.Key, name, f.Kind)
			}
			if f.Offset < 0 || f.End() > l.Size {
				t.Errorf("%s.%s: [%d,%d) outside account size %d", l.Key, name, f.Offset, f.End(), l.Size)
			}
		}
	}
}

func TestLookupLayout(t *testing.T) {
	tests := []struct {
		name string
		key  LayoutKey
		want bool
	}{
		{name: "raydium_v4", key: LayoutKey{ProtocolRaydiumAMM, "v4"}, want: true},
		{name: "raydium_v5", key: LayoutKey{ProtocolRaydiumAMM, "v5"}, want: false},
		{name: "whirlpool_v1", key: LayoutKey{ProtocolOrcaWhirlpool, "v1"}, want: true},
		{name: "unknown_protocol", key: LayoutKey{"phoenix", "v1"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, ok := LookupLayout(tt.key)
			if ok != tt.want {
				t.Fatalf("LookupLayout(%s) ok = %v, want %v", tt.key, ok, tt.want)
			}
			if ok && l.Key != tt.key {
				t.Errorf("Key = %s, want %s", l.Key, tt.key)
			}
		})
	}
}

func TestTarget_Validate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{
			name:   "account_target",
			target: Target{ID: "a", Venue: "raydium", Pair: "SOL/USDC", Source: SourceAccount, Protocol: ProtocolRaydiumAMM, Version: "v4", Account: "x"},
		},
		{
			name:   "quote_target",
			target: Target{ID: "q", Venue: "meteora", Pair: "SOL/USDC", Source: SourceQuote},
		},
		{
			name:    "missing_account",
			target:  Target{ID: "a", Venue: "raydium", Pair: "SOL/USDC", Source: SourceAccount, Protocol: ProtocolRaydiumAMM, Version: "v4"},
			wantErr: true,
		},
		{
			name:    "unsupported_version",
			target:  Target{ID: "a", Venue: "raydium", Pair: "SOL/USDC", Source: SourceAccount, Protocol: ProtocolRaydiumAMM, Version: "v9", Account: "x"},
			wantErr: true,
		},
		{
			name:    "token_pair_without_second_account",
			target:  Target{ID: "a", Venue: "vaults", Pair: "SOL/USDC", Source: SourceAccount, Protocol: ProtocolSPLToken, Version: "v1", Account: "x"},
			wantErr: true,
		},
		{
			name:    "unknown_source",
			target:  Target{ID: "a", Venue: "v", Pair: "SOL/USDC", Source: "carrier-pigeon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSnapshot_OrderAndFailures(t *testing.T) {
	now := time.Now()
	results := []Result{
		{Target: Target{ID: "c", Pair: "SOL/USDC"}, State: &PoolState{TargetID: "c", Pair: "SOL/USDC"}},
		{Target: Target{ID: "a", Pair: "SOL/USDC"}, Err: errors.New("boom")},
		{Target: Target{ID: "b", Pair: "SOL/USDC"}, State: &PoolState{TargetID: "b", Pair: "SOL/USDC"}},
	}
	snap := NewSnapshot(7, now, now, false, results)

	if snap.Len() != 3 {
		t.Fatalf("Len = %d, want 3", snap.Len())
	}
	states := snap.States()
	if len(states) != 2 || states[0].TargetID != "b" || states[1].TargetID != "c" {
		t.Errorf("States = %+v, want b then c", states)
	}
	if f := snap.Failures(); len(f) != 1 || f[0].Target.ID != "a" {
		t.Errorf("Failures = %+v, want [a]", f)
	}
	if got := len(snap.ByPair()["SOL/USDC"]); got != 2 {
		t.Errorf("ByPair[SOL/USDC] = %d states, want 2", got)
	}

	// The caller's slice is not aliased by the snapshot.
	results[0].State = nil
	if r, _ := snap.Get("c"); !r.OK() {
		t.Error("snapshot changed after caller mutated its input")
	}
}

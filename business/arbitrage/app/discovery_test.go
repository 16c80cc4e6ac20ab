package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dex-arbitrage/business/arbitrage/domain"
)

func newTestDiscovery(maxQueue int, minConfidence string) *Discovery {
	return NewDiscovery(DiscoveryConfig{
		MaxQueue:       maxQueue,
		MinConfidence:  d(minConfidence),
		DegradedWeight: d("0.5"),
	}, mockLogger{})
}

func seqs(queue []domain.UnifiedOpportunity) []uint64 {
	out := make([]uint64, len(queue))
	for i, u := range queue {
		out[i] = u.Seq
	}
	return out
}

func equalSeqs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDiscovery_Dedup(t *testing.T) {
	s1 := domain.NewSeq(1, 1)
	s2 := domain.NewSeq(1, 2)
	s3 := domain.NewSeq(1, 3)

	// s1 and s2 share pair and route; s2 has the larger absolute profit.
	in := []domain.ScoredOpportunity{
		scored(s1, "a", "b", "120", "1", "80"),
		scored(s2, "a", "b", "100", "2", "80"),
		scored(s3, "b", "a", "90", "1", "80"),
	}

	res := newTestDiscovery(0, "0").Run(context.Background(), in)

	if err := res.Verify(); err != nil {
		t.Fatalf("Verify() = %v", err)
	}
	if got, want := seqs(res.Queue), []uint64{s2, s3}; !equalSeqs(got, want) {
		t.Errorf("queue = %v, want %v", got, want)
	}
	if len(res.Drops) != 1 {
		t.Fatalf("Drops = %d, want 1", len(res.Drops))
	}
	drop := res.Drops[0]
	if drop.Seq != s1 || drop.Reason != domain.ReasonDuplicateOf || drop.DuplicateOf != s2 {
		t.Errorf("drop = %+v, want seq %d duplicate-of %d", drop, s1, s2)
	}
}

func TestDiscovery_DedupTieKeepsEarliest(t *testing.T) {
	s1 := domain.NewSeq(1, 1)
	s2 := domain.NewSeq(1, 2)

	res := newTestDiscovery(0, "0").Run(context.Background(), []domain.ScoredOpportunity{
		scored(s2, "a", "b", "100", "1", "80"),
		scored(s1, "a", "b", "100", "1", "80"),
	})

	if got := seqs(res.Queue); !equalSeqs(got, []uint64{s1}) {
		t.Errorf("queue = %v, want [%d]", got, s1)
	}
	if res.Drops[0].DuplicateOf != s1 {
		t.Errorf("DuplicateOf = %d, want %d", res.Drops[0].DuplicateOf, s1)
	}
}

func TestDiscovery_Ordering(t *testing.T) {
	tests := []struct {
		name string
		in   []domain.ScoredOpportunity
		want []uint64
	}{
		{
			name: "rank_descending",
			in: []domain.ScoredOpportunity{
				scored(domain.NewSeq(1, 1), "a", "b", "50", "1", "90"),  // 45
				scored(domain.NewSeq(1, 2), "a", "c", "100", "1", "90"), // 90
				scored(domain.NewSeq(1, 3), "b", "c", "80", "1", "90"),  // 72
			},
			want: []uint64{domain.NewSeq(1, 2), domain.NewSeq(1, 3), domain.NewSeq(1, 1)},
		},
		{
			name: "equal_rank_higher_confidence_wins",
			in: []domain.ScoredOpportunity{
				scored(domain.NewSeq(1, 1), "a", "b", "100", "1", "50"), // 50
				scored(domain.NewSeq(1, 2), "a", "c", "50", "1", "100"), // 50
			},
			want: []uint64{domain.NewSeq(1, 2), domain.NewSeq(1, 1)},
		},
		{
			name: "full_tie_lower_seq_wins",
			in: []domain.ScoredOpportunity{
				scored(domain.NewSeq(1, 7), "a", "c", "100", "1", "50"),
				scored(domain.NewSeq(1, 3), "a", "b", "100", "1", "50"),
			},
			want: []uint64{domain.NewSeq(1, 3), domain.NewSeq(1, 7)},
		},
		{
			name: "degraded_down_weighted",
			in: func() []domain.ScoredOpportunity {
				deg := scored(domain.NewSeq(1, 1), "a", "b", "100", "1", "80") // 80 * 0.5 = 40
				deg.Degraded = true
				return []domain.ScoredOpportunity{
					deg,
					scored(domain.NewSeq(1, 2), "a", "c", "60", "1", "80"), // 48
				}
			}(),
			want: []uint64{domain.NewSeq(1, 2), domain.NewSeq(1, 1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestDiscovery(0, "0").Run(context.Background(), tt.in)

			if err := res.Verify(); err != nil {
				t.Fatalf("Verify() = %v", err)
			}
			if got := seqs(res.Queue); !equalSeqs(got, tt.want) {
				t.Errorf("queue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiscovery_DropReasons(t *testing.T) {
	unscored := scored(domain.NewSeq(1, 4), "a", "d", "100", "1", "90")
	unscored.ScorerVersion = ""

	tests := []struct {
		name       string
		maxQueue   int
		minConf    string
		in         []domain.ScoredOpportunity
		wantQueued int
		want       map[domain.Reason]int
	}{
		{
			name:     "queue_cap",
			maxQueue: 1,
			minConf:  "0",
			in: []domain.ScoredOpportunity{
				scored(domain.NewSeq(1, 1), "a", "b", "100", "1", "90"),
				scored(domain.NewSeq(1, 2), "a", "c", "90", "1", "90"),
				scored(domain.NewSeq(1, 3), "b", "c", "80", "1", "90"),
			},
			wantQueued: 1,
			want:       map[domain.Reason]int{domain.ReasonBelowRankCutoff: 2},
		},
		{
			name:     "confidence_floor",
			maxQueue: 0,
			minConf:  "50",
			in: []domain.ScoredOpportunity{
				scored(domain.NewSeq(1, 1), "a", "b", "100", "1", "90"),
				scored(domain.NewSeq(1, 2), "a", "c", "300", "1", "40"),
			},
			wantQueued: 1,
			want:       map[domain.Reason]int{domain.ReasonBelowRankCutoff: 1},
		},
		{
			name:     "malformed_records",
			maxQueue: 0,
			minConf:  "0",
			in: []domain.ScoredOpportunity{
				scored(domain.NewSeq(1, 1), "a", "b", "100", "1", "90"),
				scored(domain.NewSeq(1, 1), "a", "c", "100", "1", "90"), // repeated seq
				scored(domain.NewSeq(1, 2), "a", "e", "100", "1", "150"),
				scored(domain.NewSeq(1, 3), "a", "f", "100", "0", "90"),
				scored(0, "a", "g", "100", "1", "90"),
				unscored,
			},
			wantQueued: 1,
			want:       map[domain.Reason]int{domain.ReasonMalformed: 5},
		},
		{
			name:     "mixed",
			maxQueue: 2,
			minConf:  "10",
			in: []domain.ScoredOpportunity{
				scored(domain.NewSeq(2, 1), "a", "b", "100", "1", "90"),
				scored(domain.NewSeq(2, 2), "a", "b", "90", "1", "90"),
				scored(domain.NewSeq(2, 3), "a", "c", "80", "1", "90"),
				scored(domain.NewSeq(2, 4), "b", "c", "70", "1", "90"),
				scored(domain.NewSeq(2, 5), "c", "d", "70", "1", "5"),
				scored(domain.NewSeq(2, 6), "c", "e", "70", "1", "101"),
			},
			wantQueued: 2,
			want: map[domain.Reason]int{
				domain.ReasonDuplicateOf:     1,
				domain.ReasonBelowRankCutoff: 2,
				domain.ReasonMalformed:       1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestDiscovery(tt.maxQueue, tt.minConf).Run(context.Background(), tt.in)

			if err := res.Verify(); err != nil {
				t.Fatalf("Verify() = %v", err)
			}
			if len(res.Queue) != tt.wantQueued {
				t.Errorf("queued = %d, want %d", len(res.Queue), tt.wantQueued)
			}
			counts := res.Counts()
			for reason, want := range tt.want {
				if counts[reason] != want {
					t.Errorf("drops[%s] = %d, want %d", reason, counts[reason], want)
				}
			}
			dropped := 0
			for _, n := range counts {
				dropped += n
			}
			if len(tt.in)-len(res.Queue) != dropped {
				t.Errorf("in-out = %d, drops = %d", len(tt.in)-len(res.Queue), dropped)
			}
		})
	}
}

func TestDiscovery_Idempotent(t *testing.T) {
	var in []domain.ScoredOpportunity
	venues := []string{"a", "b", "c", "d", "e"}
	ordinal := 0
	for _, buy := range venues {
		for _, sell := range venues {
			if buy == sell {
				continue
			}
			ordinal++
			net := fmt.Sprintf("%d", 40+(ordinal*37)%90)
			conf := fmt.Sprintf("%d", 30+(ordinal*13)%70)
			in = append(in, scored(domain.NewSeq(3, ordinal), buy, sell, net, "1", conf))
			// same route again with a different size
			ordinal++
			in = append(in, scored(domain.NewSeq(3, ordinal), buy, sell, net, "2", conf))
		}
	}

	disc := newTestDiscovery(10, "40")
	first := disc.Run(context.Background(), in)
	second := disc.Run(context.Background(), in)

	if err := first.Verify(); err != nil {
		t.Fatalf("Verify() = %v", err)
	}
	if !equalSeqs(seqs(first.Queue), seqs(second.Queue)) {
		t.Errorf("queues differ: %v vs %v", seqs(first.Queue), seqs(second.Queue))
	}
	if len(first.Drops) != len(second.Drops) {
		t.Fatalf("drops differ: %d vs %d", len(first.Drops), len(second.Drops))
	}
	for i := range first.Drops {
		if first.Drops[i] != second.Drops[i] {
			t.Errorf("drop[%d] differs: %+v vs %+v", i, first.Drops[i], second.Drops[i])
		}
	}
	for i := range first.Queue {
		if first.Queue[i].DedupKey != second.Queue[i].DedupKey || !first.Queue[i].Rank.Equal(second.Queue[i].Rank) {
			t.Errorf("queue[%d] differs", i)
		}
	}
}

func TestDiscovery_Rank(t *testing.T) {
	disc := newTestDiscovery(0, "0")
	u := domain.UnifiedOpportunity{NetProfitBps: d("115"), Confidence: d("80")}

	if got := disc.Rank(u); !got.Equal(d("92")) {
		t.Errorf("Rank() = %s, want 92", got)
	}
	u.Degraded = true
	if got := disc.Rank(u); !got.Equal(d("46")) {
		t.Errorf("Rank(degraded) = %s, want 46", got)
	}
}

func BenchmarkDiscovery_Run(b *testing.B) {
	in := make([]domain.ScoredOpportunity, 0, 512)
	for i := 1; i <= 512; i++ {
		buy := fmt.Sprintf("v%d", i%32)
		sell := fmt.Sprintf("v%d", (i*7+1)%32)
		in = append(in, scored(domain.NewSeq(1, i), buy, sell,
			decimal.NewFromInt(int64(40+i%100)).String(), "1",
			decimal.NewFromInt(int64(i%100)).String()))
	}
	disc := newTestDiscovery(16, "10")
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		disc.Run(ctx, in)
	}
}

package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/fd1az/dex-arbitrage/business/pool/domain"
	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

// StaticTargets is a TargetSource over a fixed list.
type StaticTargets []domain.Target

// Targets returns a copy of the list.
func (s StaticTargets) Targets(context.Context) ([]domain.Target, error) {
	out := make([]domain.Target, len(s))
	copy(out, s)
	return out, nil
}

// LoadTargets merges every source, validates each target and rejects
// duplicate IDs. The result is ordered by ID.
func LoadTargets(ctx context.Context, sources ...TargetSource) ([]domain.Target, error) {
	seen := make(map[string]struct{})
	var out []domain.Target

	for _, src := range sources {
		targets, err := src.Targets(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			if err := t.Validate(); err != nil {
				return nil, apperror.Validation(apperror.CodeInvalidConfig, err.Error())
			}
			if _, dup := seen[t.ID]; dup {
				return nil, apperror.Validation(apperror.CodeInvalidConfig, fmt.Sprintf("duplicate target id %q", t.ID))
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

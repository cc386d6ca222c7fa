package strategy

import (
	"context"
	"sort"
	"strings"

	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
	"github.com/memoryfabric/agentic-memory/internal/scoring"
)

// FullText scores tenant-scoped memory content by term-occurrence count
// (spec §4.3: "score is implementation-defined but MUST be monotone in
// match quality").
type FullText struct {
	store store.Store
}

// NewFullText builds a full-text strategy over a Memory Store.
func NewFullText(s store.Store) *FullText { return &FullText{store: s} }

func (*FullText) Name() string { return "fulltext" }

func termMatchScore(terms []string, content string) float64 {
	lc := strings.ToLower(content)
	score := 0.0
	for _, t := range terms {
		if t == "" {
			continue
		}
		score += float64(strings.Count(lc, t))
	}
	return score
}

func (f *FullText) Run(ctx context.Context, tenantID, query string, filters store.Filters, limit int) ([]scoring.StrategyResult, error) {
	records, err := f.store.Search(ctx, tenantID, query, filters)
	if err != nil {
		return nil, err
	}
	terms := strings.Fields(strings.ToLower(query))

	type scored struct {
		id    string
		score float64
	}
	out := make([]scored, 0, len(records))
	for _, r := range records {
		s := termMatchScore(terms, r.Content)
		if s <= 0 {
			continue
		}
		out = append(out, scored{id: r.ID.String(), score: s})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	results := make([]scoring.StrategyResult, len(out))
	for i, s := range out {
		results[i] = scoring.StrategyResult{MemoryID: s.id, Rank: i + 1, RawScore: s.score}
	}
	return results, nil
}

var _ Strategy = (*FullText)(nil)

package strategy

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
	"github.com/memoryfabric/agentic-memory/internal/scoring"
)

// BM25 scores tenant-scoped memory content with classical Okapi BM25
// (spec §4.3: k1=1.5, b=0.75, whitespace-lowercase tokenization,
// idf(t) = ln((N-df+0.5)/(df+0.5)+1)). The tenant-scoped memory set under
// the given filters is the corpus; average document length is computed
// over that same corpus on every call, since the corpus is small enough
// (spec §4.2's layer sizing) that recomputing beats maintaining an index.
type BM25 struct {
	store store.Store
	k1    float64
	b     float64
}

// NewBM25 builds a BM25 strategy with the spec's default parameters.
func NewBM25(s store.Store) *BM25 { return &BM25{store: s, k1: 1.5, b: 0.75} }

func (*BM25) Name() string { return "bm25" }

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func termFreqs(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

func (bm *BM25) Run(ctx context.Context, tenantID, query string, filters store.Filters, limit int) ([]scoring.StrategyResult, error) {
	docs, err := bm.store.List(ctx, tenantID, filters)
	if err != nil {
		return nil, err
	}
	queryTerms := tokenize(query)
	if len(docs) == 0 || len(queryTerms) == 0 {
		return nil, nil
	}

	docTF := make([]map[string]int, len(docs))
	docLen := make([]int, len(docs))
	totalLen := 0
	df := make(map[string]int)
	for i, d := range docs {
		tokens := tokenize(d.Content)
		docLen[i] = len(tokens)
		totalLen += len(tokens)
		tf := termFreqs(tokens)
		docTF[i] = tf
		for t := range tf {
			df[t]++
		}
	}
	n := float64(len(docs))
	avgdl := float64(totalLen) / n

	idf := make(map[string]float64, len(queryTerms))
	for _, t := range queryTerms {
		d := float64(df[t])
		idf[t] = math.Log((n-d+0.5)/(d+0.5) + 1)
	}

	type scored struct {
		id    string
		score float64
	}
	out := make([]scored, 0, len(docs))
	for i, d := range docs {
		score := 0.0
		for _, t := range queryTerms {
			tf := float64(docTF[i][t])
			if tf == 0 {
				continue
			}
			denom := tf + bm.k1*(1-bm.b+bm.b*float64(docLen[i])/avgdl)
			score += idf[t] * (tf * (bm.k1 + 1)) / denom
		}
		if score <= 0 {
			continue
		}
		out = append(out, scored{id: d.ID.String(), score: score})
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

var _ Strategy = (*BM25)(nil)

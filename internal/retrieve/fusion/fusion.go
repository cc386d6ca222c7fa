// Package fusion wraps internal/scoring's RRF/WeightedSum/Max combiners
// with the pipeline rules of spec §4.4: per-strategy candidate caps and
// the semantic reranking pass. Grounded on the teacher's internal/rag
// package, which layers a rerank pass on top of an initial retrieval set.
package fusion

import (
	"context"
	"sort"

	"github.com/memoryfabric/agentic-memory/internal/embedding"
	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/scoring"
)

// Method selects which scoring combiner Fuse uses.
type Method int

const (
	MethodRRF Method = iota
	MethodWeightedSum
	MethodMax
)

// CandidateCapMultiplier is spec §4.4's "each strategy returns up to
// 5*limit candidates" rule, applied by the caller when invoking each
// strategy's Run with limit*CandidateCapMultiplier.
const CandidateCapMultiplier = 5

// RerankPoolCap is the "min(20, fused_size)" rerank window of spec §4.4.
const RerankPoolCap = 20

// SemanticRerankWeight is the cosine weight in the rerank blend
// (0.7*cosine + 0.3*fused_score, spec §4.4).
const SemanticRerankWeight = 0.7

// Fuse combines per-strategy result sets into a single ranked list.
func Fuse(method Method, strategies [][]scoring.StrategyResult, weights []float64) []scoring.Fused {
	switch method {
	case MethodWeightedSum:
		return scoring.WeightedSum(strategies, weights)
	case MethodMax:
		return scoring.Max(strategies)
	default:
		return scoring.RRF(strategies, weights, 0)
	}
}

// Rerank recomputes the top min(RerankPoolCap, len(fused)) entries' scores
// as 0.7*cosine(query, doc) + 0.3*fused_score and re-sorts that window
// descending, leaving the tail in its fused order (spec §4.4's "optional
// reranking runs on the top min(20, fused_size)"). records must contain an
// entry for every fused id in the rerank window; missing ids are left at
// their fused score unchanged rather than erroring, since a stale fused
// entry for a since-deleted memory shouldn't abort the whole search.
func Rerank(ctx context.Context, fused []scoring.Fused, records map[string]*model.Record, embed embedding.Provider, queryEmbedding []float32) ([]scoring.Fused, error) {
	if embed == nil || len(fused) == 0 {
		return fused, nil
	}
	poolSize := len(fused)
	if poolSize > RerankPoolCap {
		poolSize = RerankPoolCap
	}
	pool := fused[:poolSize]
	rest := fused[poolSize:]

	texts := make([]string, 0, poolSize)
	textIdx := make([]int, 0, poolSize)
	for i, f := range pool {
		r, ok := records[f.MemoryID]
		if !ok {
			continue
		}
		texts = append(texts, r.Content)
		textIdx = append(textIdx, i)
	}
	if len(texts) == 0 {
		return fused, nil
	}

	docEmbeddings, err := embed.EmbedBatch(ctx, texts, embedding.TaskSearchDocument)
	if err != nil {
		return nil, err
	}

	reranked := make([]scoring.Fused, poolSize)
	copy(reranked, pool)
	for j, i := range textIdx {
		cos := scoring.Cosine(queryEmbedding, docEmbeddings[j])
		reranked[i] = scoring.Fused{
			MemoryID: pool[i].MemoryID,
			Score:    SemanticRerankWeight*cos + (1-SemanticRerankWeight)*pool[i].Score,
		}
	}
	sort.SliceStable(reranked, func(i, j int) bool { return reranked[i].Score > reranked[j].Score })

	out := make([]scoring.Fused, 0, len(fused))
	out = append(out, reranked...)
	out = append(out, rest...)
	return out, nil
}

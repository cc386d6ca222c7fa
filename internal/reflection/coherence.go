package reflection

import (
	"context"

	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/persistence/vector"
	"github.com/memoryfabric/agentic-memory/internal/scoring"
)

// coherence computes a cluster's internal cohesion as confidence for the
// reflection it produces (spec §4.9, Open Question resolved in
// SPEC_FULL.md/DESIGN.md): mean pairwise cosine similarity of the
// cluster's embeddings when a vector store holds one for every member,
// falling back to tag-Jaccard-over-pairs otherwise.
func coherence(ctx context.Context, vectors vector.Store, modelName string, members []*model.Record) float64 {
	if vectors != nil {
		if score, ok := embeddingCoherence(ctx, vectors, modelName, members); ok {
			return score
		}
	}
	return tagJaccardCoherence(members)
}

func embeddingCoherence(ctx context.Context, vectors vector.Store, modelName string, members []*model.Record) (float64, bool) {
	vecs := make([][]float32, 0, len(members))
	for _, m := range members {
		v, err := vectors.GetVector(ctx, m.ID, modelName)
		if err != nil || len(v) == 0 {
			return 0, false
		}
		vecs = append(vecs, v)
	}
	return meanPairwise(vecs), true
}

func meanPairwise(vecs [][]float32) float64 {
	if len(vecs) < 2 {
		return 1
	}
	sum, n := 0.0, 0
	for i := 0; i < len(vecs); i++ {
		for j := i + 1; j < len(vecs); j++ {
			sum += scoring.Cosine(vecs[i], vecs[j])
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func tagJaccardCoherence(members []*model.Record) float64 {
	if len(members) < 2 {
		return 1
	}
	sum, n := 0.0, 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += jaccard(members[i].Tags, members[j].Tags)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	inter := 0
	for tag := range setA {
		if _, ok := setB[tag]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(tags []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		out[t] = struct{}{}
	}
	return out
}

package scoring

import "sort"

// StrategyResult is one (memory_id, raw_score) pair a retrieval strategy
// returned, at a given rank, for a given strategy name/weight.
type StrategyResult struct {
	MemoryID string
	Rank     int // 1-based
	RawScore float64
}

// Fused is one fusion output row: the memory id, its combined score, and
// the insertion order it first appeared in (for deterministic tie-break).
type Fused struct {
	MemoryID string
	Score    float64
	order    int
}

// firstSeenOrder walks strategy result sets in the order given, recording each
// memory id's first-seen order for the tie-break spec §4.1 requires
// ("on equal score, earlier-inserted memory wins").
func firstSeenOrder(strategies [][]StrategyResult) (order []string, seen map[string]int) {
	seen = make(map[string]int)
	for _, results := range strategies {
		for _, r := range results {
			if _, ok := seen[r.MemoryID]; !ok {
				seen[r.MemoryID] = len(order)
				order = append(order, r.MemoryID)
			}
		}
	}
	return order, seen
}

func sortFused(out []Fused) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].order < out[j].order
	})
}

// RRF performs Reciprocal Rank Fusion: each strategy i contributes
// weights[i] / (k + rank) per result; k defaults to 60 when <= 0.
func RRF(strategies [][]StrategyResult, weights []float64, k int) []Fused {
	if k <= 0 {
		k = 60
	}
	order, seen := firstSeenOrder(strategies)
	scores := make([]float64, len(order))
	for si, results := range strategies {
		w := 1.0
		if si < len(weights) {
			w = weights[si]
		}
		for _, r := range results {
			scores[seen[r.MemoryID]] += w / float64(k+r.Rank)
		}
	}
	out := make([]Fused, len(order))
	for i, id := range order {
		out[i] = Fused{MemoryID: id, Score: scores[i], order: i}
	}
	sortFused(out)
	return out
}

// minMaxNormalize rescales raw scores within a single strategy's result set
// to [0,1]. A strategy with a single distinct score normalizes everything
// to 1.0 (no information to rank by, so nothing is penalized).
func minMaxNormalize(results []StrategyResult) map[string]float64 {
	out := make(map[string]float64, len(results))
	if len(results) == 0 {
		return out
	}
	min, max := results[0].RawScore, results[0].RawScore
	for _, r := range results {
		if r.RawScore < min {
			min = r.RawScore
		}
		if r.RawScore > max {
			max = r.RawScore
		}
	}
	span := max - min
	for _, r := range results {
		if span == 0 {
			out[r.MemoryID] = 1.0
			continue
		}
		out[r.MemoryID] = (r.RawScore - min) / span
	}
	return out
}

// WeightedSum min-max normalizes each strategy's raw scores to [0,1], then
// combines them as a weighted sum.
func WeightedSum(strategies [][]StrategyResult, weights []float64) []Fused {
	order, seen := firstSeenOrder(strategies)
	scores := make([]float64, len(order))
	for si, results := range strategies {
		w := 1.0
		if si < len(weights) {
			w = weights[si]
		}
		normalized := minMaxNormalize(results)
		for id, n := range normalized {
			scores[seen[id]] += w * n
		}
	}
	out := make([]Fused, len(order))
	for i, id := range order {
		out[i] = Fused{MemoryID: id, Score: scores[i], order: i}
	}
	sortFused(out)
	return out
}

// Max takes, per memory id, the maximum raw score across strategies.
func Max(strategies [][]StrategyResult) []Fused {
	order, seen := firstSeenOrder(strategies)
	scores := make([]float64, len(order))
	init := make([]bool, len(order))
	for _, results := range strategies {
		for _, r := range results {
			idx := seen[r.MemoryID]
			if !init[idx] || r.RawScore > scores[idx] {
				scores[idx] = r.RawScore
				init[idx] = true
			}
		}
	}
	out := make([]Fused, len(order))
	for i, id := range order {
		out[i] = Fused{MemoryID: id, Score: scores[i], order: i}
	}
	sortFused(out)
	return out
}

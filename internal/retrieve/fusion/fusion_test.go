package fusion

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/memoryfabric/agentic-memory/internal/embedding"
	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/scoring"
)

func TestFuse_DispatchesToSelectedMethod(t *testing.T) {
	strategies := [][]scoring.StrategyResult{
		{{MemoryID: "a", Rank: 1, RawScore: 10}, {MemoryID: "b", Rank: 2, RawScore: 5}},
	}
	rrf := Fuse(MethodRRF, strategies, nil)
	ws := Fuse(MethodWeightedSum, strategies, nil)
	mx := Fuse(MethodMax, strategies, nil)
	require.Len(t, rrf, 2)
	require.Len(t, ws, 2)
	require.Len(t, mx, 2)
	require.Equal(t, "a", rrf[0].MemoryID)
	require.Equal(t, "a", ws[0].MemoryID)
	require.Equal(t, "a", mx[0].MemoryID)
}

func TestRerank_NoProviderReturnsFusedUnchanged(t *testing.T) {
	fused := []scoring.Fused{{MemoryID: "a", Score: 0.5}}
	out, err := Rerank(context.Background(), fused, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, fused, out)
}

// fakeProvider returns caller-controlled vectors keyed by text, so rerank
// tests can pin exact cosine similarities instead of depending on a real
// (or hash-based) embedding model's accidental correlations.
type fakeProvider struct {
	byText map[string][]float32
	dim    int
}

func (f *fakeProvider) EmbedText(_ context.Context, text string, _ embedding.TaskType) ([]float32, error) {
	return f.byText[text], nil
}

func (f *fakeProvider) EmbedBatch(_ context.Context, texts []string, task embedding.TaskType) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := f.EmbedText(context.Background(), t, task)
		out[i] = v
	}
	return out, nil
}

func (f *fakeProvider) Dimension() int { return f.dim }

func TestRerank_ReordersWindowBySemanticScore(t *testing.T) {
	idA, idB := uuid.New().String(), uuid.New().String()
	records := map[string]*model.Record{
		idA: {ID: uuid.MustParse(idA), Content: "doc-a"},
		idB: {ID: uuid.MustParse(idB), Content: "doc-b"},
	}
	fused := []scoring.Fused{
		{MemoryID: idB, Score: 0.9},
		{MemoryID: idA, Score: 0.1},
	}
	provider := &fakeProvider{dim: 2, byText: map[string][]float32{
		"doc-a": {1, 0},
		"doc-b": {0, 1},
	}}
	queryEmbedding := []float32{1, 0} // matches doc-a exactly, orthogonal to doc-b

	out, err := Rerank(context.Background(), fused, records, provider, queryEmbedding)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, idA, out[0].MemoryID)
}

func TestRerank_LeavesTailBeyondPoolCapUnchanged(t *testing.T) {
	var fused []scoring.Fused
	records := map[string]*model.Record{}
	for i := 0; i < RerankPoolCap+3; i++ {
		id := uuid.New().String()
		fused = append(fused, scoring.Fused{MemoryID: id, Score: float64(i)})
		records[id] = &model.Record{ID: uuid.MustParse(id), Content: "doc"}
	}
	det := embedding.NewDeterministic(8)
	out, err := Rerank(context.Background(), fused, records, det, make([]float32, 8))
	require.NoError(t, err)
	require.Len(t, out, len(fused))
	for i := RerankPoolCap; i < len(out); i++ {
		require.Equal(t, fused[i].MemoryID, out[i].MemoryID)
	}
}

func TestRerank_MissingRecordLeftAtFusedScore(t *testing.T) {
	fused := []scoring.Fused{{MemoryID: "ghost", Score: 0.7}}
	det := embedding.NewDeterministic(8)
	out, err := Rerank(context.Background(), fused, map[string]*model.Record{}, det, make([]float32, 8))
	require.NoError(t, err)
	require.Equal(t, fused, out)
}

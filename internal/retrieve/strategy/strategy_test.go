package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/memoryfabric/agentic-memory/internal/embedding"
	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/obs"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
	"github.com/memoryfabric/agentic-memory/internal/persistence/vector"
	"github.com/memoryfabric/agentic-memory/internal/scoring"
)

func seedRecord(t *testing.T, s *store.Memory, content string) *model.Record {
	t.Helper()
	now := time.Now()
	r := &model.Record{
		ID:         uuid.New(),
		TenantID:   "t1",
		AgentID:    "a1",
		Content:    content,
		Layer:      model.LayerWorking,
		Importance: 0.5,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	require.NoError(t, s.Store(context.Background(), r))
	return r
}

func TestFullText_ScoresMonotoneInMatchCount(t *testing.T) {
	s := store.NewMemory()
	few := seedRecord(t, s, "the quick fox")
	many := seedRecord(t, s, "fox fox fox jumps over the fox")

	strat := NewFullText(s)
	results, err := strat.Run(context.Background(), "t1", "fox", store.Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, many.ID.String(), results[0].MemoryID)
	require.Equal(t, few.ID.String(), results[1].MemoryID)
	require.Greater(t, results[0].RawScore, results[1].RawScore)
}

func TestBM25_RanksMoreRelevantDocHigher(t *testing.T) {
	s := store.NewMemory()
	relevant := seedRecord(t, s, "agentic memory consolidation and retrieval")
	irrelevant := seedRecord(t, s, "unrelated text about gardening")

	strat := NewBM25(s)
	results, err := strat.Run(context.Background(), "t1", "memory retrieval", store.Filters{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, relevant.ID.String(), results[0].MemoryID)
	for _, r := range results {
		require.NotEqual(t, irrelevant.ID.String(), r.MemoryID)
	}
}

func TestBM25_EmptyCorpusReturnsNil(t *testing.T) {
	s := store.NewMemory()
	strat := NewBM25(s)
	results, err := strat.Run(context.Background(), "t1", "anything", store.Filters{}, 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

type fakeVectorStore struct {
	vector.Store
	results []vector.Result
	err     error
}

func (f *fakeVectorStore) Search(ctx context.Context, queryEmbedding []float32, tenantID string, filt vector.Filter, limit int, scoreThreshold *float64, vectorName string) ([]vector.Result, error) {
	return f.results, f.err
}

func TestDense_EmbedsQueryAndReturnsScores(t *testing.T) {
	id := uuid.New()
	vs := &fakeVectorStore{results: []vector.Result{{MemoryID: id.String(), ModelName: "m1", Score: 0.9}}}
	det := embedding.NewDeterministic(8)

	strat := NewDense(det, vs, "m1")
	results, err := strat.Run(context.Background(), "t1", "hello world", store.Filters{}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, id.String(), results[0].MemoryID)
	require.Equal(t, 0.9, results[0].RawScore)
}

type failingStrategy struct{ name string }

func (f *failingStrategy) Name() string { return f.name }
func (f *failingStrategy) Run(ctx context.Context, tenantID, query string, filters store.Filters, limit int) ([]scoring.StrategyResult, error) {
	return nil, errors.New("boom")
}

type slowStrategy struct{ name string }

func (s *slowStrategy) Name() string { return s.name }
func (s *slowStrategy) Run(ctx context.Context, tenantID, query string, filters store.Filters, limit int) ([]scoring.StrategyResult, error) {
	select {
	case <-time.After(time.Second):
		return []scoring.StrategyResult{{MemoryID: "late", Rank: 1, RawScore: 1}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestFanOut_FailedStrategyYieldsEmptyNotPanic(t *testing.T) {
	strategies := []Strategy{&failingStrategy{name: "bad"}}
	results := FanOut(context.Background(), strategies, "t1", "q", store.Filters{}, 10, 0, obs.NoopLogger{})
	require.Len(t, results, 1)
	require.Empty(t, results[0])
}

func TestFanOut_TimeoutYieldsEmpty(t *testing.T) {
	strategies := []Strategy{&slowStrategy{name: "slow"}}
	results := FanOut(context.Background(), strategies, "t1", "q", store.Filters{}, 10, 10*time.Millisecond, obs.NoopLogger{})
	require.Len(t, results, 1)
	require.Empty(t, results[0])
}

func TestFanOut_PreservesStrategyOrder(t *testing.T) {
	a := &fixedStrategy{name: "a", out: []scoring.StrategyResult{{MemoryID: "x", Rank: 1, RawScore: 1}}}
	b := &fixedStrategy{name: "b", out: []scoring.StrategyResult{{MemoryID: "y", Rank: 1, RawScore: 1}}}
	results := FanOut(context.Background(), []Strategy{a, b}, "t1", "q", store.Filters{}, 10, 0, obs.NoopLogger{})
	require.Len(t, results, 2)
	require.Equal(t, "x", results[0][0].MemoryID)
	require.Equal(t, "y", results[1][0].MemoryID)
}

type fixedStrategy struct {
	name string
	out  []scoring.StrategyResult
}

func (f *fixedStrategy) Name() string { return f.name }
func (f *fixedStrategy) Run(ctx context.Context, tenantID, query string, filters store.Filters, limit int) ([]scoring.StrategyResult, error) {
	return f.out, nil
}

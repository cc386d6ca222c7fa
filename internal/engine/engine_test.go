package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memoryfabric/agentic-memory/internal/cache"
	"github.com/memoryfabric/agentic-memory/internal/clock"
	"github.com/memoryfabric/agentic-memory/internal/config"
	"github.com/memoryfabric/agentic-memory/internal/embedding"
	"github.com/memoryfabric/agentic-memory/internal/errs"
	"github.com/memoryfabric/agentic-memory/internal/isolation"
	"github.com/memoryfabric/agentic-memory/internal/layer"
	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/obs"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
	"github.com/memoryfabric/agentic-memory/internal/persistence/vector"
	"github.com/memoryfabric/agentic-memory/internal/retrieve/policy"
)

func newTestEngine(t *testing.T, withEmbedding bool) (*Engine, store.Store) {
	t.Helper()
	s := store.NewMemory()
	v := vector.NewMemory()
	c := cache.NewMemory()
	guard := isolation.New(obs.NoopLogger{}, false)
	bandit := policy.New()
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	layers := layer.New(s, clk, obs.NoopLogger{}, layer.DefaultPolicies())

	var embed embedding.Provider
	if withEmbedding {
		embed = embedding.NewDeterministic(16)
	}

	cfg := config.Defaults().Retrieval
	e := New(s, v, c, embed, bandit, guard, layers, clk, obs.NoopLogger{}, obs.NewMockMetrics(), cfg, 300*time.Second)
	return e, s
}

func TestStoreMemory_PersistsRecordAndDefaultsSensoryTTL(t *testing.T) {
	e, s := newTestEngine(t, false)
	ctx := context.Background()

	r, err := e.StoreMemory(ctx, StoreRequest{
		TenantID: "tenant_a", AgentID: "agent_1", Content: "a fleeting note", Layer: model.LayerSensory,
	})
	require.NoError(t, err)
	require.True(t, r.HasExpiry())

	fetched, err := s.FetchByID(ctx, "tenant_a", r.ID)
	require.NoError(t, err)
	require.Equal(t, "a fleeting note", fetched.Content)
}

func TestStoreMemory_RejectsEmptyContent(t *testing.T) {
	e, _ := newTestEngine(t, false)
	_, err := e.StoreMemory(context.Background(), StoreRequest{TenantID: "tenant_a", Content: "   "})
	require.Error(t, err)
}

func TestGetMemory_BumpsAccessCount(t *testing.T) {
	e, _ := newTestEngine(t, false)
	ctx := context.Background()
	r, err := e.StoreMemory(ctx, StoreRequest{TenantID: "tenant_a", Content: "hello", Layer: model.LayerWorking})
	require.NoError(t, err)
	require.Equal(t, int64(0), r.AccessCount)

	updated, err := e.GetMemory(ctx, "tenant_a", r.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), updated.AccessCount)
}

func TestGetMemory_BumpsVersion(t *testing.T) {
	e, _ := newTestEngine(t, false)
	ctx := context.Background()
	r, err := e.StoreMemory(ctx, StoreRequest{TenantID: "tenant_a", Content: "hello", Layer: model.LayerWorking})
	require.NoError(t, err)
	require.Equal(t, int64(1), r.Version)

	updated, err := e.GetMemory(ctx, "tenant_a", r.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated.Version)
}

func TestStoreMemory_RejectsWriteToZeroCapacityLayer(t *testing.T) {
	e, _ := newTestEngine(t, false)
	e.layers = layer.New(e.store, e.clock, obs.NoopLogger{}, map[model.Layer]layer.Policy{
		model.LayerSensory: {Capacity: func() *int { n := 0; return &n }()},
	})
	ctx := context.Background()

	_, err := e.StoreMemory(ctx, StoreRequest{TenantID: "tenant_a", Content: "too many", Layer: model.LayerSensory})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.ResourceExhausted))
}

func TestStoreMemory_EvictsOverCapacityBeforeWriting(t *testing.T) {
	e, _ := newTestEngine(t, false)
	e.layers = layer.New(e.store, e.clock, obs.NoopLogger{}, map[model.Layer]layer.Policy{
		model.LayerWorking: {Capacity: func() *int { n := 1; return &n }()},
	})
	ctx := context.Background()

	first, err := e.StoreMemory(ctx, StoreRequest{TenantID: "tenant_a", Content: "first", Layer: model.LayerWorking, Importance: 0.1})
	require.NoError(t, err)

	second, err := e.StoreMemory(ctx, StoreRequest{TenantID: "tenant_a", Content: "second", Layer: model.LayerWorking, Importance: 0.9})
	require.NoError(t, err)

	_, err = e.store.FetchByID(ctx, "tenant_a", first.ID)
	require.Error(t, err)
	fetched, err := e.store.FetchByID(ctx, "tenant_a", second.ID)
	require.NoError(t, err)
	require.Equal(t, "second", fetched.Content)
}

func TestSearch_FindsStoredMemoryByFullTextMatch(t *testing.T) {
	e, _ := newTestEngine(t, false)
	ctx := context.Background()

	_, err := e.StoreMemory(ctx, StoreRequest{TenantID: "tenant_a", AgentID: "agent_1", Content: "the quick brown fox", Layer: model.LayerWorking})
	require.NoError(t, err)
	_, err = e.StoreMemory(ctx, StoreRequest{TenantID: "tenant_a", AgentID: "agent_1", Content: "an unrelated sentence", Layer: model.LayerWorking})
	require.NoError(t, err)

	result, err := e.Search(ctx, SearchRequest{TenantID: "tenant_a", AgentID: "agent_1", Query: "quick fox", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, result.Memories)
	require.Contains(t, result.Memories[0].Content, "quick brown fox")
}

func TestSearch_IsolatesAcrossTenants(t *testing.T) {
	e, _ := newTestEngine(t, false)
	ctx := context.Background()

	_, err := e.StoreMemory(ctx, StoreRequest{TenantID: "tenant_a", AgentID: "agent_1", Content: "shared keyword apple", Layer: model.LayerWorking})
	require.NoError(t, err)

	result, err := e.Search(ctx, SearchRequest{TenantID: "tenant_b", AgentID: "agent_1", Query: "apple", Limit: 5})
	require.NoError(t, err)
	require.Empty(t, result.Memories)
}

func TestSearch_SecondIdenticalCallIsCacheHit(t *testing.T) {
	e, _ := newTestEngine(t, false)
	ctx := context.Background()

	_, err := e.StoreMemory(ctx, StoreRequest{TenantID: "tenant_a", AgentID: "agent_1", Content: "cacheable content here", Layer: model.LayerWorking})
	require.NoError(t, err)

	first, err := e.Search(ctx, SearchRequest{TenantID: "tenant_a", AgentID: "agent_1", Query: "cacheable content", Limit: 5})
	require.NoError(t, err)
	require.False(t, first.Trace.CacheHit)

	second, err := e.Search(ctx, SearchRequest{TenantID: "tenant_a", AgentID: "agent_1", Query: "cacheable content", Limit: 5})
	require.NoError(t, err)
	require.True(t, second.Trace.CacheHit)
	require.Equal(t, len(first.Memories), len(second.Memories))
}

func TestSearch_QuestionQueryUsesHeuristicArm(t *testing.T) {
	e, _ := newTestEngine(t, false)
	ctx := context.Background()
	_, err := e.StoreMemory(ctx, StoreRequest{TenantID: "tenant_a", AgentID: "agent_1", Content: "paris is a city", Layer: model.LayerWorking})
	require.NoError(t, err)

	result, err := e.Search(ctx, SearchRequest{TenantID: "tenant_a", AgentID: "agent_1", Query: "what is paris", Limit: 5})
	require.NoError(t, err)
	require.True(t, result.Trace.HeuristicUsed)
	require.Equal(t, "bm25", result.Trace.ArmUsed.Strategy)
	require.Equal(t, "recall", result.Trace.ArmUsed.OptimizationLevel)
}

func TestSearch_WithEmbeddingProviderRunsDenseStrategyAndRerank(t *testing.T) {
	e, _ := newTestEngine(t, true)
	ctx := context.Background()

	_, err := e.StoreMemory(ctx, StoreRequest{TenantID: "tenant_a", AgentID: "agent_1", Content: "vector search works well", Layer: model.LayerWorking})
	require.NoError(t, err)

	result, err := e.Search(ctx, SearchRequest{TenantID: "tenant_a", AgentID: "agent_1", Query: "vector search", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, result.Memories)
	require.Contains(t, result.Trace.StrategyCounts, "dense")
}

func TestUpdatePolicy_RejectsOutOfRangeReward(t *testing.T) {
	e, _ := newTestEngine(t, false)
	err := e.UpdatePolicy(model.ArmKey{Strategy: "bm25", OptimizationLevel: "recall"}, 1.5)
	require.Error(t, err)
}

func TestUpdatePolicy_AcceptsValidReward(t *testing.T) {
	e, _ := newTestEngine(t, false)
	err := e.UpdatePolicy(model.ArmKey{Strategy: "bm25", OptimizationLevel: "recall"}, 0.8)
	require.NoError(t, err)
}

func TestGetStatus_ReportsUnconfiguredBackgroundServicesByDefault(t *testing.T) {
	e, _ := newTestEngine(t, false)
	status := e.GetStatus()
	require.False(t, status.ReflectionConfigured)
	require.False(t, status.SyncConfigured)
	require.False(t, status.ReconcileConfigured)
	require.Contains(t, status.Strategies, "fulltext")
	require.Contains(t, status.Strategies, "bm25")
}

func TestRunReflectionCycle_UnavailableWithoutAttachedEngine(t *testing.T) {
	e, _ := newTestEngine(t, false)
	_, err := e.RunReflectionCycle(context.Background(), "tenant_a", "agent_1")
	require.Error(t, err)
}

func TestSyncWithPeer_UnavailableWithoutAttachedCoordinator(t *testing.T) {
	e, _ := newTestEngine(t, false)
	_, err := e.SyncWithPeer(context.Background(), "peer1", "tenant_a", "agent_1")
	require.Error(t, err)
}

func TestReconcileVectors_UnavailableWithoutAttachedReconciler(t *testing.T) {
	e, _ := newTestEngine(t, false)
	_, err := e.ReconcileVectors(context.Background(), "tenant_a")
	require.Error(t, err)
}

package layer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/memoryfabric/agentic-memory/internal/clock"
	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/obs"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
)

func newRecord(tenant string, layer model.Layer, importance float64, accessCount int64, createdAt time.Time) *model.Record {
	return &model.Record{
		ID:          uuid.New(),
		TenantID:    tenant,
		AgentID:     "agent-1",
		Content:     "x",
		Layer:       layer,
		Importance:  importance,
		AccessCount: accessCount,
		CreatedAt:   createdAt,
		ModifiedAt:  createdAt,
	}
}

func TestEnforceCapacity_EvictsLowestPriorityFirst(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	low := newRecord("t1", model.LayerWorking, 0.1, 0, base)
	mid := newRecord("t1", model.LayerWorking, 0.5, 2, base)
	high := newRecord("t1", model.LayerWorking, 0.9, 5, base)
	for _, r := range []*model.Record{low, mid, high} {
		require.NoError(t, s.Store(ctx, r))
	}

	m := New(s, clock.NewFake(base), obs.NoopLogger{}, map[model.Layer]Policy{model.LayerWorking: {Capacity: capacityOf(2)}})
	require.NoError(t, m.EnforceCapacity(ctx, "t1", model.LayerWorking, 0))

	remaining, err := s.List(ctx, "t1", store.Filters{})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, r := range remaining {
		require.NotEqual(t, low.ID, r.ID)
	}
}

func TestEnforceCapacity_ZeroCapacityRejectsPendingWrite(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m := New(s, clock.NewFake(base), obs.NoopLogger{}, map[model.Layer]Policy{model.LayerSensory: {Capacity: capacityOf(0)}})
	err := m.EnforceCapacity(ctx, "t1", model.LayerSensory, 1)
	require.Error(t, err)
}

func TestEnforceCapacity_ZeroCapacityCleanupStillEvictsExisting(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	r := newRecord("t1", model.LayerSensory, 0.2, 0, base)
	require.NoError(t, s.Store(ctx, r))

	m := New(s, clock.NewFake(base), obs.NoopLogger{}, map[model.Layer]Policy{model.LayerSensory: {Capacity: capacityOf(0)}})
	require.NoError(t, m.EnforceCapacity(ctx, "t1", model.LayerSensory, 0))

	remaining, err := s.List(ctx, "t1", store.Filters{})
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestExpireSensory_RemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := clock.NewFake(base)

	expired := newRecord("t1", model.LayerSensory, 0.2, 0, base)
	expired.ExpiresAt = base.Add(-time.Minute)
	fresh := newRecord("t1", model.LayerSensory, 0.2, 0, base)
	fresh.ExpiresAt = base.Add(time.Hour)
	require.NoError(t, s.Store(ctx, expired))
	require.NoError(t, s.Store(ctx, fresh))

	m := New(s, fake, obs.NoopLogger{}, DefaultPolicies())
	n, err := m.ExpireSensory(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = s.FetchByID(ctx, "t1", expired.ID)
	require.Error(t, err)
	_, err = s.FetchByID(ctx, "t1", fresh.ID)
	require.NoError(t, err)
}

func TestPromoteAttention_OnlyAboveThreshold(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	low := newRecord("t1", model.LayerSensory, 0.3, 0, base)
	low.ExpiresAt = base.Add(time.Hour)
	high := newRecord("t1", model.LayerSensory, 0.6, 0, base)
	high.ExpiresAt = base.Add(time.Hour)
	require.NoError(t, s.Store(ctx, low))
	require.NoError(t, s.Store(ctx, high))

	m := New(s, clock.NewFake(base), obs.NoopLogger{}, DefaultPolicies())
	n, err := m.PromoteAttention(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := s.FetchByID(ctx, "t1", high.ID)
	require.NoError(t, err)
	require.Equal(t, model.LayerWorking, got.Layer)
	require.Equal(t, high.Version+1, got.Version)

	stillLow, err := s.FetchByID(ctx, "t1", low.ID)
	require.NoError(t, err)
	require.Equal(t, model.LayerSensory, stillLow.Layer)
}

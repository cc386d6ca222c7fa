package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryfabric/agentic-memory/internal/errs"
	"github.com/memoryfabric/agentic-memory/internal/model"
)

func newRecord(tenant, agent, content string, importance float64) *model.Record {
	now := time.Now()
	return &model.Record{
		ID:             uuid.New(),
		TenantID:       tenant,
		AgentID:        agent,
		Content:        content,
		Layer:          model.LayerWorking,
		Importance:     importance,
		LastAccessedAt: now,
		CreatedAt:      now,
		ModifiedAt:     now,
	}
}

func TestMemory_StoreAndFetch(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	r := newRecord("tenant_A", "agent_1", "hello world", 0.5)

	require.NoError(t, s.Store(ctx, r))

	got, err := s.FetchByID(ctx, "tenant_A", r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Content, got.Content)

	_, err = s.FetchByID(ctx, "tenant_B", r.ID)
	assert.Equal(t, errs.NotFound, errs.GetKind(err))
}

func TestMemory_ListFiltersByAgentAndMinImportance(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Store(ctx, newRecord("t", "a1", "x", 0.8)))
	require.NoError(t, s.Store(ctx, newRecord("t", "a2", "y", 0.2)))

	min := 0.5
	out, err := s.List(ctx, "t", Filters{AgentID: "a1", MinImportance: &min})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a1", out[0].AgentID)
}

func TestMemory_SearchIsMonotoneInMatchCount(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Store(ctx, newRecord("t", "a", "cat cat cat", 0.5)))
	require.NoError(t, s.Store(ctx, newRecord("t", "a", "cat", 0.5)))

	out, err := s.Search(ctx, "t", "cat", Filters{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "cat cat cat", out[0].Content, "higher match count should rank first")
}

func TestMemory_BulkDeleteByPredicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Store(ctx, newRecord("t", "a", "low", 0.05)))
	require.NoError(t, s.Store(ctx, newRecord("t", "a", "high", 0.9)))

	n, err := s.BulkDelete(ctx, "t", Predicate{Field: "importance", Op: "<", Value: 0.1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := s.Count(ctx, "t", Filters{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemory_AggregateOver(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Store(ctx, newRecord("t", "a", "x", 0.2)))
	require.NoError(t, s.Store(ctx, newRecord("t", "a", "y", 0.8)))

	avg, err := s.AggregateOver(ctx, "t", FieldImportance, AggAvg, Filters{})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, avg, 1e-9)

	max, err := s.AggregateOver(ctx, "t", FieldImportance, AggMax, Filters{})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, max, 1e-9)
}

func TestMemory_BatchTouchAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	r := newRecord("t", "a", "x", 0.2)
	require.NoError(t, s.Store(ctx, r))

	require.NoError(t, s.BatchTouchAccess(ctx, "t", []uuid.UUID{r.ID}, time.Now()))

	got, err := s.FetchByID(ctx, "t", r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AccessCount)
}

func TestMemory_SetExpiryAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	r := newRecord("t", "a", "x", 0.2)
	r.Layer = model.LayerSensory
	r.ExpiresAt = time.Now().Add(time.Minute)
	require.NoError(t, s.Store(ctx, r))

	newExpiry := time.Now().Add(2 * time.Hour)
	require.NoError(t, s.SetExpiry(ctx, "t", r.ID, newExpiry))

	updated, err := s.Update(ctx, "t", r.ID, func(rec *model.Record) { rec.Importance = 0.9 })
	require.NoError(t, err)
	assert.InDelta(t, 0.9, updated.Importance, 1e-9)
}

package reconcile

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/obs"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
	"github.com/memoryfabric/agentic-memory/internal/persistence/vector"
)

func TestRun_DeletesOrphanedVectorMissingFromMetadataStore(t *testing.T) {
	s := store.NewMemory()
	v := vector.NewMemory()
	ctx := context.Background()

	v1, v2, v3 := uuid.New(), uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{v1, v2, v3} {
		require.NoError(t, v.StoreVector(ctx, id, EmbeddingModelName, []float32{1, 0}, "tenant_a", nil))
	}
	require.NoError(t, s.Store(ctx, &model.Record{ID: v1, TenantID: "tenant_a", Content: "kept 1", Layer: model.LayerWorking, Version: 1}))
	require.NoError(t, s.Store(ctx, &model.Record{ID: v2, TenantID: "tenant_a", Content: "kept 2", Layer: model.LayerWorking, Version: 1}))

	r := New(s, v, obs.NoopLogger{}, DefaultPageSize)
	n, err := r.Run(ctx, "tenant_a")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	count, err := v.CountVectors(ctx, "tenant_a")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestRun_NoOrphansReturnsZero(t *testing.T) {
	s := store.NewMemory()
	v := vector.NewMemory()
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, v.StoreVector(ctx, id, EmbeddingModelName, []float32{1, 0}, "tenant_a", nil))
	require.NoError(t, s.Store(ctx, &model.Record{ID: id, TenantID: "tenant_a", Content: "kept", Layer: model.LayerWorking, Version: 1}))

	r := New(s, v, obs.NoopLogger{}, DefaultPageSize)
	n, err := r.Run(ctx, "tenant_a")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestRun_PaginatesAcrossMultiplePages(t *testing.T) {
	s := store.NewMemory()
	v := vector.NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := uuid.New()
		require.NoError(t, v.StoreVector(ctx, id, EmbeddingModelName, []float32{1, 0}, "tenant_a", nil))
		if i%2 == 0 {
			require.NoError(t, s.Store(ctx, &model.Record{ID: id, TenantID: "tenant_a", Content: "kept", Layer: model.LayerWorking, Version: 1}))
		}
	}

	r := New(s, v, obs.NoopLogger{}, 2) // force multi-page scan over 5 points
	n, err := r.Run(ctx, "tenant_a")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

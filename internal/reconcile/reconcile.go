// Package reconcile implements the Consistency Reconciler (C14, spec
// §4.8): periodically scans the vector store for a tenant, paginated, and
// deletes any vector whose corresponding metadata row is absent. Grounded
// on the teacher's internal/rag package's paginated ingestion-scan
// pattern, generalized from document chunks to vector-store points.
package reconcile

import (
	"context"

	"github.com/memoryfabric/agentic-memory/internal/errs"
	"github.com/memoryfabric/agentic-memory/internal/obs"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
	"github.com/memoryfabric/agentic-memory/internal/persistence/vector"
)

// DefaultPageSize is the default page size for the vector-store scan
// (spec §4.8: "default 100 points per page").
const DefaultPageSize = 100

// EmbeddingModelName is the fixed vector-space identifier every store
// write uses (matching internal/engine's and internal/reflection's),
// since multi-model embeddings are out of scope for this pass.
const EmbeddingModelName = "default"

// Reconciler enforces agreement between the vector store and the
// metadata store for a tenant.
type Reconciler struct {
	store    store.Store
	vectors  vector.Store
	log      obs.Logger
	pageSize int
}

// New builds a Reconciler. pageSize <= 0 uses DefaultPageSize.
func New(s store.Store, v vector.Store, log obs.Logger, pageSize int) *Reconciler {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Reconciler{store: s, vectors: v, log: log, pageSize: pageSize}
}

// Run performs one reconciliation pass for tenantID, returning the number
// of orphaned vectors deleted.
func (r *Reconciler) Run(ctx context.Context, tenantID string) (int, error) {
	const op = "reconcile.Reconciler.Run"
	deleted := 0

	for offset := 0; ; {
		ids, err := r.vectors.ListIDs(ctx, tenantID, offset, r.pageSize)
		if err != nil {
			return deleted, errs.Wrap(op, errs.GetKind(err), err)
		}
		if len(ids) == 0 {
			break
		}

		removed := 0
		for _, id := range ids {
			if _, err := r.store.FetchByID(ctx, tenantID, id); err != nil {
				if errs.GetKind(err) != errs.NotFound {
					return deleted, err
				}
				if err := r.vectors.DeleteVector(ctx, id, EmbeddingModelName); err != nil {
					return deleted, err
				}
				deleted++
				removed++
				r.log.Info("reconciler deleted orphaned vector", map[string]any{
					"tenant_id": tenantID, "memory_id": id.String(),
				})
			}
		}

		if len(ids) < r.pageSize {
			break
		}
		// Deleted ids no longer occupy positions in the listing, so the next
		// page starts after only the ids that remain.
		offset += len(ids) - removed
	}

	return deleted, nil
}

// Package vector defines the Vector Store port (C5) and its adapters: an
// in-memory implementation for tests, plus Qdrant and Postgres/pgvector
// adapters for production (spec §6's vector-store port). One point is
// stored per (memory_id, model_name); payload carries
// {tenant_id, agent_id, layer, project, tags} for filtering.
package vector

import (
	"context"

	"github.com/google/uuid"
)

// Metric selects the distance function a collection/table uses.
type Metric int

const (
	MetricCosine Metric = iota
	MetricL2
	MetricIP
)

// Filter narrows a search/count call by the payload fields the vector
// store is expected to carry alongside each point.
type Filter struct {
	TenantID string
	AgentID  string
	Layer    *int
	Project  string
	Tags     []string
}

// Result is one nearest-neighbor hit.
type Result struct {
	MemoryID string
	ModelName string
	Score     float64
}

// Store is the Vector Store port (C5).
type Store interface {
	StoreVector(ctx context.Context, id uuid.UUID, modelName string, embedding []float32, tenantID string, metadata map[string]string) error
	BatchStore(ctx context.Context, items []BatchItem) error
	Search(ctx context.Context, queryEmbedding []float32, tenantID string, f Filter, limit int, scoreThreshold *float64, vectorName string) ([]Result, error)
	GetVector(ctx context.Context, id uuid.UUID, modelName string) ([]float32, error)
	DeleteVector(ctx context.Context, id uuid.UUID, modelName string) error
	DeleteByLayer(ctx context.Context, tenantID string, layer int) (int, error)
	CountVectors(ctx context.Context, tenantID string) (int, error)
	// SearchWithContradictionPenalty behaves like Search, but multiplies a
	// candidate's score by penaltyFactor when its stored vector's dot
	// product with the query falls below dotThreshold (spec §6).
	SearchWithContradictionPenalty(ctx context.Context, queryEmbedding []float32, tenantID string, f Filter, limit int, dotThreshold, penaltyFactor float64) ([]Result, error)

	// ListIDs enumerates stored point ids for a tenant, paginated, for the
	// Consistency Reconciler (spec §4.8). offset/pageSize implement simple
	// keyset-free pagination; returns fewer than pageSize items on the
	// last page.
	ListIDs(ctx context.Context, tenantID string, offset, pageSize int) ([]uuid.UUID, error)
}

// BatchItem is one entry of a BatchStore call.
type BatchItem struct {
	ID        uuid.UUID
	ModelName string
	Embedding []float32
	TenantID  string
	Metadata  map[string]string
}

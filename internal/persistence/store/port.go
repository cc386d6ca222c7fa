// Package store defines the Memory Store port (C4) and its adapters: an
// in-memory implementation for tests, and a Postgres-backed one for
// production (spec §6's metadata-store port). Every operation is
// tenant-scoped: callers supply tenant_id and get back only matching rows.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/memoryfabric/agentic-memory/internal/model"
)

// Filters narrows a List/Search/Count/AggregateOver call. Zero values mean
// "unconstrained" for that field.
type Filters struct {
	AgentID      string
	Layer        *model.Layer
	Project      string
	SessionID    string
	TagsContain  []string
	Since        time.Time
	MinImportance *float64
	NotExpired   bool
	MemoryIDsIn  []uuid.UUID
}

// Predicate describes a BulkDelete condition over a single
// field, e.g. {Field: "importance", Op: "<", Value: 0.1}.
type Predicate struct {
	Field string
	Op    string // "<", "<=", "=", ">", ">="
	Value float64
}

// Aggregate names which reduction AggregateOver computes.
type Aggregate int

const (
	AggSum Aggregate = iota
	AggAvg
	AggMax
	AggMin
)

// Field names an aggregatable numeric column.
type Field int

const (
	FieldImportance Field = iota
	FieldAccessCount
)

// Store is the Memory Store port (C4).
type Store interface {
	Store(ctx context.Context, r *model.Record) error
	FetchByID(ctx context.Context, tenantID string, id uuid.UUID) (*model.Record, error)
	List(ctx context.Context, tenantID string, f Filters) ([]*model.Record, error)
	Search(ctx context.Context, tenantID, query string, f Filters) ([]*model.Record, error)
	// Update applies patch to the current record and persists the result.
	// Every call bumps Version by 1 regardless of what patch changes (spec
	// §3: Version is bumped on every mutation); callers must not bump it
	// themselves inside patch.
	Update(ctx context.Context, tenantID string, id uuid.UUID, patch func(*model.Record)) (*model.Record, error)
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
	BulkDelete(ctx context.Context, tenantID string, p Predicate) (int, error)
	Count(ctx context.Context, tenantID string, f Filters) (int, error)
	AggregateOver(ctx context.Context, tenantID string, field Field, agg Aggregate, f Filters) (float64, error)
	SetExpiry(ctx context.Context, tenantID string, id uuid.UUID, expiresAt time.Time) error
	BatchTouchAccess(ctx context.Context, tenantID string, ids []uuid.UUID, accessedAt time.Time) error
}

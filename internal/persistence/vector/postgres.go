package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/memoryfabric/agentic-memory/internal/errs"
)

// Postgres is a pgvector-backed Vector Store, grounded on the teacher's
// postgres_vector.go (CREATE EXTENSION IF NOT EXISTS vector, a vector(N)
// column, raw `<=>`/`<->`/`<#>` distance operators chosen by metric), with
// the vector literal construction replaced by pgvector-go's Vector type
// for its Value/Scan implementations instead of the teacher's hand-rolled
// toVectorLiteral string building.
type Postgres struct {
	pool       *pgxpool.Pool
	dimensions int
	metric     Metric
}

// NewPostgres connects a pgvector-backed Store over an existing pool.
func NewPostgres(pool *pgxpool.Pool, dimensions int, metric Metric) *Postgres {
	return &Postgres{pool: pool, dimensions: dimensions, metric: metric}
}

// Init ensures the pgvector extension and the embeddings table exist.
func (p *Postgres) Init(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	vecType := "vector"
	if p.dimensions > 0 {
		vecType = fmt.Sprintf("vector(%d)", p.dimensions)
	}
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS embeddings (
  memory_id UUID NOT NULL,
  model_name TEXT NOT NULL,
  tenant_id TEXT NOT NULL,
  vec %s,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  PRIMARY KEY (memory_id, model_name)
);

CREATE INDEX IF NOT EXISTS embeddings_tenant_idx ON embeddings(tenant_id);
`, vecType))
	return err
}

func (p *Postgres) distanceOp() (op, scoreExpr string) {
	switch p.metric {
	case MetricL2:
		return "<->", "-(vec <-> $1)"
	case MetricIP:
		return "<#>", "-(vec <#> $1)"
	default:
		return "<=>", "1 - (vec <=> $1)"
	}
}

func (p *Postgres) StoreVector(ctx context.Context, id uuid.UUID, modelName string, embedding []float32, tenantID string, metadata map[string]string) error {
	const op = "vector.Postgres.StoreVector"
	_, err := p.pool.Exec(ctx, `
INSERT INTO embeddings (memory_id, model_name, tenant_id, vec, metadata)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (memory_id, model_name) DO UPDATE SET vec=EXCLUDED.vec, metadata=EXCLUDED.metadata, tenant_id=EXCLUDED.tenant_id
`, id, modelName, tenantID, pgvector.NewVector(embedding), metadataToJSONB(metadata))
	if err != nil {
		return errs.Unavailablef(op, "upsert vector: %w", err)
	}
	return nil
}

func metadataToJSONB(md map[string]string) map[string]string {
	if md == nil {
		return map[string]string{}
	}
	return md
}

func (p *Postgres) BatchStore(ctx context.Context, items []BatchItem) error {
	for _, it := range items {
		if err := p.StoreVector(ctx, it.ID, it.ModelName, it.Embedding, it.TenantID, it.Metadata); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) buildFilterSQL(tenantID string, f Filter, args *[]any, argStart int) string {
	clauses := []string{fmt.Sprintf("tenant_id = $%d", argStart)}
	*args = append(*args, tenantID)
	n := argStart + 1
	if f.AgentID != "" {
		clauses = append(clauses, fmt.Sprintf("metadata->>'agent_id' = $%d", n))
		*args = append(*args, f.AgentID)
		n++
	}
	if f.Layer != nil {
		clauses = append(clauses, fmt.Sprintf("metadata->>'layer' = $%d", n))
		*args = append(*args, fmt.Sprintf("%d", *f.Layer))
		n++
	}
	if f.Project != "" {
		clauses = append(clauses, fmt.Sprintf("metadata->>'project' = $%d", n))
		*args = append(*args, f.Project)
		n++
	}
	return strings.Join(clauses, " AND ")
}

func (p *Postgres) Search(ctx context.Context, queryEmbedding []float32, tenantID string, f Filter, limit int, scoreThreshold *float64, _ string) ([]Result, error) {
	const op = "vector.Postgres.Search"
	if limit <= 0 {
		limit = 10
	}
	distOp, scoreExpr := p.distanceOp()
	args := []any{pgvector.NewVector(queryEmbedding)}
	where := p.buildFilterSQL(tenantID, f, &args, 2)
	q := fmt.Sprintf(`SELECT memory_id, model_name, %s AS score FROM embeddings WHERE %s ORDER BY vec %s $1 LIMIT %d`,
		scoreExpr, where, distOp, limit)
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.Unavailablef(op, "search: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var id uuid.UUID
		if err := rows.Scan(&id, &r.ModelName, &r.Score); err != nil {
			return nil, errs.Unavailablef(op, "scan: %w", err)
		}
		if scoreThreshold != nil && r.Score < *scoreThreshold {
			continue
		}
		r.MemoryID = id.String()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) SearchWithContradictionPenalty(ctx context.Context, queryEmbedding []float32, tenantID string, f Filter, limit int, dotThreshold, penaltyFactor float64) ([]Result, error) {
	const op = "vector.Postgres.SearchWithContradictionPenalty"
	if limit <= 0 {
		limit = 10
	}
	args := []any{pgvector.NewVector(queryEmbedding)}
	where := p.buildFilterSQL(tenantID, f, &args, 2)
	// Fetch raw inner product alongside the metric score so the penalty
	// can be applied client-side without a second round trip.
	q := fmt.Sprintf(`
SELECT memory_id, model_name, 1 - (vec <=> $1) AS score, -(vec <#> $1) AS dotprod
FROM embeddings WHERE %s ORDER BY vec <=> $1 LIMIT %d`, where, limit)
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.Unavailablef(op, "search: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var id uuid.UUID
		var dotprod float64
		if err := rows.Scan(&id, &r.ModelName, &r.Score, &dotprod); err != nil {
			return nil, errs.Unavailablef(op, "scan: %w", err)
		}
		if dotprod < dotThreshold {
			r.Score *= penaltyFactor
		}
		r.MemoryID = id.String()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetVector(ctx context.Context, id uuid.UUID, modelName string) ([]float32, error) {
	const op = "vector.Postgres.GetVector"
	var v pgvector.Vector
	err := p.pool.QueryRow(ctx, `SELECT vec FROM embeddings WHERE memory_id=$1 AND model_name=$2`, id, modelName).Scan(&v)
	if err != nil {
		return nil, errs.NotFoundf(op, "vector %s/%s not found: %v", id, modelName, err)
	}
	return v.Slice(), nil
}

func (p *Postgres) DeleteVector(ctx context.Context, id uuid.UUID, modelName string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM embeddings WHERE memory_id=$1 AND model_name=$2`, id, modelName)
	if err != nil {
		return errs.Unavailablef("vector.Postgres.DeleteVector", "delete: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteByLayer(ctx context.Context, tenantID string, layer int) (int, error) {
	const op = "vector.Postgres.DeleteByLayer"
	tag, err := p.pool.Exec(ctx, `DELETE FROM embeddings WHERE tenant_id=$1 AND metadata->>'layer' = $2`, tenantID, fmt.Sprintf("%d", layer))
	if err != nil {
		return 0, errs.Unavailablef(op, "delete by layer: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) CountVectors(ctx context.Context, tenantID string) (int, error) {
	const op = "vector.Postgres.CountVectors"
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM embeddings WHERE tenant_id=$1`, tenantID).Scan(&n); err != nil {
		return 0, errs.Unavailablef(op, "count: %w", err)
	}
	return n, nil
}

func (p *Postgres) ListIDs(ctx context.Context, tenantID string, offset, pageSize int) ([]uuid.UUID, error) {
	const op = "vector.Postgres.ListIDs"
	if pageSize <= 0 {
		pageSize = 100
	}
	rows, err := p.pool.Query(ctx, `
SELECT DISTINCT memory_id FROM embeddings WHERE tenant_id=$1 ORDER BY memory_id LIMIT $2 OFFSET $3`,
		tenantID, pageSize, offset)
	if err != nil {
		return nil, errs.Unavailablef(op, "list ids: %w", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Unavailablef(op, "scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

var _ Store = (*Postgres)(nil)

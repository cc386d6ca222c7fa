package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memoryfabric/agentic-memory/internal/errs"
	"github.com/memoryfabric/agentic-memory/internal/model"
)

// Postgres is a pgx/pgxpool-backed Store, grounded on the teacher's
// internal/persistence/databases/evolving_memory_store_postgres.go: a
// CREATE TABLE IF NOT EXISTS schema migration run from Init, JSONB for the
// dynamic metadata column, uuid.UUID primary keys, and plain pgx
// Query/Exec/Scan rather than an ORM.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Postgres-backed Store over an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Init ensures the memories table and its indexes exist.
func (p *Postgres) Init(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS memories (
    id UUID PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    agent_id TEXT NOT NULL,
    project TEXT NOT NULL DEFAULT '',
    session_id TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    layer SMALLINT NOT NULL,
    importance DOUBLE PRECISION NOT NULL DEFAULT 0,
    access_count BIGINT NOT NULL DEFAULT 0,
    last_accessed_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    modified_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ,
    tags TEXT[] NOT NULL DEFAULT '{}',
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    source_memory_ids UUID[] NOT NULL DEFAULT '{}',
    version BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS memories_tenant_agent_idx ON memories(tenant_id, agent_id);
CREATE INDEX IF NOT EXISTS memories_tenant_layer_idx ON memories(tenant_id, layer);
CREATE INDEX IF NOT EXISTS memories_tenant_created_idx ON memories(tenant_id, created_at DESC);
`)
	return err
}

// Close closes the underlying pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func encodeMetadata(md model.Metadata) ([]byte, error) {
	plain := make(map[string]any, len(md))
	for k, v := range md {
		plain[k] = valueToAny(v)
	}
	return json.Marshal(plain)
}

func valueToAny(v model.Value) any {
	switch v.Kind {
	case model.KindString:
		return v.Str
	case model.KindInt:
		return v.Int
	case model.KindFloat:
		return v.Flt
	case model.KindBool:
		return v.Bool
	case model.KindList:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = valueToAny(e)
		}
		return out
	case model.KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = valueToAny(e)
		}
		return out
	default:
		return nil
	}
}

func anyToValue(a any) model.Value {
	switch t := a.(type) {
	case string:
		return model.NewString(t)
	case float64:
		return model.NewFloat(t)
	case bool:
		return model.NewBool(t)
	case []any:
		out := make([]model.Value, len(t))
		for i, e := range t {
			out[i] = anyToValue(e)
		}
		return model.NewList(out)
	case map[string]any:
		out := make(map[string]model.Value, len(t))
		for k, e := range t {
			out[k] = anyToValue(e)
		}
		return model.NewMap(out)
	default:
		return model.Value{}
	}
}

func decodeMetadata(raw []byte) (model.Metadata, error) {
	if len(raw) == 0 {
		return model.Metadata{}, nil
	}
	var plain map[string]any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, err
	}
	out := make(model.Metadata, len(plain))
	for k, v := range plain {
		out[k] = anyToValue(v)
	}
	return out, nil
}

func (p *Postgres) Store(ctx context.Context, r *model.Record) error {
	const op = "store.Postgres.Store"
	if err := r.Validate(); err != nil {
		return errs.Wrap(op, errs.InvalidArgument, err)
	}
	mdBytes, err := encodeMetadata(r.Metadata)
	if err != nil {
		return errs.Internalf(op, "encode metadata: %w", err)
	}
	var expiresAt *time.Time
	if r.HasExpiry() {
		expiresAt = &r.ExpiresAt
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO memories (id, tenant_id, agent_id, project, session_id, content, layer, importance,
    access_count, last_accessed_at, created_at, modified_at, expires_at, tags, metadata,
    source_memory_ids, version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (id) DO UPDATE SET
    tenant_id=$2, agent_id=$3, project=$4, session_id=$5, content=$6, layer=$7, importance=$8,
    access_count=$9, last_accessed_at=$10, modified_at=$12, expires_at=$13, tags=$14,
    metadata=$15, source_memory_ids=$16, version=$17
`, r.ID, r.TenantID, r.AgentID, r.Project, r.SessionID, r.Content, int(r.Layer), r.Importance,
		r.AccessCount, r.LastAccessedAt, r.CreatedAt, r.ModifiedAt, expiresAt, r.Tags, mdBytes,
		r.SourceMemoryIDs, r.Version)
	if err != nil {
		return errs.Unavailablef(op, "insert memory: %w", err)
	}
	return nil
}

const selectColumns = `id, tenant_id, agent_id, project, session_id, content, layer, importance,
    access_count, last_accessed_at, created_at, modified_at, expires_at, tags, metadata,
    source_memory_ids, version`

func scanRecord(row pgx.Row) (*model.Record, error) {
	var (
		r         model.Record
		layer     int
		expiresAt *time.Time
		mdBytes   []byte
	)
	if err := row.Scan(&r.ID, &r.TenantID, &r.AgentID, &r.Project, &r.SessionID, &r.Content, &layer,
		&r.Importance, &r.AccessCount, &r.LastAccessedAt, &r.CreatedAt, &r.ModifiedAt, &expiresAt,
		&r.Tags, &mdBytes, &r.SourceMemoryIDs, &r.Version); err != nil {
		return nil, err
	}
	r.Layer = model.Layer(layer)
	if expiresAt != nil {
		r.ExpiresAt = *expiresAt
	}
	md, err := decodeMetadata(mdBytes)
	if err != nil {
		return nil, err
	}
	r.Metadata = md
	return &r, nil
}

func (p *Postgres) FetchByID(ctx context.Context, tenantID string, id uuid.UUID) (*model.Record, error) {
	const op = "store.Postgres.FetchByID"
	row := p.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM memories WHERE id=$1 AND tenant_id=$2`, id, tenantID)
	r, err := scanRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.NotFoundf(op, "memory %s not found for tenant %s", id, tenantID)
		}
		return nil, errs.Unavailablef(op, "fetch memory: %w", err)
	}
	return r, nil
}

// buildFilterClause appends SQL WHERE fragments for f onto args, starting
// numbering at argStart. Returns the clause (without leading AND) and the
// next free argument index.
func buildFilterClause(f Filters, args *[]any, argStart int) (string, int) {
	var clauses []string
	n := argStart
	add := func(clause string, val any) {
		clauses = append(clauses, fmt.Sprintf(clause, n))
		*args = append(*args, val)
		n++
	}
	if f.AgentID != "" {
		add("agent_id = $%d", f.AgentID)
	}
	if f.Layer != nil {
		add("layer = $%d", int(*f.Layer))
	}
	if f.Project != "" {
		add("project = $%d", f.Project)
	}
	if f.SessionID != "" {
		add("session_id = $%d", f.SessionID)
	}
	if len(f.TagsContain) > 0 {
		add("tags @> $%d", f.TagsContain)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if f.MinImportance != nil {
		add("importance >= $%d", *f.MinImportance)
	}
	if f.NotExpired {
		clauses = append(clauses, "(expires_at IS NULL OR expires_at > now())")
	}
	if len(f.MemoryIDsIn) > 0 {
		add("id = ANY($%d)", f.MemoryIDsIn)
	}
	return strings.Join(clauses, " AND "), n
}

func (p *Postgres) List(ctx context.Context, tenantID string, f Filters) ([]*model.Record, error) {
	const op = "store.Postgres.List"
	args := []any{tenantID}
	clause, _ := buildFilterClause(f, &args, 2)
	q := `SELECT ` + selectColumns + ` FROM memories WHERE tenant_id = $1`
	if clause != "" {
		q += " AND " + clause
	}
	q += " ORDER BY created_at ASC"

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.Unavailablef(op, "list memories: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func scanAll(rows pgx.Rows) ([]*model.Record, error) {
	var out []*model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) Search(ctx context.Context, tenantID, query string, f Filters) ([]*model.Record, error) {
	const op = "store.Postgres.Search"
	args := []any{tenantID, "%" + query + "%"}
	clause, _ := buildFilterClause(f, &args, 3)
	q := `SELECT ` + selectColumns + ` FROM memories WHERE tenant_id = $1 AND content ILIKE $2`
	if clause != "" {
		q += " AND " + clause
	}
	q += " ORDER BY created_at ASC"

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.Unavailablef(op, "search memories: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func (p *Postgres) Update(ctx context.Context, tenantID string, id uuid.UUID, patch func(*model.Record)) (*model.Record, error) {
	const op = "store.Postgres.Update"
	r, err := p.FetchByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	patch(r)
	r.Version++
	if err := r.Validate(); err != nil {
		return nil, errs.Wrap(op, errs.InvalidArgument, err)
	}
	if err := p.Store(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *Postgres) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	const op = "store.Postgres.Delete"
	tag, err := p.pool.Exec(ctx, `DELETE FROM memories WHERE id=$1 AND tenant_id=$2`, id, tenantID)
	if err != nil {
		return errs.Unavailablef(op, "delete memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFoundf(op, "memory %s not found for tenant %s", id, tenantID)
	}
	return nil
}

func (p *Postgres) BulkDelete(ctx context.Context, tenantID string, pr Predicate) (int, error) {
	const op = "store.Postgres.BulkDelete"
	col := "importance"
	if pr.Field == "access_count" {
		col = "access_count"
	}
	op2, ok := sqlOp(pr.Op)
	if !ok {
		return 0, errs.InvalidArgumentf(op, "unsupported predicate operator %q", pr.Op)
	}
	tag, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM memories WHERE tenant_id=$1 AND %s %s $2`, col, op2), tenantID, pr.Value)
	if err != nil {
		return 0, errs.Unavailablef(op, "bulk delete: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func sqlOp(op string) (string, bool) {
	switch op {
	case "<", "<=", "=", ">", ">=":
		return op, true
	default:
		return "", false
	}
}

func (p *Postgres) Count(ctx context.Context, tenantID string, f Filters) (int, error) {
	const op = "store.Postgres.Count"
	args := []any{tenantID}
	clause, _ := buildFilterClause(f, &args, 2)
	q := `SELECT COUNT(*) FROM memories WHERE tenant_id = $1`
	if clause != "" {
		q += " AND " + clause
	}
	var n int
	if err := p.pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, errs.Unavailablef(op, "count memories: %w", err)
	}
	return n, nil
}

func (p *Postgres) AggregateOver(ctx context.Context, tenantID string, field Field, agg Aggregate, f Filters) (float64, error) {
	const op = "store.Postgres.AggregateOver"
	col := "importance"
	if field == FieldAccessCount {
		col = "access_count"
	}
	fn, ok := aggFn(agg)
	if !ok {
		return 0, errs.InvalidArgumentf(op, "unknown aggregate %v", agg)
	}
	args := []any{tenantID}
	clause, _ := buildFilterClause(f, &args, 2)
	q := fmt.Sprintf(`SELECT COALESCE(%s(%s), 0) FROM memories WHERE tenant_id = $1`, fn, col)
	if clause != "" {
		q += " AND " + clause
	}
	var v float64
	if err := p.pool.QueryRow(ctx, q, args...).Scan(&v); err != nil {
		return 0, errs.Unavailablef(op, "aggregate memories: %w", err)
	}
	return v, nil
}

func aggFn(a Aggregate) (string, bool) {
	switch a {
	case AggSum:
		return "SUM", true
	case AggAvg:
		return "AVG", true
	case AggMax:
		return "MAX", true
	case AggMin:
		return "MIN", true
	default:
		return "", false
	}
}

func (p *Postgres) SetExpiry(ctx context.Context, tenantID string, id uuid.UUID, expiresAt time.Time) error {
	const op = "store.Postgres.SetExpiry"
	tag, err := p.pool.Exec(ctx, `UPDATE memories SET expires_at=$1, modified_at=now() WHERE id=$2 AND tenant_id=$3`, expiresAt, id, tenantID)
	if err != nil {
		return errs.Unavailablef(op, "set expiry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFoundf(op, "memory %s not found for tenant %s", id, tenantID)
	}
	return nil
}

func (p *Postgres) BatchTouchAccess(ctx context.Context, tenantID string, ids []uuid.UUID, accessedAt time.Time) error {
	const op = "store.Postgres.BatchTouchAccess"
	if len(ids) == 0 {
		return nil
	}
	_, err := p.pool.Exec(ctx, `
UPDATE memories SET access_count = access_count + 1, last_accessed_at = $1
WHERE tenant_id = $2 AND id = ANY($3)`, accessedAt, tenantID, ids)
	if err != nil {
		return errs.Unavailablef(op, "batch touch access: %w", err)
	}
	return nil
}

var _ Store = (*Postgres)(nil)

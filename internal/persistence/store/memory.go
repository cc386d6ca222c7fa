package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memoryfabric/agentic-memory/internal/errs"
	"github.com/memoryfabric/agentic-memory/internal/model"
)

// Memory is a naive in-memory Store, grounded on the teacher's
// internal/persistence/databases/memory_search.go substring-scoring
// approach, generalized from a bag of documents to the full Record shape
// with tenant scoping and the filter/aggregate/bulk-delete operations
// spec §6 requires. Intended for tests and single-process deployments.
type Memory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*model.Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[uuid.UUID]*model.Record)}
}

func (m *Memory) Store(_ context.Context, r *model.Record) error {
	if err := r.Validate(); err != nil {
		return errs.Wrap("store.Memory.Store", errs.InvalidArgument, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r.Clone()
	return nil
}

func (m *Memory) FetchByID(_ context.Context, tenantID string, id uuid.UUID) (*model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok || r.TenantID != tenantID {
		return nil, errs.NotFoundf("store.Memory.FetchByID", "memory %s not found for tenant %s", id, tenantID)
	}
	return r.Clone(), nil
}

func matchesFilters(r *model.Record, tenantID string, f Filters, now time.Time) bool {
	if r.TenantID != tenantID {
		return false
	}
	if f.AgentID != "" && r.AgentID != f.AgentID {
		return false
	}
	if f.Layer != nil && r.Layer != *f.Layer {
		return false
	}
	if f.Project != "" && r.Project != f.Project {
		return false
	}
	if f.SessionID != "" && r.SessionID != f.SessionID {
		return false
	}
	if len(f.TagsContain) > 0 {
		tagSet := make(map[string]struct{}, len(r.Tags))
		for _, t := range r.Tags {
			tagSet[t] = struct{}{}
		}
		for _, want := range f.TagsContain {
			if _, ok := tagSet[want]; !ok {
				return false
			}
		}
	}
	if !f.Since.IsZero() && r.CreatedAt.Before(f.Since) {
		return false
	}
	if f.MinImportance != nil && r.Importance < *f.MinImportance {
		return false
	}
	if f.NotExpired && r.Expired(now) {
		return false
	}
	if len(f.MemoryIDsIn) > 0 {
		found := false
		for _, id := range f.MemoryIDsIn {
			if id == r.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *Memory) List(_ context.Context, tenantID string, f Filters) ([]*model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	out := make([]*model.Record, 0)
	for _, r := range m.records {
		if matchesFilters(r, tenantID, f, now) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Search performs naive substring/term scoring against Content, restricted
// to the tenant and filters; monotone in match count per spec §4.3's
// full-text strategy requirement.
func (m *Memory) Search(_ context.Context, tenantID, query string, f Filters) ([]*model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	terms := strings.Fields(strings.ToLower(query))

	type scored struct {
		r     *model.Record
		score float64
	}
	var out []scored
	for _, r := range m.records {
		if !matchesFilters(r, tenantID, f, now) {
			continue
		}
		lc := strings.ToLower(r.Content)
		score := 0.0
		for _, t := range terms {
			if t == "" {
				continue
			}
			score += float64(strings.Count(lc, t))
		}
		if score > 0 {
			out = append(out, scored{r: r.Clone(), score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })

	recs := make([]*model.Record, len(out))
	for i, s := range out {
		recs[i] = s.r
	}
	return recs, nil
}

func (m *Memory) Update(_ context.Context, tenantID string, id uuid.UUID, patch func(*model.Record)) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.TenantID != tenantID {
		return nil, errs.NotFoundf("store.Memory.Update", "memory %s not found for tenant %s", id, tenantID)
	}
	cp := r.Clone()
	patch(cp)
	cp.Version++
	if err := cp.Validate(); err != nil {
		return nil, errs.Wrap("store.Memory.Update", errs.InvalidArgument, err)
	}
	m.records[id] = cp
	return cp.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, tenantID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.TenantID != tenantID {
		return errs.NotFoundf("store.Memory.Delete", "memory %s not found for tenant %s", id, tenantID)
	}
	delete(m.records, id)
	return nil
}

func fieldValue(r *model.Record, field string) float64 {
	switch field {
	case "importance":
		return r.Importance
	case "access_count":
		return float64(r.AccessCount)
	default:
		return 0
	}
}

func predicateMatches(r *model.Record, p Predicate) bool {
	v := fieldValue(r, p.Field)
	switch p.Op {
	case "<":
		return v < p.Value
	case "<=":
		return v <= p.Value
	case "=":
		return v == p.Value
	case ">":
		return v > p.Value
	case ">=":
		return v >= p.Value
	default:
		return false
	}
}

func (m *Memory) BulkDelete(_ context.Context, tenantID string, p Predicate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.records {
		if r.TenantID != tenantID {
			continue
		}
		if predicateMatches(r, p) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Count(_ context.Context, tenantID string, f Filters) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	n := 0
	for _, r := range m.records {
		if matchesFilters(r, tenantID, f, now) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) AggregateOver(_ context.Context, tenantID string, field Field, agg Aggregate, f Filters) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	name := "importance"
	if field == FieldAccessCount {
		name = "access_count"
	}

	var values []float64
	for _, r := range m.records {
		if matchesFilters(r, tenantID, f, now) {
			values = append(values, fieldValue(r, name))
		}
	}
	if len(values) == 0 {
		return 0, nil
	}
	switch agg {
	case AggSum:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum, nil
	case AggAvg:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil
	case AggMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max, nil
	case AggMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min, nil
	default:
		return 0, errs.InvalidArgumentf("store.Memory.AggregateOver", "unknown aggregate %v", agg)
	}
}

func (m *Memory) SetExpiry(_ context.Context, tenantID string, id uuid.UUID, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.TenantID != tenantID {
		return errs.NotFoundf("store.Memory.SetExpiry", "memory %s not found for tenant %s", id, tenantID)
	}
	cp := r.Clone()
	cp.ExpiresAt = expiresAt
	m.records[id] = cp
	return nil
}

func (m *Memory) BatchTouchAccess(_ context.Context, tenantID string, ids []uuid.UUID, accessedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		r, ok := m.records[id]
		if !ok || r.TenantID != tenantID {
			continue
		}
		cp := r.Clone()
		cp.AccessCount++
		cp.LastAccessedAt = accessedAt
		m.records[id] = cp
	}
	return nil
}

var _ Store = (*Memory)(nil)

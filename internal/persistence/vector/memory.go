package vector

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/memoryfabric/agentic-memory/internal/errs"
)

type point struct {
	id        uuid.UUID
	modelName string
	vec       []float32
	tenantID  string
	metadata  map[string]string
}

func pointKey(id uuid.UUID, modelName string) string { return id.String() + "/" + modelName }

// Memory is a naive in-memory Store, grounded on the teacher's
// internal/persistence/databases/memory_vector.go cosine brute-force scan,
// generalized to per-(memory_id, model_name) points with tenant/payload
// filtering and pagination for the reconciler.
type Memory struct {
	mu     sync.RWMutex
	points map[string]point
}

// NewMemory returns an empty in-memory vector store.
func NewMemory() *Memory {
	return &Memory{points: make(map[string]point)}
}

func (m *Memory) StoreVector(_ context.Context, id uuid.UUID, modelName string, embedding []float32, tenantID string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]float32(nil), embedding...)
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	m.points[pointKey(id, modelName)] = point{id: id, modelName: modelName, vec: cp, tenantID: tenantID, metadata: md}
	return nil
}

func (m *Memory) BatchStore(ctx context.Context, items []BatchItem) error {
	for _, it := range items {
		if err := m.StoreVector(ctx, it.ID, it.ModelName, it.Embedding, it.TenantID, it.Metadata); err != nil {
			return err
		}
	}
	return nil
}

func matchesFilter(p point, tenantID string, f Filter) bool {
	if p.tenantID != tenantID {
		return false
	}
	if f.AgentID != "" && p.metadata["agent_id"] != f.AgentID {
		return false
	}
	if f.Layer != nil && p.metadata["layer"] != strconv.Itoa(*f.Layer) {
		return false
	}
	if f.Project != "" && p.metadata["project"] != f.Project {
		return false
	}
	for _, tag := range f.Tags {
		if !strings.Contains(p.metadata["tags"], tag) {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func rawDot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func (m *Memory) Search(_ context.Context, queryEmbedding []float32, tenantID string, f Filter, limit int, scoreThreshold *float64, _ string) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	var out []Result
	for _, p := range m.points {
		if !matchesFilter(p, tenantID, f) {
			continue
		}
		s := cosine(queryEmbedding, p.vec)
		if scoreThreshold != nil && s < *scoreThreshold {
			continue
		}
		out = append(out, Result{MemoryID: p.id.String(), ModelName: p.modelName, Score: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SearchWithContradictionPenalty(ctx context.Context, queryEmbedding []float32, tenantID string, f Filter, limit int, dotThreshold, penaltyFactor float64) ([]Result, error) {
	m.mu.RLock()
	points := make([]point, 0, len(m.points))
	for _, p := range m.points {
		if matchesFilter(p, tenantID, f) {
			points = append(points, p)
		}
	}
	m.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	out := make([]Result, 0, len(points))
	for _, p := range points {
		s := cosine(queryEmbedding, p.vec)
		if rawDot(queryEmbedding, p.vec) < dotThreshold {
			s *= penaltyFactor
		}
		out = append(out, Result{MemoryID: p.id.String(), ModelName: p.modelName, Score: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetVector(_ context.Context, id uuid.UUID, modelName string) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.points[pointKey(id, modelName)]
	if !ok {
		return nil, errs.NotFoundf("vector.Memory.GetVector", "vector %s/%s not found", id, modelName)
	}
	return append([]float32(nil), p.vec...), nil
}

func (m *Memory) DeleteVector(_ context.Context, id uuid.UUID, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, pointKey(id, modelName))
	return nil
}

func (m *Memory) DeleteByLayer(_ context.Context, tenantID string, layer int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	want := strconv.Itoa(layer)
	for k, p := range m.points {
		if p.tenantID == tenantID && p.metadata["layer"] == want {
			delete(m.points, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountVectors(_ context.Context, tenantID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.points {
		if p.tenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListIDs(_ context.Context, tenantID string, offset, pageSize int) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[uuid.UUID]struct{}{}
	var ids []uuid.UUID
	for _, p := range m.points {
		if p.tenantID != tenantID {
			continue
		}
		if _, ok := seen[p.id]; ok {
			continue
		}
		seen[p.id] = struct{}{}
		ids = append(ids, p.id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + pageSize
	if end > len(ids) {
		end = len(ids)
	}
	return ids[offset:end], nil
}

var _ Store = (*Memory)(nil)

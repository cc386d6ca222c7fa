package vector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/memoryfabric/agentic-memory/internal/errs"
)

// originalIDField carries the (memory_id, model_name) pair in the point
// payload, since points must be addressed by a Qdrant point UUID, not the
// composite key the rest of the system uses. Grounded directly on the
// teacher's qdrant_vector.go PAYLOAD_ID_FIELD approach.
const originalIDField = "_original_id"
const modelNameField = "_model_name"

// Qdrant is a gRPC-based Vector Store adapter, grounded on the teacher's
// internal/persistence/databases/qdrant_vector.go: deterministic
// UUID-from-name point ids via uuid.NewSHA1, ensure-collection-on-connect,
// and qdrant.Filter-built metadata matching.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     Metric
}

// NewQdrant connects to Qdrant over gRPC (default port 6334) and ensures
// the target collection exists with the requested vector size/metric.
func NewQdrant(dsn, collection string, dimensions int, metric Metric) (*Qdrant, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	portStr := parsed.Port()
	if portStr == "" {
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: port}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	q := &Qdrant{client: client, collection: collection, dimension: dimensions, metric: metric}
	if err := q.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return q, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch q.metric {
	case MetricL2:
		distance = qdrant.Distance_Euclid
	case MetricIP:
		distance = qdrant.Distance_Dot
	default:
		distance = qdrant.Distance_Cosine
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	})
}

func pointUUID(id uuid.UUID, modelName string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id.String()+"/"+modelName)).String()
}

func (q *Qdrant) Close() { q.client.Close() }

func (q *Qdrant) StoreVector(ctx context.Context, id uuid.UUID, modelName string, embedding []float32, tenantID string, metadata map[string]string) error {
	const op = "vector.Qdrant.StoreVector"
	payload := make(map[string]any, len(metadata)+3)
	for k, v := range metadata {
		payload[k] = v
	}
	payload["tenant_id"] = tenantID
	payload[originalIDField] = id.String()
	payload[modelNameField] = modelName

	vec := append([]float32(nil), embedding...)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointUUID(id, modelName)),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return errs.Unavailablef(op, "upsert point: %w", err)
	}
	return nil
}

func (q *Qdrant) BatchStore(ctx context.Context, items []BatchItem) error {
	points := make([]*qdrant.PointStruct, 0, len(items))
	for _, it := range items {
		payload := make(map[string]any, len(it.Metadata)+3)
		for k, v := range it.Metadata {
			payload[k] = v
		}
		payload["tenant_id"] = it.TenantID
		payload[originalIDField] = it.ID.String()
		payload[modelNameField] = it.ModelName
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointUUID(it.ID, it.ModelName)),
			Vectors: qdrant.NewVectorsDense(append([]float32(nil), it.Embedding...)),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: q.collection, Points: points})
	if err != nil {
		return errs.Unavailablef("vector.Qdrant.BatchStore", "batch upsert: %w", err)
	}
	return nil
}

func buildQdrantFilter(tenantID string, f Filter) *qdrant.Filter {
	must := []*qdrant.Condition{qdrant.NewMatch("tenant_id", tenantID)}
	if f.AgentID != "" {
		must = append(must, qdrant.NewMatch("agent_id", f.AgentID))
	}
	if f.Layer != nil {
		must = append(must, qdrant.NewMatch("layer", strconv.Itoa(*f.Layer)))
	}
	if f.Project != "" {
		must = append(must, qdrant.NewMatch("project", f.Project))
	}
	for _, tag := range f.Tags {
		must = append(must, qdrant.NewMatch("tags", tag))
	}
	return &qdrant.Filter{Must: must}
}

func (q *Qdrant) search(ctx context.Context, queryEmbedding []float32, tenantID string, f Filter, limit int) ([]*qdrant.ScoredPoint, error) {
	if limit <= 0 {
		limit = 10
	}
	l := uint64(limit)
	return q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(append([]float32(nil), queryEmbedding...)),
		Limit:          &l,
		Filter:         buildQdrantFilter(tenantID, f),
		WithPayload:    qdrant.NewWithPayload(true),
	})
}

func toResult(hit *qdrant.ScoredPoint) Result {
	var memoryID, modelName string
	if hit.Payload != nil {
		if v, ok := hit.Payload[originalIDField]; ok {
			memoryID = v.GetStringValue()
		}
		if v, ok := hit.Payload[modelNameField]; ok {
			modelName = v.GetStringValue()
		}
	}
	return Result{MemoryID: memoryID, ModelName: modelName, Score: float64(hit.Score)}
}

func (q *Qdrant) Search(ctx context.Context, queryEmbedding []float32, tenantID string, f Filter, limit int, scoreThreshold *float64, _ string) ([]Result, error) {
	hits, err := q.search(ctx, queryEmbedding, tenantID, f, limit)
	if err != nil {
		return nil, errs.Unavailablef("vector.Qdrant.Search", "query: %w", err)
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		if scoreThreshold != nil && float64(h.Score) < *scoreThreshold {
			continue
		}
		out = append(out, toResult(h))
	}
	return out, nil
}

func (q *Qdrant) SearchWithContradictionPenalty(ctx context.Context, queryEmbedding []float32, tenantID string, f Filter, limit int, dotThreshold, penaltyFactor float64) ([]Result, error) {
	// Qdrant's native Query API reports distance-metric scores, not raw
	// dot products, so the penalty test requires the vector itself; fetch
	// with vectors included and compute the dot product client-side.
	const op = "vector.Qdrant.SearchWithContradictionPenalty"
	if limit <= 0 {
		limit = 10
	}
	l := uint64(limit)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(append([]float32(nil), queryEmbedding...)),
		Limit:          &l,
		Filter:         buildQdrantFilter(tenantID, f),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, errs.Unavailablef(op, "query: %w", err)
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		r := toResult(h)
		if dense := h.GetVectors().GetVector().GetDense(); dense != nil {
			dot := rawDot(queryEmbedding, dense.GetData())
			if dot < dotThreshold {
				r.Score *= penaltyFactor
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (q *Qdrant) GetVector(ctx context.Context, id uuid.UUID, modelName string) ([]float32, error) {
	const op = "vector.Qdrant.GetVector"
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(pointUUID(id, modelName))},
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, errs.Unavailablef(op, "get point: %w", err)
	}
	if len(points) == 0 {
		return nil, errs.NotFoundf(op, "vector %s/%s not found", id, modelName)
	}
	dense := points[0].GetVectors().GetVector().GetDense()
	if dense == nil {
		return nil, errs.NotFoundf(op, "vector %s/%s has no dense vector", id, modelName)
	}
	return dense.GetData(), nil
}

func (q *Qdrant) DeleteVector(ctx context.Context, id uuid.UUID, modelName string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pointUUID(id, modelName))),
	})
	if err != nil {
		return errs.Unavailablef("vector.Qdrant.DeleteVector", "delete point: %w", err)
	}
	return nil
}

func (q *Qdrant) DeleteByLayer(ctx context.Context, tenantID string, layer int) (int, error) {
	const op = "vector.Qdrant.DeleteByLayer"
	filter := buildQdrantFilter(tenantID, Filter{Layer: &layer})
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return 0, errs.Unavailablef(op, "delete by filter: %w", err)
	}
	return 0, nil // Qdrant's filtered delete does not report a count.
}

func (q *Qdrant) CountVectors(ctx context.Context, tenantID string) (int, error) {
	const op = "vector.Qdrant.CountVectors"
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter:         buildQdrantFilter(tenantID, Filter{}),
	})
	if err != nil {
		return 0, errs.Unavailablef(op, "count: %w", err)
	}
	return int(n), nil
}

func (q *Qdrant) ListIDs(ctx context.Context, tenantID string, offset, pageSize int) ([]uuid.UUID, error) {
	const op = "vector.Qdrant.ListIDs"
	if pageSize <= 0 {
		pageSize = 100
	}
	limit := uint32(offset + pageSize)
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Filter:         buildQdrantFilter(tenantID, Filter{}),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, errs.Unavailablef(op, "scroll: %w", err)
	}
	if offset >= len(points) {
		return nil, nil
	}
	end := len(points)
	var out []uuid.UUID
	for _, p := range points[offset:end] {
		var idStr string
		if p.Payload != nil {
			if v, ok := p.Payload[originalIDField]; ok {
				idStr = v.GetStringValue()
			}
		}
		parsed, err := uuid.Parse(idStr)
		if err != nil {
			// legacy/non-UUID identifiers are skipped here, so the reconciler never sees them.
			continue
		}
		out = append(out, parsed)
	}
	return out, nil
}

var _ Store = (*Qdrant)(nil)

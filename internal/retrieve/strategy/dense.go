package strategy

import (
	"context"

	"github.com/memoryfabric/agentic-memory/internal/embedding"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
	"github.com/memoryfabric/agentic-memory/internal/persistence/vector"
	"github.com/memoryfabric/agentic-memory/internal/scoring"
)

// Dense embeds the query (prefixed for prefix-sensitive models) and
// searches the vector store, returning cosine scores (spec §4.3).
type Dense struct {
	embed     embedding.Provider
	vectors   vector.Store
	modelName string
}

// NewDense builds a dense-vector strategy over an embedding provider and
// vector store, scoped to one embedding model name.
func NewDense(e embedding.Provider, v vector.Store, modelName string) *Dense {
	return &Dense{embed: e, vectors: v, modelName: modelName}
}

func (*Dense) Name() string { return "dense" }

func toVectorFilter(tenantID string, f store.Filters) vector.Filter {
	vf := vector.Filter{TenantID: tenantID, AgentID: f.AgentID, Project: f.Project, Tags: f.TagsContain}
	if f.Layer != nil {
		l := int(*f.Layer)
		vf.Layer = &l
	}
	return vf
}

func (d *Dense) Run(ctx context.Context, tenantID, query string, filters store.Filters, limit int) ([]scoring.StrategyResult, error) {
	queryEmbedding, err := d.embed.EmbedText(ctx, query, embedding.TaskSearchQuery)
	if err != nil {
		return nil, err
	}
	hits, err := d.vectors.Search(ctx, queryEmbedding, tenantID, toVectorFilter(tenantID, filters), limit, nil, d.modelName)
	if err != nil {
		return nil, err
	}
	results := make([]scoring.StrategyResult, len(hits))
	for i, h := range hits {
		results[i] = scoring.StrategyResult{MemoryID: h.MemoryID, Rank: i + 1, RawScore: h.Score}
	}
	return results, nil
}

var _ Strategy = (*Dense)(nil)

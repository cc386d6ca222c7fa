package reflection

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/memoryfabric/agentic-memory/internal/clock"
	"github.com/memoryfabric/agentic-memory/internal/llm"
	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/obs"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
	"github.com/memoryfabric/agentic-memory/internal/persistence/vector"
)

// EmbeddingModelName is the fixed vector-space identifier reflection
// coherence lookups use, matching internal/engine's.
const EmbeddingModelName = "default"

// CycleSummary is the output of one reflection cycle (spec §4.9 step 4).
type CycleSummary struct {
	ReflectionsCreated   int
	MemoriesConsolidated int
	TokensSaved          int
}

// Engine runs scheduled or on-demand reflection cycles over a tenant's
// long-term memories.
type Engine struct {
	store   store.Store
	vectors vector.Store
	llm     llm.Provider
	clock   clock.Clock
	log     obs.Logger
}

// New builds a reflection Engine. llmProvider may be llm.NewMock() to run
// without a configured text-generation backend.
func New(s store.Store, v vector.Store, llmProvider llm.Provider, clk clock.Clock, log obs.Logger) *Engine {
	return &Engine{store: s, vectors: v, llm: llmProvider, clock: clk, log: log}
}

// RunCycle executes one reflection pass for (tenantID, agentID): it finds
// co-tagged clusters of eligible long-term memories, summarizes each into
// a REFLECTIVE memory, and prunes any reflection whose coherence falls
// below PruneConfidenceThreshold.
func (e *Engine) RunCycle(ctx context.Context, tenantID, agentID string) (CycleSummary, error) {
	episodic := model.LayerLongTermEpisodic
	semantic := model.LayerLongTermSemantic

	var candidates []*model.Record
	for _, layer := range []*model.Layer{&episodic, &semantic} {
		records, err := e.store.List(ctx, tenantID, store.Filters{AgentID: agentID, Layer: layer})
		if err != nil {
			return CycleSummary{}, err
		}
		candidates = append(candidates, records...)
	}

	clusters := findTagClusters(candidates)

	var summary CycleSummary
	now := e.clock.Now()
	for _, c := range clusters {
		score := coherence(ctx, e.vectors, EmbeddingModelName, c.members)
		if score < PruneConfidenceThreshold {
			e.log.Debug("reflection cluster pruned below confidence threshold", map[string]any{
				"tag": c.tag, "confidence": score,
			})
			continue
		}

		texts := make([]string, len(c.members))
		for i, m := range c.members {
			texts[i] = m.Content
		}
		text, err := e.llm.Summarize(ctx, texts)
		if err != nil {
			e.log.Warn("reflection summarize failed, skipping cluster", map[string]any{
				"tag": c.tag, "error": err.Error(),
			})
			continue
		}

		reflectionType := classify(texts)
		rec := &model.Record{
			ID:              uuid.New(),
			TenantID:        tenantID,
			AgentID:         agentID,
			Content:         text,
			Layer:           model.LayerReflective,
			Importance:      score,
			CreatedAt:       now,
			ModifiedAt:      now,
			Tags:            []string{c.tag, "reflection"},
			SourceMemoryIDs: sourceIDs(c),
			Version:         1,
			Metadata: model.Metadata{
				"reflection_type": model.NewString(reflectionType.String()),
				"confidence":      model.NewFloat(score),
			},
		}
		if err := e.store.Store(ctx, rec); err != nil {
			return summary, err
		}

		summary.ReflectionsCreated++
		summary.MemoriesConsolidated += len(c.members)
		if tokens, err := e.llm.CountTokens(ctx, strings.Join(texts, " ")); err == nil {
			saved, produced := tokens, 0
			if produced, err = e.llm.CountTokens(ctx, text); err == nil && produced < saved {
				summary.TokensSaved += saved - produced
			}
		}
	}

	return summary, nil
}

// classify picks a reflection type heuristically from the cluster's
// source content: an explicit disagreement signal marks CONTRADICTION,
// otherwise the default is PATTERN (a recurring topic across ≥5 sources).
func classify(texts []string) model.ReflectionType {
	for _, t := range texts {
		lower := strings.ToLower(t)
		if strings.Contains(lower, "however") || strings.Contains(lower, "contradicts") || strings.Contains(lower, "but actually") {
			return model.ReflectionContradiction
		}
	}
	return model.ReflectionPattern
}

// Package engine implements the Retrieval Engine (C11) and the memory
// read/write operations the external interface (spec §6) exposes:
// store_memory, get_memory, search_memories, update_policy. Grounded on
// the teacher's internal/rag/service package, which is the same shape of
// thing: a façade composing strategy fan-out, fusion, and a cache in
// front of a handful of ports.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/memoryfabric/agentic-memory/internal/cache"
	"github.com/memoryfabric/agentic-memory/internal/clock"
	"github.com/memoryfabric/agentic-memory/internal/config"
	"github.com/memoryfabric/agentic-memory/internal/embedding"
	"github.com/memoryfabric/agentic-memory/internal/errs"
	"github.com/memoryfabric/agentic-memory/internal/isolation"
	"github.com/memoryfabric/agentic-memory/internal/layer"
	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/obs"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
	"github.com/memoryfabric/agentic-memory/internal/persistence/vector"
	"github.com/memoryfabric/agentic-memory/internal/reconcile"
	"github.com/memoryfabric/agentic-memory/internal/reflection"
	"github.com/memoryfabric/agentic-memory/internal/retrieve/fusion"
	"github.com/memoryfabric/agentic-memory/internal/retrieve/policy"
	"github.com/memoryfabric/agentic-memory/internal/retrieve/strategy"
	"github.com/memoryfabric/agentic-memory/internal/scoring"
	"github.com/memoryfabric/agentic-memory/internal/sync"

	"github.com/google/uuid"
)

// DefaultSensoryTTL is applied to a sensory write that doesn't specify one
// (spec §4.2: "TTL mandatory" for sensory memories).
const DefaultSensoryTTL = 5 * time.Minute

// EmbeddingModelName tags every stored vector and dense-strategy search
// with a fixed model identifier; multi-model support is a documented
// non-goal (spec.md's non-goals exclude multi-model embedding
// federation), so one name is sufficient.
const EmbeddingModelName = "default"

// Engine wires the Memory Store, Vector Store, Cache, Embedding Provider,
// Policy Bandit, and Isolation Guard into the operations spec §6 exposes.
type Engine struct {
	store   store.Store
	vectors vector.Store
	cache   cache.Cache
	embed   embedding.Provider // nil disables dense retrieval and rerank
	bandit  *policy.Bandit
	guard   *isolation.Guard
	layers  *layer.Manager
	clock   clock.Clock
	log     obs.Logger
	metrics obs.Metrics
	cfg     config.RetrievalConfig
	cacheTTL time.Duration

	strategies []strategy.Strategy
	sf         singleflight.Group

	// Background services (spec §6's run_reflection_cycle, sync_with_peer,
	// reconcile_vectors): optional, attached after construction via
	// AttachBackgroundServices since they depend on collaborators (an LLM
	// provider, a peer transport) foreground retrieval doesn't need.
	reflection *reflection.Engine
	syncCoord  *sync.Coordinator
	reconciler *reconcile.Reconciler
}

// AttachBackgroundServices wires the optional background-task
// collaborators. Any argument may be nil to leave the corresponding
// operation unavailable (it returns an UNAVAILABLE error if called).
func (e *Engine) AttachBackgroundServices(refl *reflection.Engine, coord *sync.Coordinator, recon *reconcile.Reconciler) {
	e.reflection = refl
	e.syncCoord = coord
	e.reconciler = recon
}

// RunReflectionCycle runs one reflection pass (spec §6's
// run_reflection_cycle, C12).
func (e *Engine) RunReflectionCycle(ctx context.Context, tenantID, agentID string) (reflection.CycleSummary, error) {
	const op = "engine.Engine.RunReflectionCycle"
	if e.reflection == nil {
		return reflection.CycleSummary{}, errs.Unavailablef(op, "reflection engine not configured")
	}
	return e.reflection.RunCycle(ctx, tenantID, agentID)
}

// SyncWithPeer runs one sync pass against a peer (spec §6's
// sync_with_peer, C13).
func (e *Engine) SyncWithPeer(ctx context.Context, peerID, tenantID, agentID string) (sync.Log, error) {
	const op = "engine.Engine.SyncWithPeer"
	if e.syncCoord == nil {
		return sync.Log{}, errs.Unavailablef(op, "sync coordinator not configured")
	}
	return e.syncCoord.SyncWithPeer(ctx, peerID, tenantID, agentID)
}

// ReconcileVectors runs one consistency-reconciliation pass for a tenant
// (spec §6's reconcile_vectors, C14), returning the number of orphaned
// vectors removed.
func (e *Engine) ReconcileVectors(ctx context.Context, tenantID string) (int, error) {
	const op = "engine.Engine.ReconcileVectors"
	if e.reconciler == nil {
		return 0, errs.Unavailablef(op, "reconciler not configured")
	}
	return e.reconciler.Run(ctx, tenantID)
}

// Status is the output of GetStatus (spec §6's get_status).
type Status struct {
	ReflectionConfigured bool
	SyncConfigured       bool
	ReconcileConfigured  bool
	Strategies           []string
}

// GetStatus reports which optional background services are configured
// and which retrieval strategies are active.
func (e *Engine) GetStatus() Status {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name()
	}
	return Status{
		ReflectionConfigured: e.reflection != nil,
		SyncConfigured:       e.syncCoord != nil,
		ReconcileConfigured:  e.reconciler != nil,
		Strategies:           names,
	}
}

// New builds a Retrieval Engine. embed may be nil to disable dense
// retrieval and semantic rerank (the pipeline degrades to fulltext+BM25).
func New(
	s store.Store,
	v vector.Store,
	c cache.Cache,
	embed embedding.Provider,
	bandit *policy.Bandit,
	guard *isolation.Guard,
	layers *layer.Manager,
	clk clock.Clock,
	log obs.Logger,
	metrics obs.Metrics,
	cfg config.RetrievalConfig,
	cacheTTL time.Duration,
) *Engine {
	strategies := []strategy.Strategy{
		strategy.NewFullText(s),
		strategy.NewBM25(s),
	}
	if embed != nil && v != nil {
		strategies = append(strategies, strategy.NewDense(embed, v, EmbeddingModelName))
	}
	return &Engine{
		store: s, vectors: v, cache: c, embed: embed, bandit: bandit, guard: guard, layers: layers,
		clock: clk, log: log, metrics: metrics, cfg: cfg, cacheTTL: cacheTTL,
		strategies: strategies,
	}
}

// StoreRequest is the input to StoreMemory.
type StoreRequest struct {
	TenantID  string
	AgentID   string
	Project   string
	SessionID string
	Content   string
	Layer     model.Layer
	Importance float64
	Tags      []string
	TTL       time.Duration // only meaningful for LayerSensory
}

// StoreMemory persists a new memory record and, when an embedding
// provider and vector store are configured, its embedding.
func (e *Engine) StoreMemory(ctx context.Context, req StoreRequest) (*model.Record, error) {
	const op = "engine.Engine.StoreMemory"
	if strings.TrimSpace(req.Content) == "" {
		return nil, errs.InvalidArgumentf(op, "content must not be empty")
	}
	if req.TenantID == "" {
		return nil, errs.InvalidArgumentf(op, "tenant_id is required")
	}

	now := e.clock.Now()
	r := &model.Record{
		ID:         uuid.New(),
		TenantID:   req.TenantID,
		AgentID:    req.AgentID,
		Project:    req.Project,
		SessionID:  req.SessionID,
		Content:    req.Content,
		Layer:      req.Layer,
		Importance: req.Importance,
		CreatedAt:  now,
		ModifiedAt: now,
		Tags:       req.Tags,
		Version:    1,
	}
	if r.Layer == model.LayerSensory {
		ttl := req.TTL
		if ttl <= 0 {
			ttl = DefaultSensoryTTL
		}
		r.ExpiresAt = now.Add(ttl)
	}

	if e.layers != nil {
		if err := e.layers.EnforceCapacity(ctx, req.TenantID, r.Layer, 1); err != nil {
			return nil, err
		}
	}

	if err := e.store.Store(ctx, r); err != nil {
		return nil, err
	}

	if e.embed != nil && e.vectors != nil {
		vec, err := e.embed.EmbedText(ctx, req.Content, embedding.TaskSearchDocument)
		if err != nil {
			return nil, errs.Unavailablef(op, "embed on store: %w", err)
		}
		if err := e.vectors.StoreVector(ctx, r.ID, EmbeddingModelName, vec, req.TenantID, map[string]string{
			"agent_id": req.AgentID, "layer": fmt.Sprintf("%d", int(r.Layer)), "project": req.Project,
		}); err != nil {
			return nil, errs.Unavailablef(op, "store vector: %w", err)
		}
	}

	return r, nil
}

// GetMemory fetches a memory by id, recording the access (access_count
// and last_accessed_at) that feeds recency decay and consolidation
// thresholds (spec §4.1, §4.2).
func (e *Engine) GetMemory(ctx context.Context, tenantID string, id uuid.UUID) (*model.Record, error) {
	now := e.clock.Now()
	return e.store.Update(ctx, tenantID, id, func(r *model.Record) {
		r.AccessCount++
		r.LastAccessedAt = now
	})
}

// SearchRequest is the input to Search.
type SearchRequest struct {
	TenantID  string
	AgentID   string
	SessionID string
	Project   string
	Query     string
	Limit     int
	Filters   store.Filters
}

// Trace documents how a search result was produced (spec §4.4's heuristic
// override must be documented in the trace; ordering guarantee requires
// the inputs that determined order to be inspectable).
type Trace struct {
	CacheHit        bool
	ArmUsed         model.ArmKey
	HeuristicUsed   bool
	HeuristicReason string
	StrategyCounts  map[string]int
}

// SearchResult is the output of Search.
type SearchResult struct {
	Memories []*model.Record
	Trace    Trace
}

func cacheKey(req SearchRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "t=%s|a=%s|s=%s|p=%s|q=%s|l=%d", req.TenantID, req.AgentID, req.SessionID, req.Project, req.Query, req.Limit)
	f := req.Filters
	if f.Layer != nil {
		fmt.Fprintf(&b, "|layer=%d", *f.Layer)
	}
	if f.MinImportance != nil {
		fmt.Fprintf(&b, "|minimp=%f", *f.MinImportance)
	}
	tags := append([]string(nil), f.TagsContain...)
	sort.Strings(tags)
	fmt.Fprintf(&b, "|tags=%s|agent=%s|proj=%s|sess=%s|notexp=%t", strings.Join(tags, ","), f.AgentID, f.Project, f.SessionID, f.NotExpired)
	sum := sha256.Sum256([]byte(b.String()))
	return "search:" + hex.EncodeToString(sum[:])
}

// Search executes the hybrid retrieval pipeline of spec §4.5.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	const op = "engine.Engine.Search"
	if req.Limit <= 0 {
		req.Limit = e.cfg.DefaultLimit
	}
	key := cacheKey(req)

	if e.cache != nil {
		if cached, ok, err := e.cache.Get(ctx, key); err == nil && ok {
			ids := strings.Split(cached, ",")
			memories, err := e.fetchOrdered(ctx, req.TenantID, ids)
			if err == nil {
				return &SearchResult{Memories: memories, Trace: Trace{CacheHit: true}}, nil
			}
		}
	}

	v, err, _ := e.sf.Do(key, func() (interface{}, error) {
		return e.search(ctx, req)
	})
	if err != nil {
		return nil, errs.Wrap(op, errs.Internal, err)
	}
	result := v.(*SearchResult)

	if e.cache != nil {
		ids := make([]string, len(result.Memories))
		for i, m := range result.Memories {
			ids[i] = m.ID.String()
		}
		ttl := e.cacheTTL
		if ttl <= 0 {
			ttl = 300 * time.Second
		}
		_ = e.cache.Set(ctx, key, strings.Join(ids, ","), ttl)
	}
	return result, nil
}

func (e *Engine) fetchOrdered(ctx context.Context, tenantID string, ids []string) ([]*model.Record, error) {
	out := make([]*model.Record, 0, len(ids))
	for _, idStr := range ids {
		if idStr == "" {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		r, err := e.store.FetchByID(ctx, tenantID, id)
		if err != nil {
			continue // a cached id that's since been deleted is simply dropped
		}
		out = append(out, r)
	}
	return out, nil
}

func (e *Engine) search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	decision := e.bandit.Select(req.Query)
	weights := decision.Weights

	candidateLimit := req.Limit * fusion.CandidateCapMultiplier
	strategyResults := strategy.FanOut(ctx, e.strategies, req.TenantID, req.Query, req.Filters, candidateLimit, e.cfg.StrategyTimeout, e.log)

	strategyCounts := make(map[string]int, len(e.strategies))
	for i, s := range e.strategies {
		strategyCounts[s.Name()] = len(strategyResults[i])
	}

	fused := fusion.Fuse(fusion.MethodWeightedSum, strategyResults, weights)

	records, err := e.resolveRecords(ctx, req.TenantID, fused)
	if err != nil {
		return nil, err
	}

	if e.embed != nil {
		queryVec, err := e.embed.EmbedText(ctx, req.Query, embedding.TaskSearchQuery)
		if err != nil {
			e.log.Warn("rerank embed failed, skipping rerank", map[string]any{"error": err.Error()})
		} else {
			byID := make(map[string]*model.Record, len(records))
			for _, r := range records {
				byID[r.ID.String()] = r
			}
			if reranked, err := fusion.Rerank(ctx, fused, byID, e.embed, queryVec); err == nil {
				fused = reranked
				records = reorderByFused(records, fused)
			}
		}
	}

	scope := isolation.Scope{TenantID: req.TenantID, AgentID: req.AgentID, SessionID: req.SessionID, Project: req.Project}
	records = e.guard.Filter(scope, records)

	if len(records) > req.Limit {
		records = records[:req.Limit]
	}

	return &SearchResult{
		Memories: records,
		Trace: Trace{
			ArmUsed:         decision.Arm,
			HeuristicUsed:   decision.HeuristicUsed,
			HeuristicReason: decision.HeuristicReason,
			StrategyCounts:  strategyCounts,
		},
	}, nil
}

// resolveRecords fetches the full record for each fused id, in fused
// order, dropping ids that no longer resolve (e.g. deleted since the
// vector/text index was last touched).
func (e *Engine) resolveRecords(ctx context.Context, tenantID string, fused []scoring.Fused) ([]*model.Record, error) {
	out := make([]*model.Record, 0, len(fused))
	for _, f := range fused {
		id, err := uuid.Parse(f.MemoryID)
		if err != nil {
			continue
		}
		r, err := e.store.FetchByID(ctx, tenantID, id)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// UpdatePolicy records a reward for the arm used on a prior search,
// feeding the bandit's sliding-window reward estimate and drift check.
func (e *Engine) UpdatePolicy(arm model.ArmKey, reward float64) error {
	const op = "engine.Engine.UpdatePolicy"
	if reward < 0 || reward > 1 {
		return errs.InvalidArgumentf(op, "reward must be in [0,1], got %f", reward)
	}
	e.bandit.Reward(arm, reward)
	return nil
}

// reorderByFused re-sorts records to match fused's id order, used after
// Rerank has re-sorted the top window in place.
func reorderByFused(records []*model.Record, fused []scoring.Fused) []*model.Record {
	byID := make(map[string]*model.Record, len(records))
	for _, r := range records {
		byID[r.ID.String()] = r
	}
	out := make([]*model.Record, 0, len(fused))
	for _, f := range fused {
		if r, ok := byID[f.MemoryID]; ok {
			out = append(out, r)
		}
	}
	return out
}

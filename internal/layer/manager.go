// Package layer implements the Layer Manager (C6): per-layer capacity, TTL,
// and promotion-trigger enforcement over the Memory Store port. No teacher
// file owns an equivalent concept directly; grounded on the general
// capacity/eviction shape of the teacher's persistence adapters (bulk
// delete by predicate) generalized into policy-driven eviction.
package layer

import (
	"context"
	"sort"
	"time"

	"github.com/memoryfabric/agentic-memory/internal/clock"
	"github.com/memoryfabric/agentic-memory/internal/errs"
	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/obs"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
)

// Policy holds one layer's capacity and promotion parameters.
type Policy struct {
	// Capacity is the maximum number of records the layer may hold. nil
	// means no policy-configured limit (unbounded); a non-nil capacity of
	// exactly 0 means the layer accepts no records at all, and writes to
	// it must fail with RESOURCE_EXHAUSTED rather than being silently
	// allowed (spec §8's literal boundary: "Capacity = 0 sensory layer
	// refuses writes with RESOURCE_EXHAUSTED"). Use capacityOf to build
	// one.
	Capacity *int
}

// capacityOf returns a Policy capacity pointer for n, distinguishing a
// configured zero from "no policy" (nil).
func capacityOf(n int) *int { return &n }

// DefaultPolicies returns the default policy set per layer (spec §4.2's "typical size"
// column informs orders of magnitude, not hard limits; capacity is
// deployment-tunable so these are starting points, not constants).
func DefaultPolicies() map[model.Layer]Policy {
	return map[model.Layer]Policy{
		model.LayerSensory:          {Capacity: capacityOf(500)},
		model.LayerWorking:          {Capacity: capacityOf(2000)},
		model.LayerLongTermEpisodic: {Capacity: nil},
		model.LayerLongTermSemantic: {Capacity: nil},
		model.LayerReflective:       {Capacity: capacityOf(5000)},
		model.LayerArchived:         {Capacity: nil},
	}
}

// Manager enforces capacity, TTL expiry, and attention-based promotion for
// each layer (spec §4.2).
type Manager struct {
	store    store.Store
	clock    clock.Clock
	log      obs.Logger
	policies map[model.Layer]Policy
}

// New builds a Layer Manager over a Memory Store.
func New(s store.Store, c clock.Clock, log obs.Logger, policies map[model.Layer]Policy) *Manager {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Manager{store: s, clock: c, log: log, policies: policies}
}

// evictionLess implements spec §4.2's eviction ordering: minimize
// (importance, -access_count, created_at) lexicographically.
func evictionLess(a, b *model.Record) bool {
	if a.Importance != b.Importance {
		return a.Importance < b.Importance
	}
	if a.AccessCount != b.AccessCount {
		return a.AccessCount > b.AccessCount // higher access_count sorts earlier (evicted first)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// EnforceCapacity evicts the lowest-priority memories in a layer until it
// fits within the configured capacity, or returns RESOURCE_EXHAUSTED if the
// bound cannot be satisfied (spec §4.2's failure semantics: capacity
// overflow must not silently drop new writes; either evict to satisfy the
// bound or fail explicitly).
//
// pending is the number of not-yet-persisted records about to be added to
// the layer (0 for the periodic Cleanup pass, which only reconciles
// records already on disk; 1 when called synchronously from StoreMemory
// before a new write lands, so capacity is checked, and room made, ahead
// of the write rather than after it). A policy capacity of exactly 0 means
// the layer accepts no records at all: any pending write fails immediately
// with RESOURCE_EXHAUSTED, since no amount of eviction can open room for
// it (spec §8: "Capacity = 0 sensory layer refuses writes").
func (m *Manager) EnforceCapacity(ctx context.Context, tenantID string, l model.Layer, pending int) error {
	const op = "layer.Manager.EnforceCapacity"
	policy, ok := m.policies[l]
	if !ok || policy.Capacity == nil {
		return nil
	}
	capacity := *policy.Capacity
	if capacity <= 0 && pending > 0 {
		return errs.ResourceExhaustedf(op, "layer %s has zero capacity, cannot accept new writes", l.String())
	}

	layer := l
	records, err := m.store.List(ctx, tenantID, store.Filters{Layer: &layer})
	if err != nil {
		return errs.Unavailablef(op, "list layer: %w", err)
	}
	if len(records)+pending <= capacity {
		return nil
	}

	sort.Slice(records, func(i, j int) bool { return evictionLess(records[i], records[j]) })
	overflow := len(records) + pending - capacity
	if overflow > len(records) {
		overflow = len(records)
	}
	toEvict := records[:overflow]

	for _, r := range toEvict {
		if err := m.store.Delete(ctx, tenantID, r.ID); err != nil {
			return errs.ResourceExhaustedf(op, "evict over capacity in layer %s: %w", l.String(), err)
		}
	}
	if m.log != nil {
		m.log.Info("layer_capacity_evicted", map[string]any{"tenant_id": tenantID, "layer": l.String(), "count": len(toEvict)})
	}

	if len(records)-overflow+pending > capacity {
		return errs.ResourceExhaustedf(op, "cannot satisfy capacity for layer %s after eviction", l.String())
	}
	return nil
}

// ExpireSensory removes sensory records whose expires_at has passed,
// implementing spec §4.2's idempotent TTL expiry: reading an expired
// sensory memory must not return it, and the read should trigger removal.
func (m *Manager) ExpireSensory(ctx context.Context, tenantID string) (int, error) {
	const op = "layer.Manager.ExpireSensory"
	sensory := model.LayerSensory
	records, err := m.store.List(ctx, tenantID, store.Filters{Layer: &sensory})
	if err != nil {
		return 0, errs.Unavailablef(op, "list sensory: %w", err)
	}
	now := m.clock.Now()
	n := 0
	for _, r := range records {
		if r.HasExpiry() && !r.ExpiresAt.After(now) {
			if err := m.store.Delete(ctx, tenantID, r.ID); err != nil {
				return n, errs.Unavailablef(op, "delete expired sensory: %w", err)
			}
			n++
		}
	}
	return n, nil
}

// PromoteAttention promotes sensory memories whose importance has reached
// the attention threshold to Working (spec §4.2's optional attention-based
// promotion, triggered at cleanup time).
func (m *Manager) PromoteAttention(ctx context.Context, tenantID string) (int, error) {
	const op = "layer.Manager.PromoteAttention"
	sensory := model.LayerSensory
	records, err := m.store.List(ctx, tenantID, store.Filters{Layer: &sensory})
	if err != nil {
		return 0, errs.Unavailablef(op, "list sensory: %w", err)
	}
	n := 0
	for _, r := range records {
		if r.Importance < 0.5 {
			continue
		}
		_, err := m.store.Update(ctx, tenantID, r.ID, func(rec *model.Record) {
			rec.Layer = model.LayerWorking
			rec.ExpiresAt = time.Time{}
		})
		if err != nil {
			return n, errs.Unavailablef(op, "promote sensory: %w", err)
		}
		n++
	}
	return n, nil
}

// Cleanup runs one pass of TTL expiry, attention promotion, and capacity
// enforcement across the layers that need it; intended to be invoked
// periodically by a background scheduler (spec §5's cooperative tasks).
func (m *Manager) Cleanup(ctx context.Context, tenantID string) error {
	if _, err := m.ExpireSensory(ctx, tenantID); err != nil {
		return err
	}
	if _, err := m.PromoteAttention(ctx, tenantID); err != nil {
		return err
	}
	for l := range m.policies {
		if err := m.EnforceCapacity(ctx, tenantID, l, 0); err != nil {
			return err
		}
	}
	return nil
}

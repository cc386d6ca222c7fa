// Package consolidation implements the Consolidation FSM (C7): the
// deterministic layer-transition rules of spec §4.2 and the Bayesian
// confidence update applied when new evidence arrives for a semantic
// memory. Grounded on the teacher's pattern of small, pure decision
// functions tested in isolation (e.g. internal/rag's chunk-scoring
// helpers) rather than any single teacher file, since the teacher has no
// layered-memory concept of its own.
package consolidation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/memoryfabric/agentic-memory/internal/clock"
	"github.com/memoryfabric/agentic-memory/internal/errs"
	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/obs"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
)

const confidenceKey = "confidence"

// Thresholds holds the transition parameters of spec §4.2, tunable for
// tests but defaulting to the spec's literal values.
type Thresholds struct {
	WorkingToEpisodicMinAccess    int64
	WorkingToEpisodicMinImportance float64
	WorkingToEpisodicMinAge       time.Duration

	EpisodicToSemanticMinAccess    int64
	EpisodicToSemanticMinImportance float64

	ArchiveBelowImportance float64
}

// DefaultThresholds returns spec §4.2's literal transition thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WorkingToEpisodicMinAccess:      2,
		WorkingToEpisodicMinImportance:  0.6,
		WorkingToEpisodicMinAge:         10 * time.Minute,
		EpisodicToSemanticMinAccess:     3,
		EpisodicToSemanticMinImportance: 0.7,
		ArchiveBelowImportance:          0.1,
	}
}

// FSM evaluates and applies layer transitions over the Memory Store port.
type FSM struct {
	store      store.Store
	clock      clock.Clock
	log        obs.Logger
	thresholds Thresholds
}

// New builds a Consolidation FSM.
func New(s store.Store, c clock.Clock, log obs.Logger, thresholds Thresholds) *FSM {
	return &FSM{store: s, clock: c, log: log, thresholds: thresholds}
}

// NextLayer returns the layer r should transition to given the current
// clock, or r.Layer unchanged if no transition applies. Transitions are
// evaluated in most-specific-first order; only one transition fires per
// call (consolidation is periodic, so a record crosses the manifold over
// successive passes, matching spec §4.2's "evaluated periodically and at
// access" wording).
func (f *FSM) NextLayer(r *model.Record, now time.Time) model.Layer {
	t := f.thresholds
	switch r.Layer {
	case model.LayerWorking:
		age := now.Sub(r.CreatedAt)
		if r.AccessCount >= t.WorkingToEpisodicMinAccess &&
			r.Importance >= t.WorkingToEpisodicMinImportance &&
			age >= t.WorkingToEpisodicMinAge {
			return model.LayerLongTermEpisodic
		}
	case model.LayerLongTermEpisodic:
		if r.Importance < t.ArchiveBelowImportance {
			return model.LayerArchived
		}
		if r.AccessCount >= t.EpisodicToSemanticMinAccess &&
			r.Importance >= t.EpisodicToSemanticMinImportance {
			return model.LayerLongTermSemantic
		}
	case model.LayerLongTermSemantic:
		if r.Importance < t.ArchiveBelowImportance {
			return model.LayerArchived
		}
	}
	return r.Layer
}

// Sweep applies NextLayer to every non-terminal, non-sensory record in a
// tenant and persists the transitions that actually change layer. Sensory
// and Reflective are excluded: sensory expiry/promotion is the Layer
// Manager's job, and Reflective memories only arise from the Reflection
// Engine, never from this sweep.
func (f *FSM) Sweep(ctx context.Context, tenantID string) (int, error) {
	const op = "consolidation.FSM.Sweep"
	now := f.clock.Now()
	transitioned := 0

	// Most-advanced layer first, so a record moved forward in this pass is
	// not listed again under its new layer until the next Sweep.
	for _, layer := range []model.Layer{model.LayerLongTermSemantic, model.LayerLongTermEpisodic, model.LayerWorking} {
		l := layer
		records, err := f.store.List(ctx, tenantID, store.Filters{Layer: &l})
		if err != nil {
			return transitioned, errs.Unavailablef(op, "list layer %s: %w", l.String(), err)
		}
		for _, r := range records {
			next := f.NextLayer(r, now)
			if next == r.Layer {
				continue
			}
			id := r.ID
			_, err := f.store.Update(ctx, tenantID, id, func(rec *model.Record) {
				rec.Layer = next
			})
			if err != nil {
				return transitioned, errs.Unavailablef(op, "transition %s: %w", id, err)
			}
			transitioned++
			if f.log != nil {
				f.log.Info("consolidation_transition", map[string]any{
					"tenant_id": tenantID, "memory_id": id.String(),
					"from": r.Layer.String(), "to": next.String(),
				})
			}
		}
	}
	return transitioned, nil
}

// BayesianUpdate applies spec §4.2's confidence update for new evidence
// arriving against a semantic memory: P(E|H)=0.9·e, P(E|¬H)=0.1,
// posterior = P(E|H)·P(H) / (P(E|H)·P(H) + P(E|¬H)·(1−P(H))).
// evidenceStrength must be in [0,1]; prior must be in [0,1].
func BayesianUpdate(prior, evidenceStrength float64) float64 {
	pEH := 0.9 * evidenceStrength
	pENotH := 0.1
	numerator := pEH * prior
	denominator := numerator + pENotH*(1-prior)
	if denominator == 0 {
		return prior
	}
	return numerator / denominator
}

// confidenceOf reads the record's current confidence from metadata,
// defaulting to 0.5 (maximally uncertain prior) when absent.
func confidenceOf(r *model.Record) float64 {
	if r.Metadata == nil {
		return 0.5
	}
	v, ok := r.Metadata[confidenceKey]
	if !ok || v.Kind != model.KindFloat {
		return 0.5
	}
	return v.Flt
}

// ApplyEvidence updates a semantic memory's confidence in light of new
// evidence and persists it, returning the posterior. Only meaningful for
// LONG_TERM_SEMANTIC memories; other layers return INVALID_ARGUMENT since
// the update is defined over a semantic belief, not an episodic trace.
func (f *FSM) ApplyEvidence(ctx context.Context, tenantID string, memoryID uuid.UUID, evidenceStrength float64) (float64, error) {
	const op = "consolidation.FSM.ApplyEvidence"
	if evidenceStrength < 0 || evidenceStrength > 1 {
		return 0, errs.InvalidArgumentf(op, "evidence_strength must be in [0,1]")
	}

	r, err := f.store.FetchByID(ctx, tenantID, memoryID)
	if err != nil {
		return 0, err
	}
	if r.Layer != model.LayerLongTermSemantic {
		return 0, errs.InvalidArgumentf(op, "memory %s is not LONG_TERM_SEMANTIC", memoryID)
	}

	posterior := BayesianUpdate(confidenceOf(r), evidenceStrength)
	_, err = f.store.Update(ctx, tenantID, memoryID, func(rec *model.Record) {
		if rec.Metadata == nil {
			rec.Metadata = model.Metadata{}
		}
		rec.Metadata[confidenceKey] = model.NewFloat(posterior)
	})
	if err != nil {
		return 0, errs.Unavailablef(op, "persist posterior: %w", err)
	}
	return posterior, nil
}

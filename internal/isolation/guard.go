// Package isolation implements the Tenant Isolation Guard (C3): a
// defensive post-retrieval filter that enforces tenant/agent/session/
// project separation independently of whatever ACLs the storage backends
// apply themselves (spec §4.6). It is deliberately redundant with
// adapter-level filtering — "both layers must hold".
package isolation

import (
	"sync/atomic"

	"github.com/memoryfabric/agentic-memory/internal/model"
	"github.com/memoryfabric/agentic-memory/internal/obs"
)

// Scope is the expected ownership a candidate list must match. Agent,
// Session, and Project are optional: an empty string means "don't check
// this field".
type Scope struct {
	TenantID  string
	AgentID   string
	SessionID string
	Project   string
}

// matches reports whether r belongs to the scope.
func (s Scope) matches(r *model.Record) bool {
	if r.TenantID != s.TenantID {
		return false
	}
	if s.AgentID != "" && r.AgentID != s.AgentID {
		return false
	}
	if s.SessionID != "" && r.SessionID != s.SessionID {
		return false
	}
	if s.Project != "" && r.Project != s.Project {
		return false
	}
	return true
}

// Guard filters candidate lists to the expected scope and counts leaks: a
// leak is a candidate a lower layer should never have returned.
type Guard struct {
	strict bool
	log    obs.Logger
	leaks  atomic.Int64
}

// New constructs a Guard. In strict mode, every leak is logged at warn
// level in addition to being counted.
func New(log obs.Logger, strict bool) *Guard {
	if log == nil {
		log = obs.NoopLogger{}
	}
	return &Guard{strict: strict, log: log}
}

// Filter returns only the records matching scope, incrementing the leak
// counter (and, in strict mode, logging) for every record dropped.
func (g *Guard) Filter(scope Scope, candidates []*model.Record) []*model.Record {
	out := make([]*model.Record, 0, len(candidates))
	for _, r := range candidates {
		if scope.matches(r) {
			out = append(out, r)
			continue
		}
		g.leaks.Add(1)
		if g.strict {
			g.log.Warn("isolation guard dropped leaked candidate", map[string]any{
				"memory_id":       r.ID.String(),
				"expected_tenant": scope.TenantID,
				"got_tenant":      r.TenantID,
				"expected_agent":  scope.AgentID,
				"got_agent":       r.AgentID,
			})
		}
	}
	return out
}

// LeakCount returns the cumulative number of candidates dropped for
// violating the expected scope since the guard was constructed.
func (g *Guard) LeakCount() int64 {
	return g.leaks.Load()
}

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/memoryfabric/agentic-memory/internal/errs"
)

// Layer is one of the four cognitive storage classes a memory progresses
// through (spec §3, §4.2).
type Layer int

const (
	LayerSensory Layer = iota
	LayerWorking
	LayerLongTermEpisodic
	LayerLongTermSemantic
	LayerReflective
	LayerArchived
)

func (l Layer) String() string {
	switch l {
	case LayerSensory:
		return "SENSORY"
	case LayerWorking:
		return "WORKING"
	case LayerLongTermEpisodic:
		return "LONG_TERM_EPISODIC"
	case LayerLongTermSemantic:
		return "LONG_TERM_SEMANTIC"
	case LayerReflective:
		return "REFLECTIVE"
	case LayerArchived:
		return "ARCHIVED"
	default:
		return "UNKNOWN"
	}
}

// IsLongTerm reports whether the layer is one of the two long-term classes.
func (l Layer) IsLongTerm() bool {
	return l == LayerLongTermEpisodic || l == LayerLongTermSemantic
}

// Record is the atomic unit of the memory store (spec §3).
type Record struct {
	ID uuid.UUID

	TenantID  string
	AgentID   string
	Project   string
	SessionID string

	Content string

	Layer      Layer
	Importance float64

	AccessCount    int64
	LastAccessedAt time.Time
	CreatedAt      time.Time
	ModifiedAt     time.Time

	// ExpiresAt is only meaningful for LayerSensory; zero value means unset.
	ExpiresAt time.Time

	Tags     []string
	Metadata Metadata

	// SourceMemoryIDs is populated for REFLECTIVE memories: the ≥2 source
	// memories the reflection was derived from (spec §3).
	SourceMemoryIDs []uuid.UUID

	// Version is bumped on every mutation; used for sync (spec §4.7, §5).
	Version int64
}

// HasExpiry reports whether ExpiresAt has been set.
func (r *Record) HasExpiry() bool { return !r.ExpiresAt.IsZero() }

// Expired reports whether the record's expiry, if any, is in the past
// relative to now.
func (r *Record) Expired(now time.Time) bool {
	return r.HasExpiry() && !r.ExpiresAt.After(now)
}

// Validate enforces the invariants of spec §3 that are cheap to check
// locally (cross-record invariants like reflective source count ≥2 are
// checked here too, since they only need the record itself).
func (r *Record) Validate() error {
	const op = "model.Record.Validate"
	if r.AccessCount < 0 {
		return errs.InvalidArgumentf(op, "access_count must be >= 0")
	}
	if r.Importance < 0 || r.Importance > 1 {
		return errs.InvalidArgumentf(op, "importance must be in [0,1]")
	}
	if r.ModifiedAt.Before(r.CreatedAt) {
		return errs.InvalidArgumentf(op, "modified_at must be >= created_at")
	}
	if r.Layer == LayerSensory && !r.HasExpiry() {
		return errs.InvalidArgumentf(op, "sensory record must have expires_at")
	}
	if r.Layer == LayerReflective {
		distinct := map[uuid.UUID]struct{}{}
		for _, id := range r.SourceMemoryIDs {
			distinct[id] = struct{}{}
		}
		if len(distinct) < 2 {
			return errs.InvalidArgumentf(op, "reflective record must reference at least two distinct source memories")
		}
	}
	return nil
}

// Clone returns a copy of the record with its own Tags, SourceMemoryIDs and
// metadata map; nested List and Map metadata values are shared (see
// Metadata.Clone).
func (r *Record) Clone() *Record {
	cp := *r
	cp.Tags = append([]string(nil), r.Tags...)
	cp.Metadata = r.Metadata.Clone()
	cp.SourceMemoryIDs = append([]uuid.UUID(nil), r.SourceMemoryIDs...)
	return &cp
}

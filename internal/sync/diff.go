// Package sync implements the Sync Coordinator (C13, spec §4.7): peer
// handshake, diff computation, conflict detection and resolution, and an
// encrypted wire envelope for the diff payload. Grounded on the teacher's
// internal/rag package's general request/response client shape; the
// diff/merge logic itself has no teacher analogue and is built directly
// from the component design.
package sync

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/memoryfabric/agentic-memory/internal/model"
)

// ChangeKind classifies one memory's status in a diff (spec §4.7).
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Created
	Deleted
	Modified
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "CREATED"
	case Deleted:
		return "DELETED"
	case Modified:
		return "MODIFIED"
	default:
		return "UNCHANGED"
	}
}

// Change is one entry of a Diff: a memory id plus its local/remote state
// (either may be nil for CREATED/DELETED) and whether the MODIFIED
// entries also constitute a conflict.
type Change struct {
	ID       uuid.UUID
	Kind     ChangeKind
	Local    *model.Record
	Remote   *model.Record
	Conflict bool
}

// Diff is the four-bucket comparison of spec §4.7, partitioned by
// ChangeKind; Changes is sorted by id for deterministic iteration.
type Diff struct {
	Changes []Change
}

// ConflictGap is the minimum modified_at separation (spec §4.7: "> 1s
// apart") below which two otherwise-differing sides are NOT flagged as a
// conflict (clock skew / near-simultaneous writes are treated as the same
// edit for conflict purposes, last-write-wins still applies).
const ConflictGap = 1 * time.Second

// Compute diffs local against remote memory lists for one (tenant, agent)
// pair.
func Compute(local, remote []*model.Record, conflictGap time.Duration) Diff {
	if conflictGap <= 0 {
		conflictGap = ConflictGap
	}
	localByID := make(map[uuid.UUID]*model.Record, len(local))
	for _, r := range local {
		localByID[r.ID] = r
	}
	remoteByID := make(map[uuid.UUID]*model.Record, len(remote))
	for _, r := range remote {
		remoteByID[r.ID] = r
	}

	ids := make(map[uuid.UUID]struct{}, len(local)+len(remote))
	for id := range localByID {
		ids[id] = struct{}{}
	}
	for id := range remoteByID {
		ids[id] = struct{}{}
	}

	var changes []Change
	for id := range ids {
		l, hasLocal := localByID[id]
		r, hasRemote := remoteByID[id]
		switch {
		case hasLocal && !hasRemote:
			changes = append(changes, Change{ID: id, Kind: Deleted, Local: l})
		case !hasLocal && hasRemote:
			changes = append(changes, Change{ID: id, Kind: Created, Remote: r})
		default:
			if fieldsDiffer(l, r) {
				conflict := bothChangedSinceSync(l, r, conflictGap)
				changes = append(changes, Change{ID: id, Kind: Modified, Local: l, Remote: r, Conflict: conflict})
			} else {
				changes = append(changes, Change{ID: id, Kind: Unchanged, Local: l, Remote: r})
			}
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].ID.String() < changes[j].ID.String() })
	return Diff{Changes: changes}
}

// fieldsDiffer reports whether any of {content, importance, tags,
// metadata, version} differ between local and remote (spec §4.7's
// MODIFIED-bucket definition).
func fieldsDiffer(l, r *model.Record) bool {
	if l.Content != r.Content || l.Importance != r.Importance || l.Version != r.Version {
		return true
	}
	if !tagsEqual(l.Tags, r.Tags) {
		return true
	}
	if !metadataEqual(l.Metadata, r.Metadata) {
		return true
	}
	return false
}

func tagsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func metadataEqual(a, b model.Metadata) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// bothChangedSinceSync reports whether a MODIFIED pair also qualifies as
// a conflict: both sides' modified_at timestamps differ by more than
// conflictGap (spec §4.7). fieldsDiffer having already returned true
// satisfies the "at least one compared field differs" half of the rule.
func bothChangedSinceSync(l, r *model.Record, conflictGap time.Duration) bool {
	gap := l.ModifiedAt.Sub(r.ModifiedAt)
	if gap < 0 {
		gap = -gap
	}
	return gap > conflictGap
}

// FilterByKind returns the subset of a Diff's changes matching kind.
func (d Diff) FilterByKind(kind ChangeKind) []Change {
	var out []Change
	for _, c := range d.Changes {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Conflicts returns every MODIFIED change flagged as a conflict.
func (d Diff) Conflicts() []Change {
	var out []Change
	for _, c := range d.Changes {
		if c.Kind == Modified && c.Conflict {
			out = append(out, c)
		}
	}
	return out
}

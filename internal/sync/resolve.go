package sync

import (
	"sort"

	"github.com/memoryfabric/agentic-memory/internal/errs"
	"github.com/memoryfabric/agentic-memory/internal/model"
)

// Strategy names a conflict-resolution policy (spec §4.7).
type Strategy int

const (
	LastWriteWins Strategy = iota
	KeepLocal
	KeepRemote
	FieldMerge
	Manual
)

// Resolution is the outcome of resolving one conflicting Change: either a
// merged record to apply, or Manual (Applied=false) surfacing both sides
// for the caller to handle.
type Resolution struct {
	Applied bool
	Record  *model.Record
	Local   *model.Record
	Remote  *model.Record
}

// Resolve applies strategy to a MODIFIED, conflicting Change. All
// successful merges bump version to max(local.version, remote.version)+1
// (spec §4.7).
func Resolve(c Change, strategy Strategy) (Resolution, error) {
	const op = "sync.Resolve"
	if c.Kind != Modified || c.Local == nil || c.Remote == nil {
		return Resolution{}, errs.InvalidArgumentf(op, "resolve requires a MODIFIED change with both sides present")
	}

	switch strategy {
	case Manual:
		return Resolution{Applied: false, Local: c.Local, Remote: c.Remote}, nil
	case KeepLocal:
		r := c.Local.Clone()
		r.Version = nextVersion(c.Local.Version, c.Remote.Version)
		return Resolution{Applied: true, Record: r}, nil
	case KeepRemote:
		r := c.Remote.Clone()
		r.Version = nextVersion(c.Local.Version, c.Remote.Version)
		return Resolution{Applied: true, Record: r}, nil
	case FieldMerge:
		return Resolution{Applied: true, Record: fieldMerge(c.Local, c.Remote)}, nil
	default: // LastWriteWins
		winner := c.Local
		if c.Remote.ModifiedAt.After(c.Local.ModifiedAt) {
			winner = c.Remote
		} else if c.Remote.ModifiedAt.Equal(c.Local.ModifiedAt) && c.Remote.Version > c.Local.Version {
			winner = c.Remote
		}
		r := winner.Clone()
		r.Version = nextVersion(c.Local.Version, c.Remote.Version)
		return Resolution{Applied: true, Record: r}, nil
	}
}

func nextVersion(local, remote int64) int64 {
	if remote > local {
		return remote + 1
	}
	return local + 1
}

// fieldMerge unions tags, merges metadata key-wise, takes the max
// importance, and takes the newer side's content (spec §4.7).
func fieldMerge(local, remote *model.Record) *model.Record {
	merged := local.Clone()

	merged.Tags = unionTags(local.Tags, remote.Tags)
	merged.Metadata = model.MergeKeywise(local.Metadata, remote.Metadata)

	if remote.Importance > merged.Importance {
		merged.Importance = remote.Importance
	}

	if remote.ModifiedAt.After(local.ModifiedAt) {
		merged.Content = remote.Content
		merged.ModifiedAt = remote.ModifiedAt
	}

	merged.Version = nextVersion(local.Version, remote.Version)
	return merged
}

func unionTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, t := range append(append([]string{}, a...), b...) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

package sync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/memoryfabric/agentic-memory/internal/model"
)

func rec(id uuid.UUID, content string, importance float64, tags []string, version int64, modifiedAt time.Time) *model.Record {
	return &model.Record{ID: id, Content: content, Importance: importance, Tags: tags, Version: version, ModifiedAt: modifiedAt}
}

func TestCompute_ClassifiesCreatedDeletedModifiedUnchanged(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	createdID, deletedID, modifiedID, unchangedID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	local := []*model.Record{
		rec(deletedID, "gone locally", 0.5, nil, 1, base),
		rec(modifiedID, "local version", 0.5, nil, 1, base),
		rec(unchangedID, "same", 0.5, nil, 1, base),
	}
	remote := []*model.Record{
		rec(createdID, "new from remote", 0.5, nil, 1, base),
		rec(modifiedID, "remote version", 0.6, nil, 2, base.Add(5*time.Second)),
		rec(unchangedID, "same", 0.5, nil, 1, base),
	}

	diff := Compute(local, remote, ConflictGap)
	kinds := map[uuid.UUID]ChangeKind{}
	for _, c := range diff.Changes {
		kinds[c.ID] = c.Kind
	}
	require.Equal(t, Created, kinds[createdID])
	require.Equal(t, Deleted, kinds[deletedID])
	require.Equal(t, Modified, kinds[modifiedID])
	require.Equal(t, Unchanged, kinds[unchangedID])
}

func TestCompute_FlagsConflictOnlyWhenGapExceedsThreshold(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()

	near := Compute(
		[]*model.Record{rec(id, "a", 0.5, nil, 1, base)},
		[]*model.Record{rec(id, "b", 0.5, nil, 2, base.Add(500*time.Millisecond))},
		ConflictGap,
	)
	require.False(t, near.Changes[0].Conflict)

	far := Compute(
		[]*model.Record{rec(id, "a", 0.5, nil, 1, base)},
		[]*model.Record{rec(id, "b", 0.5, nil, 2, base.Add(5*time.Second))},
		ConflictGap,
	)
	require.True(t, far.Changes[0].Conflict)
}

func TestDiff_AppliedTwiceIsIdempotent(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	shared := rec(id, "same on both", 0.5, []string{"x"}, 3, base)

	diff := Compute([]*model.Record{shared}, []*model.Record{shared}, ConflictGap)
	require.Len(t, diff.Changes, 1)
	require.Equal(t, Unchanged, diff.Changes[0].Kind)

	again := Compute([]*model.Record{shared}, []*model.Record{shared}, ConflictGap)
	require.Equal(t, diff, again)
}

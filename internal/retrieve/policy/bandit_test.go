package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memoryfabric/agentic-memory/internal/model"
)

func TestFusionWeights_SumToOne(t *testing.T) {
	for _, s := range Strategies {
		for _, l := range OptimizationLevels {
			w := FusionWeights(model.ArmKey{Strategy: s, OptimizationLevel: l})
			require.Len(t, w, 3)
			sum := w[0] + w[1] + w[2]
			require.InDelta(t, 1.0, sum, 1e-9)
		}
	}
}

func TestHeuristicOverride_QuestionKeywordTriggers(t *testing.T) {
	b := New()
	d := b.Select("what is the capital of France")
	require.True(t, d.HeuristicUsed)
	require.Contains(t, d.HeuristicReason, "question keyword")
	require.Equal(t, "bm25", d.Arm.Strategy)
	require.Equal(t, "recall", d.Arm.OptimizationLevel)
}

func TestHeuristicOverride_LongQueryTriggers(t *testing.T) {
	b := New()
	d := b.Select("one two three four five six seven eight nine ten eleven")
	require.True(t, d.HeuristicUsed)
	require.Contains(t, d.HeuristicReason, "10 tokens")
}

func TestSelect_ShortStatementDoesNotTriggerHeuristic(t *testing.T) {
	b := New()
	d := b.Select("short note here")
	require.False(t, d.HeuristicUsed)
}

func TestSelect_UnpulledArmsPreferredBeforeExploitation(t *testing.T) {
	b := New()
	b.epsilon = 0 // force exploitation path deterministically
	seen := map[model.ArmKey]bool{}
	for range b.arms {
		d := b.Select("short note here")
		require.False(t, seen[d.Arm], "arm %+v selected twice before all arms pulled once", d.Arm)
		seen[d.Arm] = true
		b.Reward(d.Arm, 0.5)
	}
	require.Len(t, seen, len(b.arms))
}

func TestReward_UpdatesMeanReward(t *testing.T) {
	b := New()
	arm := model.ArmKey{Strategy: "dense", OptimizationLevel: "precision"}
	b.Reward(arm, 1.0)
	b.Reward(arm, 0.0)
	require.InDelta(t, 0.5, b.arms[arm].MeanReward(), 1e-9)
}

func TestDriftDetection_ResetsArmsOnSteepDrop(t *testing.T) {
	b := New()
	b.driftEvery = 1
	b.baseline = 1.0 // seed a high baseline directly (white-box: same package)
	arm := model.ArmKey{Strategy: "fulltext", OptimizationLevel: "balanced"}

	b.Reward(arm, 0.0) // drops mean reward to 0.0, a 100% drop from baseline

	require.Equal(t, int64(0), b.arms[arm].Pulls, "arm should have been reset after steep drift")
}

func TestDriftDetection_NoResetWhenDropBelowThreshold(t *testing.T) {
	b := New()
	b.driftEvery = 1
	b.baseline = 1.0
	arm := model.ArmKey{Strategy: "fulltext", OptimizationLevel: "balanced"}

	b.Reward(arm, 0.9) // only a 10% drop, should not reset

	require.Equal(t, int64(1), b.arms[arm].Pulls, "arm should not reset on a shallow drop")
}

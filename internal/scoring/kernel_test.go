package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestEffectiveDecayRate_ClampedAndMonotoneInAccessCount(t *testing.T) {
	p := DefaultDecayParams()
	r0 := EffectiveDecayRate(p, 0)
	r10 := EffectiveDecayRate(p, 10)
	r1000 := EffectiveDecayRate(p, 1000)

	require.GreaterOrEqual(t, r0, p.Min)
	require.LessOrEqual(t, r0, p.Max)
	assert.Greater(t, r0, r10, "more accesses should decay slower")
	assert.Greater(t, r10, r1000)
	assert.GreaterOrEqual(t, r1000, p.Min)
}

func TestRecency_DecaysTowardZeroWithAge(t *testing.T) {
	p := DefaultDecayParams()
	fresh := Recency(p, 0, 0)
	assert.InDelta(t, 1.0, fresh, 1e-9)

	old := Recency(p, 100000, 0)
	assert.Less(t, old, fresh)
	assert.GreaterOrEqual(t, old, 0.0)
}

func TestRecency_AtT693Seconds(t *testing.T) {
	// Regression anchor for the spec's worked decay example: zero access
	// count, ~693s age should land recency near 0.5 given base=0.001.
	p := DefaultDecayParams()
	lambda := EffectiveDecayRate(p, 0)
	got := Recency(p, 693.0, 0)
	want := math.Exp(-lambda * 693.0)
	assert.InDelta(t, want, got, 1e-9)
}

func TestUnifiedScore_ClampsInputs(t *testing.T) {
	w := DefaultWeights()
	require.True(t, w.SumsToOne())

	s := UnifiedScore(w, 2.0, -1.0, 0.5) // similarity clamped to 1, importance to 0
	want := w.Similarity*1.0 + w.Importance*0.0 + w.Recency*0.5
	assert.InDelta(t, want, s, 1e-9)
}

func TestWeights_SumsToOne_DetectsDrift(t *testing.T) {
	w := Weights{Similarity: 0.5, Importance: 0.5, Recency: 0.5}
	assert.False(t, w.SumsToOne())
}

func TestHalfLifeAndTimeToThreshold(t *testing.T) {
	lambda := 0.001
	hl := HalfLife(lambda)
	assert.InDelta(t, math.Ln2/lambda, hl, 1e-9)

	tt := TimeToThreshold(lambda, 0.5)
	assert.InDelta(t, hl, tt, 1e-6, "time to 0.5 threshold should match half-life")

	assert.Equal(t, 0.0, TimeToThreshold(lambda, 1.5))
	assert.True(t, math.IsInf(TimeToThreshold(lambda, 0), 1))
}

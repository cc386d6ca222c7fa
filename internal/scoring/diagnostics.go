package scoring

import "math"

// HalfLife returns the time in seconds for recency to decay to half its
// initial value under the given effective decay rate: ln(2) / λ_eff.
// Ported from rae-core's scoring/decay.py calculate_half_life as an
// operator diagnostic; not used in the hot scoring path, which follows
// Recency's exact formula directly.
func HalfLife(lambdaEff float64) float64 {
	if lambdaEff <= 0 {
		return math.Inf(1)
	}
	return math.Ln2 / lambdaEff
}

// TimeToThreshold returns the age in seconds at which recency first drops
// to or below threshold, given the effective decay rate. Returns +Inf if
// threshold is <= 0 (recency never reaches a non-positive bound) and 0 if
// threshold >= 1 (already at or below the starting value).
// Ported from rae-core's scoring/decay.py time_to_threshold.
func TimeToThreshold(lambdaEff, threshold float64) float64 {
	if threshold >= 1 {
		return 0
	}
	if threshold <= 0 || lambdaEff <= 0 {
		return math.Inf(1)
	}
	return -math.Log(threshold) / lambdaEff
}

// Package policy implements the Policy Bandit (C10, spec §4.4): a
// contextual multi-armed bandit over (strategy, optimization level) arms
// that picks fusion weights per query, with epsilon-greedy plus UCB1
// exploration, sliding-window rewards, and drift detection. Grounded on
// the teacher's lack of an equivalent component generalized from its
// general preference for small, explicit structs over a generic "policy"
// interface elsewhere in the codebase (e.g. internal/skills' capability
// selection).
package policy

import (
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/memoryfabric/agentic-memory/internal/model"
)

// Strategies is the named-strategy axis of the arm Cartesian product,
// matching internal/retrieve/strategy's three producers.
var Strategies = []string{"fulltext", "bm25", "dense"}

// OptimizationLevels is the optimization-level axis of the arm Cartesian
// product: precision favors the dense strategy, recall favors lexical
// strategies, balanced splits evenly.
var OptimizationLevels = []string{"precision", "balanced", "recall"}

// FusionWeights maps an arm to the per-strategy weight vector (ordered to
// match Strategies) fusion should use for a query routed to that arm.
func FusionWeights(key model.ArmKey) []float64 {
	switch key.OptimizationLevel {
	case "precision":
		return weightsFor(key.Strategy, 0.2, 0.2, 0.6)
	case "recall":
		return weightsFor(key.Strategy, 0.45, 0.45, 0.1)
	default: // balanced
		return weightsFor(key.Strategy, 1.0/3, 1.0/3, 1.0/3)
	}
}

// weightsFor returns the base split, boosted toward the named lead
// strategy: the lead strategy's weight is doubled and the rest
// renormalized, so the arm's chosen strategy still dominates within its
// optimization level's overall lexical/dense balance.
func weightsFor(lead string, fulltext, bm25, dense float64) []float64 {
	w := map[string]float64{"fulltext": fulltext, "bm25": bm25, "dense": dense}
	if _, ok := w[lead]; ok {
		w[lead] *= 2
	}
	sum := w["fulltext"] + w["bm25"] + w["dense"]
	return []float64{w["fulltext"] / sum, w["bm25"] / sum, w["dense"] / sum}
}

// Epsilon is the default exploration probability (spec §4.4).
const Epsilon = 0.1

// UCBConstant is the default UCB1 exploration coefficient c=sqrt(2).
var UCBConstant = math.Sqrt2

// DefaultWindow is the default per-arm reward window size W.
const DefaultWindow = 100

// DriftInterval is the default number of updates between drift checks (K).
const DriftInterval = 20

// DriftDropThreshold is the fractional drop from baseline that triggers a
// reset (spec §4.4: "if the drop exceeds 50%").
const DriftDropThreshold = 0.5

// QuestionKeywords are the heuristic-override trigger words of spec §4.4.
var QuestionKeywords = []string{"who", "what", "when", "where", "why", "how", "which", "whom"}

// HeuristicTokenThreshold is the token-count override trigger (spec §4.4:
// "has > 10 tokens").
const HeuristicTokenThreshold = 10

// Decision is what Select returns: the chosen arm plus whether it was
// reached via the heuristic override rather than the bandit (spec §4.4's
// requirement that an override be documented in the trace).
type Decision struct {
	Arm             model.ArmKey
	Weights         []float64
	HeuristicUsed   bool
	HeuristicReason string
}

// Bandit selects a fusion-weight arm per query and tracks reward feedback.
type Bandit struct {
	mu          sync.Mutex
	arms        map[model.ArmKey]*model.Arm
	epsilon     float64
	ucbConstant float64
	window      int
	driftEvery  int
	updateCount int
	baseline    float64
	rng         *rand.Rand
}

// New builds a Bandit with one arm per (strategy, optimization level)
// pair.
func New() *Bandit {
	b := &Bandit{
		arms:        make(map[model.ArmKey]*model.Arm),
		epsilon:     Epsilon,
		ucbConstant: UCBConstant,
		window:      DefaultWindow,
		driftEvery:  DriftInterval,
		rng:         rand.New(rand.NewSource(1)),
	}
	for _, s := range Strategies {
		for _, l := range OptimizationLevels {
			key := model.ArmKey{Strategy: s, OptimizationLevel: l}
			b.arms[key] = model.NewArm(key, b.window)
		}
	}
	return b
}

func (b *Bandit) keys() []model.ArmKey {
	keys := make([]model.ArmKey, 0, len(b.arms))
	for _, s := range Strategies {
		for _, l := range OptimizationLevels {
			keys = append(keys, model.ArmKey{Strategy: s, OptimizationLevel: l})
		}
	}
	return keys
}

// heuristicOverride reports whether query triggers spec §4.4's bypass:
// a wh-/question keyword, or more than 10 whitespace tokens.
func heuristicOverride(query string) (bool, string) {
	tokens := strings.Fields(query)
	if len(tokens) > HeuristicTokenThreshold {
		return true, "query exceeds 10 tokens"
	}
	for _, tok := range tokens {
		normalized := strings.Trim(strings.ToLower(tok), "?,.!")
		for _, kw := range QuestionKeywords {
			if normalized == kw {
				return true, "question keyword: " + kw
			}
		}
	}
	return false, ""
}

// Select chooses a fusion-weight arm for a query. A heuristic override
// (question keyword or >10 tokens) bypasses the bandit in favor of a
// hard-coded "favor lexical" (recall) arm, documented in the returned
// Decision; otherwise epsilon-greedy plus UCB1 picks among the arms.
func (b *Bandit) Select(query string) Decision {
	if ok, reason := heuristicOverride(query); ok {
		arm := model.ArmKey{Strategy: "bm25", OptimizationLevel: "recall"}
		return Decision{Arm: arm, Weights: FusionWeights(arm), HeuristicUsed: true, HeuristicReason: reason}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rng.Float64() < b.epsilon {
		keys := b.keys()
		chosen := keys[b.rng.Intn(len(keys))]
		return Decision{Arm: chosen, Weights: FusionWeights(chosen)}
	}

	totalPulls := int64(0)
	for _, a := range b.arms {
		totalPulls += a.Pulls
	}

	var best model.ArmKey
	bestScore := math.Inf(-1)
	for _, key := range b.keys() {
		arm := b.arms[key]
		score := arm.MeanReward()
		if arm.Pulls == 0 {
			score = math.Inf(1) // unpulled arms are tried first
		} else if totalPulls > 0 {
			score += b.ucbConstant * math.Sqrt(math.Log(float64(totalPulls))/float64(arm.Pulls))
		}
		if score > bestScore {
			bestScore = score
			best = key
		}
	}
	return Decision{Arm: best, Weights: FusionWeights(best)}
}

// Reward records a scalar reward in [0,1] against the arm used for a
// query, and runs drift detection every DriftInterval updates.
func (b *Bandit) Reward(arm model.ArmKey, reward float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, ok := b.arms[arm]
	if !ok {
		a = model.NewArm(arm, b.window)
		b.arms[arm] = a
	}
	a.Record(reward)
	b.updateCount++

	if b.updateCount%b.driftEvery == 0 {
		b.checkDrift()
	}
}

// overallMeanReward is the mean reward across all arms' current windows,
// used as the drift-detection signal.
func (b *Bandit) overallMeanReward() float64 {
	sum, n := 0.0, 0
	for _, a := range b.arms {
		for _, r := range a.Rewards {
			sum += r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// checkDrift compares current overall mean reward to the stored baseline;
// a drop exceeding DriftDropThreshold resets every arm's window and the
// baseline (spec §4.4's stale-exploitation guard). Caller must hold mu.
func (b *Bandit) checkDrift() {
	current := b.overallMeanReward()
	if b.baseline > 0 {
		drop := (b.baseline - current) / b.baseline
		if drop > DriftDropThreshold {
			for key := range b.arms {
				b.arms[key] = model.NewArm(key, b.window)
			}
			b.baseline = current
			return
		}
	}
	b.baseline = current
}

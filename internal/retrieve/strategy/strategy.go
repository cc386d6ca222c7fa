// Package strategy implements the Retrieval Strategies (C8): full-text,
// sparse BM25, and dense vector producers over the Memory Store and Vector
// Store ports, plus the parallel fan-out that runs them together. Grounded
// on the teacher's internal/rag package, which runs several retrieval
// passes (keyword, vector, rerank) over the same corpus and tolerates a
// single pass failing without aborting the others.
package strategy

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memoryfabric/agentic-memory/internal/obs"
	"github.com/memoryfabric/agentic-memory/internal/persistence/store"
	"github.com/memoryfabric/agentic-memory/internal/scoring"
)

// DefaultTimeout is the per-strategy fan-out timeout (spec §4.5 step 3).
const DefaultTimeout = 2 * time.Second

// Strategy is one retrieval producer: (query, tenant, filters, limit) to
// an ordered list of (memory_id, raw_score) pairs (spec §4.3).
type Strategy interface {
	Name() string
	Run(ctx context.Context, tenantID, query string, filters store.Filters, limit int) ([]scoring.StrategyResult, error)
}

// FanOut runs every strategy concurrently, each under its own timeout.
// A strategy that errors or times out contributes an empty result set and
// is logged, never aborting the others (spec §4.3's failure isolation).
// Results are returned in the same order as strategies, independent of
// completion order, so callers get deterministic fusion input.
func FanOut(ctx context.Context, strategies []Strategy, tenantID, query string, filters store.Filters, limit int, timeout time.Duration, log obs.Logger) [][]scoring.StrategyResult {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	results := make([][]scoring.StrategyResult, len(strategies))

	var g errgroup.Group
	for i, s := range strategies {
		i, s := i, s
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			res, err := s.Run(sctx, tenantID, query, filters, limit)
			if err != nil {
				if log != nil {
					log.Warn("retrieval_strategy_failed", map[string]any{
						"strategy": s.Name(), "error": err.Error(),
					})
				}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait() // per-strategy errors are swallowed above; Wait never returns one
	return results
}

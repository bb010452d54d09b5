package matching

import "sync"

// ─────────────────────────────────────────────────────────────
// Result Aggregation
// ─────────────────────────────────────────────────────────────

// Aggregator folds group results from parallel workers into one table keyed
// by target fingerprint identity.  Two results for the same key merge by
// concatenating their match lists, re-sorting, re-truncating, and OR-ing the
// matched flags.  Add is safe to call from multiple workers.
type Aggregator struct {
	mu    sync.Mutex
	topK  int
	order []string
	byKey map[string]*TargetResult
}

// NewAggregator returns an aggregator that caps each target at topK matches.
func NewAggregator(topK int) *Aggregator {
	return &Aggregator{
		topK:  topK,
		byKey: make(map[string]*TargetResult),
	}
}

// Add merges one batch of group results into the table.
func (a *Aggregator) Add(results []*TargetResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range results {
		cur, ok := a.byKey[r.Key]
		if !ok {
			cur = &TargetResult{
				Key:       r.Key,
				TargetSDF: r.TargetSDF,
				AtomCount: r.AtomCount,
			}
			a.byKey[r.Key] = cur
			a.order = append(a.order, r.Key)
		}
		cur.TargetSDF = r.TargetSDF
		cur.TopMatches = append(cur.TopMatches, r.TopMatches...)
		cur.Matched = cur.Matched || r.Matched
		TrimMatches(&cur.TopMatches, a.topK)
	}
}

// Results returns the merged table in first-arrival order.  Call it after
// all workers have finished adding.
func (a *Aggregator) Results() []*TargetResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*TargetResult, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, a.byKey[key])
	}
	return out
}

// MatchedCount reports how many targets have at least one qualifying match.
func (a *Aggregator) MatchedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, r := range a.byKey {
		if r.Matched {
			n++
		}
	}
	return n
}

// Len reports the number of distinct targets seen.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byKey)
}

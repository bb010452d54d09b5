// Package matching scores canonical target fragments against population
// candidates, one formula-signature group at a time, and merges the
// per-group outcomes into the final match table.
package matching

import (
	"fmt"
	"sort"

	"github.com/crystalytics/fragscreen/internal/domain/fragment"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// KeyFunc renders a fingerprint as the stable string that identifies a
// target across group tasks and workers.
type KeyFunc func(fp []float64) string

// DistanceFunc recovers the interatomic distance of a serialised two-atom
// fragment.  Used only on the exact-geometry path.
type DistanceFunc func(sdf string) (float64, error)

// Match is one scored population candidate.
type Match struct {
	Score float64 `json:"score"`
	SDF   string  `json:"sdf"`
}

// TargetResult is the matching outcome for one target fragment: its best
// candidates in descending score order and whether anything qualified.
type TargetResult struct {
	Key        string  `json:"key"`
	TargetSDF  string  `json:"target_sdf"`
	AtomCount  int     `json:"n_atoms"`
	TopMatches []Match `json:"top_matches"`
	Matched    bool    `json:"matched"`
}

// Task pairs the target fragments of one signature group with the
// population candidates of the same group.
type Task struct {
	Signature  fragment.Signature
	Targets    []*fragment.Record
	Candidates []*fragment.Record
}

// BuildTasks intersects target groups with population groups: one task per
// signature both sides know.  Tasks come back ordered by signature so runs
// are reproducible.
func BuildTasks(targets, population map[fragment.Signature][]*fragment.Record) []*Task {
	sigs := make([]fragment.Signature, 0, len(targets))
	for sig := range targets {
		if len(population[sig]) > 0 {
			sigs = append(sigs, sig)
		}
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].String() < sigs[j].String() })

	tasks := make([]*Task, 0, len(sigs))
	for _, sig := range sigs {
		tasks = append(tasks, &Task{
			Signature:  sig,
			Targets:    targets[sig],
			Candidates: population[sig],
		})
	}
	return tasks
}

// Options configure a Comparer.
type Options struct {
	// Threshold is the minimum similarity for a fingerprint match.
	Threshold float64
	// DistanceTolerance bounds the interatomic distance difference on the
	// two-atom path.
	DistanceTolerance float64
	// TopK caps the retained matches per target.
	TopK int
	// Scorer compares fingerprints; it must be the same oracle the
	// deduplication stage used.
	Scorer fragment.Scorer
	// Key renders fingerprint identities.
	Key KeyFunc
	// Distance recovers two-atom geometry from serialised fragments.
	Distance DistanceFunc
}

func (o Options) validate() error {
	if o.Scorer == nil {
		return errors.New(errors.ErrCodeInvalidInput, "nil scorer")
	}
	if o.Key == nil {
		return errors.New(errors.ErrCodeInvalidInput, "nil key func")
	}
	if o.Distance == nil {
		return errors.New(errors.ErrCodeInvalidInput, "nil distance func")
	}
	if o.Threshold <= 0 || o.Threshold > 1 {
		return errors.New(errors.ErrCodeThresholdInvalid,
			fmt.Sprintf("match threshold %v outside (0, 1]", o.Threshold))
	}
	if o.DistanceTolerance <= 0 {
		return errors.New(errors.ErrCodeThresholdInvalid,
			fmt.Sprintf("distance tolerance %v not positive", o.DistanceTolerance))
	}
	if o.TopK < 1 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("top k %d below 1", o.TopK))
	}
	return nil
}

// Comparer runs group comparisons.  It is stateless and safe for use from
// multiple workers at once.
type Comparer struct {
	opts Options
}

// NewComparer validates the options and returns a comparer.
func NewComparer(opts Options) (*Comparer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Comparer{opts: opts}, nil
}

// targetState tracks one target through a group comparison.
type targetState struct {
	record  *fragment.Record
	result  *TargetResult
	dist    float64
	distSet bool
	distErr error
}

// CompareGroup scores every candidate against every still-unmatched target
// of one group.  Targets whose signature is two atoms on both sides compare
// by interatomic distance: a difference within the tolerance scores as one
// minus the difference.  All other targets compare by fingerprint
// similarity against the threshold.
//
// A target that accepts a candidate leaves the unmatched set, so later
// candidates in this task never see it; the whole group stops early when no
// unmatched target remains.  Per-pair failures (unreadable geometry,
// unscorable fingerprints) skip the pair and surface as diagnostics.
//
// Every target of the task appears in the output, matched or not.
func (c *Comparer) CompareGroup(task *Task) ([]*TargetResult, []error) {
	states := make([]*targetState, len(task.Targets))
	for i, t := range task.Targets {
		states[i] = &targetState{
			record: t,
			result: &TargetResult{
				Key:       c.opts.Key(t.Fingerprint),
				TargetSDF: t.SDF,
				AtomCount: t.AtomCount,
			},
		}
	}

	var diags []error
	unmatched := len(states)

	for _, cand := range task.Candidates {
		if unmatched == 0 {
			break
		}

		candDist, candDistSet := 0.0, false

		for _, st := range states {
			if st.result.Matched {
				continue
			}

			bothBiatomic := st.record.AtomCount == 2 && cand.AtomCount == 2
			if bothBiatomic && st.record.Signature == cand.Signature {
				if !st.distSet {
					st.dist, st.distErr = c.opts.Distance(st.record.SDF)
					st.distSet = true
					if st.distErr != nil {
						diags = append(diags, fmt.Errorf("target %s: %w", st.result.Key, st.distErr))
					}
				}
				if st.distErr != nil {
					continue
				}
				if !candDistSet {
					var err error
					candDist, err = c.opts.Distance(cand.SDF)
					if err != nil {
						diags = append(diags, fmt.Errorf("candidate in %s: %w", task.Signature, err))
						break
					}
					candDistSet = true
				}
				diff := abs(st.dist - candDist)
				if diff <= c.opts.DistanceTolerance {
					c.accept(st, Match{Score: 1 - diff, SDF: cand.SDF})
					unmatched--
				}
			} else if !bothBiatomic {
				score, err := c.opts.Scorer.Similarity(st.record.Fingerprint, cand.Fingerprint)
				if err != nil {
					diags = append(diags, fmt.Errorf("target %s: %w", st.result.Key, err))
					continue
				}
				if score >= c.opts.Threshold {
					c.accept(st, Match{Score: score, SDF: cand.SDF})
					unmatched--
				}
			}
		}
	}

	results := make([]*TargetResult, len(states))
	for i, st := range states {
		results[i] = st.result
	}
	return results, diags
}

// accept records a qualifying match and takes the target out of play,
// keeping the match list sorted and capped.
func (c *Comparer) accept(st *targetState, m Match) {
	st.result.TopMatches = append(st.result.TopMatches, m)
	st.result.Matched = true
	TrimMatches(&st.result.TopMatches, c.opts.TopK)
}

// TrimMatches sorts matches by descending score, ties in arrival order, and
// truncates to k.
func TrimMatches(matches *[]Match, k int) {
	sort.SliceStable(*matches, func(i, j int) bool {
		return (*matches)[i].Score > (*matches)[j].Score
	})
	if len(*matches) > k {
		*matches = (*matches)[:k]
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

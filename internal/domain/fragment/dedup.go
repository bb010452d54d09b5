package fragment

import (
	"fmt"

	"github.com/crystalytics/fragscreen/pkg/errors"
)

// ─────────────────────────────────────────────────────────────
// Deduplication
// ─────────────────────────────────────────────────────────────

// Deduplicator removes fragments that are similarity-duplicates of an
// already-kept fragment with the same signature.  Deduplication is greedy
// and order-dependent: records are processed in input order and the
// earliest-seen representative of each near-identical cluster is the one
// retained.
type Deduplicator struct {
	scorer    Scorer
	threshold float64
}

// NewDeduplicator wires a deduplicator.  The threshold is the similarity at
// or above which two fingerprints count as duplicates; it must lie in
// (0, 1].
func NewDeduplicator(scorer Scorer, threshold float64) (*Deduplicator, error) {
	if scorer == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "nil scorer")
	}
	if threshold <= 0 || threshold > 1 {
		return nil, errors.New(errors.ErrCodeThresholdInvalid,
			fmt.Sprintf("dedup threshold %v outside (0, 1]", threshold))
	}
	return &Deduplicator{scorer: scorer, threshold: threshold}, nil
}

// Deduplicate partitions records by signature, keeping a record only when
// its similarity to every record already kept in its group is strictly below
// the threshold.  Within a group the kept records preserve input order and
// are pairwise below the threshold by construction.
//
// Records whose fingerprints cannot be scored are dropped; one diagnostic
// per dropped record comes back alongside the groups.
func (d *Deduplicator) Deduplicate(records []*Record) (map[Signature][]*Record, []error) {
	groups := make(map[Signature][]*Record)
	var diags []error

	for i, rec := range records {
		kept := groups[rec.Signature]
		keep := true
		for _, other := range kept {
			score, err := d.scorer.Similarity(rec.Fingerprint, other.Fingerprint)
			if err != nil {
				diags = append(diags, fmt.Errorf("record %d %s: %w", i, rec.Signature, err))
				keep = false
				break
			}
			if score >= d.threshold {
				keep = false
				break
			}
		}
		if keep {
			groups[rec.Signature] = append(kept, rec)
		}
	}
	return groups, diags
}

// TotalRecords counts the records across all groups.
func TotalRecords(groups map[Signature][]*Record) int {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	return total
}

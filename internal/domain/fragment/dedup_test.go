package fragment

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystalytics/fragscreen/pkg/errors"
)

var (
	sigCH = Signature{Central: "C", AtomCount: 2, Formula: "C1H1"}
	sigCO = Signature{Central: "C", AtomCount: 2, Formula: "C1O1"}
)

func rec(sig Signature, fp ...float64) *Record {
	return &Record{Signature: sig, AtomCount: sig.AtomCount, SDF: "sdf", Fingerprint: fp}
}

// onTheNose always scores the given similarity.
func onTheNose(score float64) Scorer {
	return ScorerFunc(func(a, b []float64) (float64, error) { return score, nil })
}

func TestNewDeduplicator_Validation(t *testing.T) {
	_, err := NewDeduplicator(nil, 0.999)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	_, err = NewDeduplicator(onTheNose(1), 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeThresholdInvalid))

	_, err = NewDeduplicator(onTheNose(1), 1.5)
	assert.True(t, errors.IsCode(err, errors.ErrCodeThresholdInvalid))

	_, err = NewDeduplicator(onTheNose(1), 1)
	assert.NoError(t, err)
}

func TestDeduplicate_KeepsFirstSeen(t *testing.T) {
	// Everything in a group scores as a duplicate, so only the first
	// record of each signature survives.
	d, err := NewDeduplicator(onTheNose(0.9995), 0.999)
	require.NoError(t, err)

	records := []*Record{
		rec(sigCH, 0.1),
		rec(sigCH, 0.2),
		rec(sigCO, 0.3),
		rec(sigCH, 0.4),
		rec(sigCO, 0.5),
	}
	groups, diags := d.Deduplicate(records)
	assert.Empty(t, diags)
	require.Len(t, groups, 2)
	require.Len(t, groups[sigCH], 1)
	require.Len(t, groups[sigCO], 1)
	assert.Equal(t, []float64{0.1}, groups[sigCH][0].Fingerprint)
	assert.Equal(t, []float64{0.3}, groups[sigCO][0].Fingerprint)
}

func TestDeduplicate_BelowThresholdAllKept(t *testing.T) {
	d, err := NewDeduplicator(onTheNose(0.9), 0.999)
	require.NoError(t, err)

	records := []*Record{rec(sigCH, 1), rec(sigCH, 2), rec(sigCH, 3)}
	groups, diags := d.Deduplicate(records)
	assert.Empty(t, diags)
	require.Len(t, groups[sigCH], 3)
	// Input order preserved.
	assert.Equal(t, []float64{1}, groups[sigCH][0].Fingerprint)
	assert.Equal(t, []float64{3}, groups[sigCH][2].Fingerprint)
}

func TestDeduplicate_ThresholdIsInclusive(t *testing.T) {
	// A score exactly at the threshold counts as a duplicate.
	d, err := NewDeduplicator(onTheNose(0.999), 0.999)
	require.NoError(t, err)

	groups, diags := d.Deduplicate([]*Record{rec(sigCH, 1), rec(sigCH, 2)})
	assert.Empty(t, diags)
	assert.Len(t, groups[sigCH], 1)
}

func TestDeduplicate_GroupsNeverCrossCompare(t *testing.T) {
	compared := 0
	scorer := ScorerFunc(func(a, b []float64) (float64, error) {
		compared++
		return 0, nil
	})
	d, err := NewDeduplicator(scorer, 0.999)
	require.NoError(t, err)

	// Two groups of two: one comparison inside each group, none across.
	d.Deduplicate([]*Record{rec(sigCH, 1), rec(sigCO, 2), rec(sigCH, 3), rec(sigCO, 4)})
	assert.Equal(t, 2, compared)
}

func TestDeduplicate_DropsUnscorableRecords(t *testing.T) {
	scorer := ScorerFunc(func(a, b []float64) (float64, error) {
		if len(a) != len(b) {
			return 0, fmt.Errorf("length mismatch")
		}
		return 0, nil
	})
	d, err := NewDeduplicator(scorer, 0.999)
	require.NoError(t, err)

	records := []*Record{
		rec(sigCH, 0.1, 0.2),
		rec(sigCH, 0.3), // malformed: wrong length for its group
		rec(sigCH, 0.5, 0.6),
	}
	groups, diags := d.Deduplicate(records)
	require.Len(t, diags, 1)
	assert.ErrorContains(t, diags[0], "length mismatch")
	assert.Len(t, groups[sigCH], 2)
}

func TestTotalRecords(t *testing.T) {
	groups := map[Signature][]*Record{
		sigCH: {rec(sigCH, 1), rec(sigCH, 2)},
		sigCO: {rec(sigCO, 3)},
	}
	assert.Equal(t, 3, TotalRecords(groups))
	assert.Equal(t, 0, TotalRecords(nil))
}

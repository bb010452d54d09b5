package matching

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystalytics/fragscreen/internal/domain/fragment"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

var (
	sig3 = fragment.Signature{Central: "C", AtomCount: 3, Formula: "C2H1"}
	sig2 = fragment.Signature{Central: "C", AtomCount: 2, Formula: "C1O1"}
)

func frag3(fp float64) *fragment.Record {
	return &fragment.Record{
		Signature:   sig3,
		AtomCount:   3,
		SDF:         fmt.Sprintf("sdf-%v", fp),
		Fingerprint: []float64{fp},
	}
}

// frag2 encodes the interatomic distance directly in the SDF field; the
// test distance func just parses it back.
func frag2(dist string) *fragment.Record {
	return &fragment.Record{
		Signature:   sig2,
		AtomCount:   2,
		SDF:         dist,
		Fingerprint: []float64{0},
	}
}

func parseDistance(sdf string) (float64, error) {
	return strconv.ParseFloat(sdf, 64)
}

func fpKey(fp []float64) string {
	return fmt.Sprintf("%v", fp)
}

// axisScorer scores two single-value fingerprints by their distance on the
// axis, counting calls as it goes.
type axisScorer struct {
	calls int
}

func (s *axisScorer) Similarity(a, b []float64) (float64, error) {
	s.calls++
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("empty fingerprint")
	}
	return 1 - abs(a[0]-b[0]), nil
}

func testOptions(scorer fragment.Scorer) Options {
	return Options{
		Threshold:         0.99,
		DistanceTolerance: 0.01,
		TopK:              3,
		Scorer:            scorer,
		Key:               fpKey,
		Distance:          parseDistance,
	}
}

func TestNewComparer_Validation(t *testing.T) {
	base := testOptions(&axisScorer{})

	_, err := NewComparer(base)
	assert.NoError(t, err)

	bad := base
	bad.Scorer = nil
	_, err = NewComparer(bad)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	bad = base
	bad.Key = nil
	_, err = NewComparer(bad)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	bad = base
	bad.Distance = nil
	_, err = NewComparer(bad)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))

	bad = base
	bad.Threshold = 1.2
	_, err = NewComparer(bad)
	assert.True(t, errors.IsCode(err, errors.ErrCodeThresholdInvalid))

	bad = base
	bad.DistanceTolerance = 0
	_, err = NewComparer(bad)
	assert.True(t, errors.IsCode(err, errors.ErrCodeThresholdInvalid))

	bad = base
	bad.TopK = 0
	_, err = NewComparer(bad)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}

func TestBuildTasks_IntersectsAndOrders(t *testing.T) {
	targets := map[fragment.Signature][]*fragment.Record{
		sig3: {frag3(0.5)},
		sig2: {frag2("1.5")},
	}
	population := map[fragment.Signature][]*fragment.Record{
		sig3: {frag3(0.4)},
		sig2: {frag2("1.6")},
		{Central: "N", AtomCount: 4, Formula: "C3N1"}: {frag3(0.9)},
	}

	tasks := BuildTasks(targets, population)
	require.Len(t, tasks, 2)
	// Ordered by signature string: ('C', 2, ...) before ('C', 3, ...).
	assert.Equal(t, sig2, tasks[0].Signature)
	assert.Equal(t, sig3, tasks[1].Signature)
	assert.Len(t, tasks[1].Targets, 1)
	assert.Len(t, tasks[1].Candidates, 1)
}

func TestBuildTasks_NoOverlap(t *testing.T) {
	targets := map[fragment.Signature][]*fragment.Record{sig3: {frag3(0.5)}}
	population := map[fragment.Signature][]*fragment.Record{sig2: {frag2("1.5")}}
	assert.Empty(t, BuildTasks(targets, population))
}

func TestCompareGroup_FingerprintPath(t *testing.T) {
	scorer := &axisScorer{}
	c, err := NewComparer(testOptions(scorer))
	require.NoError(t, err)

	task := &Task{
		Signature:  sig3,
		Targets:    []*fragment.Record{frag3(0.5)},
		Candidates: []*fragment.Record{frag3(0.4), frag3(0.499), frag3(0.5)},
	}
	results, diags := c.CompareGroup(task)
	assert.Empty(t, diags)
	require.Len(t, results, 1)

	r := results[0]
	assert.True(t, r.Matched)
	require.Len(t, r.TopMatches, 1)
	assert.InDelta(t, 0.999, r.TopMatches[0].Score, 1e-9)
	assert.Equal(t, "sdf-0.499", r.TopMatches[0].SDF)

	// The first qualifying candidate claims the target; the exact-copy
	// third candidate is never scored.
	assert.Equal(t, 2, scorer.calls)
}

func TestCompareGroup_UnmatchedStillReported(t *testing.T) {
	c, err := NewComparer(testOptions(&axisScorer{}))
	require.NoError(t, err)

	task := &Task{
		Signature:  sig3,
		Targets:    []*fragment.Record{frag3(0.5)},
		Candidates: []*fragment.Record{frag3(0.1)},
	}
	results, diags := c.CompareGroup(task)
	assert.Empty(t, diags)
	require.Len(t, results, 1)
	assert.False(t, results[0].Matched)
	assert.Empty(t, results[0].TopMatches)
	assert.Equal(t, "[0.5]", results[0].Key)
	assert.Equal(t, "sdf-0.5", results[0].TargetSDF)
}

func TestCompareGroup_TargetsProgressIndependently(t *testing.T) {
	c, err := NewComparer(testOptions(&axisScorer{}))
	require.NoError(t, err)

	task := &Task{
		Signature: sig3,
		Targets:   []*fragment.Record{frag3(0.2), frag3(0.8)},
		Candidates: []*fragment.Record{
			frag3(0.205), // claims the first target
			frag3(0.795), // claims the second
		},
	}
	results, diags := c.CompareGroup(task)
	assert.Empty(t, diags)
	require.Len(t, results, 2)
	assert.True(t, results[0].Matched)
	assert.True(t, results[1].Matched)
	assert.Equal(t, "sdf-0.205", results[0].TopMatches[0].SDF)
	assert.Equal(t, "sdf-0.795", results[1].TopMatches[0].SDF)
}

func TestCompareGroup_DistancePath(t *testing.T) {
	scorer := &axisScorer{}
	c, err := NewComparer(testOptions(scorer))
	require.NoError(t, err)

	task := &Task{
		Signature:  sig2,
		Targets:    []*fragment.Record{frag2("1.500")},
		Candidates: []*fragment.Record{frag2("1.520"), frag2("1.505"), frag2("1.500")},
	}
	results, diags := c.CompareGroup(task)
	assert.Empty(t, diags)
	require.Len(t, results, 1)

	r := results[0]
	assert.True(t, r.Matched)
	require.Len(t, r.TopMatches, 1)
	assert.InDelta(t, 0.995, r.TopMatches[0].Score, 1e-9)
	assert.Equal(t, "1.505", r.TopMatches[0].SDF)

	// Two-atom groups never touch the fingerprint oracle.
	assert.Equal(t, 0, scorer.calls)
}

func TestCompareGroup_DistancePath_TargetUnreadable(t *testing.T) {
	c, err := NewComparer(testOptions(&axisScorer{}))
	require.NoError(t, err)

	task := &Task{
		Signature:  sig2,
		Targets:    []*fragment.Record{frag2("not-a-number")},
		Candidates: []*fragment.Record{frag2("1.500"), frag2("1.505")},
	}
	results, diags := c.CompareGroup(task)
	// The target distance is computed once and the failure reported once.
	require.Len(t, diags, 1)
	assert.False(t, results[0].Matched)
}

func TestCompareGroup_DistancePath_CandidateUnreadable(t *testing.T) {
	c, err := NewComparer(testOptions(&axisScorer{}))
	require.NoError(t, err)

	task := &Task{
		Signature:  sig2,
		Targets:    []*fragment.Record{frag2("1.500")},
		Candidates: []*fragment.Record{frag2("garbage"), frag2("1.495")},
	}
	results, diags := c.CompareGroup(task)
	require.Len(t, diags, 1)

	r := results[0]
	assert.True(t, r.Matched)
	require.Len(t, r.TopMatches, 1)
	assert.Equal(t, "1.495", r.TopMatches[0].SDF)
}

func TestTrimMatches(t *testing.T) {
	matches := []Match{
		{Score: 0.991, SDF: "a"},
		{Score: 0.999, SDF: "b"},
		{Score: 0.995, SDF: "c"},
		{Score: 0.999, SDF: "d"},
		{Score: 0.992, SDF: "e"},
	}
	TrimMatches(&matches, 3)
	require.Len(t, matches, 3)
	// Descending, equal scores keep arrival order.
	assert.Equal(t, "b", matches[0].SDF)
	assert.Equal(t, "d", matches[1].SDF)
	assert.Equal(t, "c", matches[2].SDF)
}

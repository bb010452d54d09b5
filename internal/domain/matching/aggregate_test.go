package matching

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_MergesByKey(t *testing.T) {
	agg := NewAggregator(3)

	agg.Add([]*TargetResult{{
		Key:        "k1",
		TargetSDF:  "t1",
		AtomCount:  3,
		TopMatches: []Match{{Score: 0.991, SDF: "a"}},
		Matched:    true,
	}})
	agg.Add([]*TargetResult{{
		Key:        "k1",
		TargetSDF:  "t1",
		AtomCount:  3,
		TopMatches: []Match{{Score: 0.9999, SDF: "b"}, {Score: 0.992, SDF: "c"}},
		Matched:    true,
	}})

	results := agg.Results()
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "t1", r.TargetSDF)
	assert.True(t, r.Matched)
	require.Len(t, r.TopMatches, 3)
	assert.Equal(t, "b", r.TopMatches[0].SDF)
	assert.Equal(t, "c", r.TopMatches[1].SDF)
	assert.Equal(t, "a", r.TopMatches[2].SDF)
}

func TestAggregator_TruncatesToTopK(t *testing.T) {
	agg := NewAggregator(3)

	agg.Add([]*TargetResult{{
		Key:     "k1",
		Matched: true,
		TopMatches: []Match{
			{Score: 0.991, SDF: "a"},
			{Score: 0.992, SDF: "b"},
		},
	}})
	agg.Add([]*TargetResult{{
		Key:     "k1",
		Matched: true,
		TopMatches: []Match{
			{Score: 0.995, SDF: "c"},
			{Score: 0.990, SDF: "d"},
		},
	}})

	results := agg.Results()
	require.Len(t, results, 1)
	require.Len(t, results[0].TopMatches, 3)
	assert.Equal(t, "c", results[0].TopMatches[0].SDF)
	assert.Equal(t, "b", results[0].TopMatches[1].SDF)
	assert.Equal(t, "a", results[0].TopMatches[2].SDF)
}

func TestAggregator_UnmatchedMergesFalse(t *testing.T) {
	agg := NewAggregator(3)

	agg.Add([]*TargetResult{{Key: "k1", TargetSDF: "t1"}})
	agg.Add([]*TargetResult{{Key: "k1", TargetSDF: "t1"}})

	results := agg.Results()
	require.Len(t, results, 1)
	assert.False(t, results[0].Matched)
	assert.Empty(t, results[0].TopMatches)
	assert.Equal(t, 0, agg.MatchedCount())
}

func TestAggregator_PreservesArrivalOrder(t *testing.T) {
	agg := NewAggregator(3)

	agg.Add([]*TargetResult{{Key: "k2"}, {Key: "k1"}})
	agg.Add([]*TargetResult{{Key: "k3"}, {Key: "k1"}})

	results := agg.Results()
	require.Len(t, results, 3)
	assert.Equal(t, "k2", results[0].Key)
	assert.Equal(t, "k1", results[1].Key)
	assert.Equal(t, "k3", results[2].Key)
}

func TestAggregator_ConcurrentAdds(t *testing.T) {
	agg := NewAggregator(3)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				agg.Add([]*TargetResult{{
					Key:        fmt.Sprintf("k%d-%d", w, i),
					Matched:    true,
					TopMatches: []Match{{Score: 0.999, SDF: "x"}},
				}})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8*50, agg.Len())
	assert.Equal(t, 8*50, agg.MatchedCount())
}

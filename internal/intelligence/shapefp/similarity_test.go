package shapefp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystalytics/fragscreen/pkg/errors"
)

func TestSimilarity_Identical(t *testing.T) {
	fp := []float64{1.5, 2.25, -0.75, 0}
	s, err := Similarity(fp, fp)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)
}

func TestSimilarity_KnownDifference(t *testing.T) {
	a := []float64{0, 0, 0}
	b := []float64{0.3, 0.3, 0.3}

	s, err := Similarity(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1/1.3, s, 1e-12)
}

func TestSimilarity_Symmetric(t *testing.T) {
	a := []float64{1.1, -2.0, 0.4}
	b := []float64{0.9, -1.5, 0.8}

	ab, err := Similarity(a, b)
	require.NoError(t, err)
	ba, err := Similarity(b, a)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestSimilarity_Errors(t *testing.T) {
	_, err := Similarity(nil, []float64{1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeComparisonFailed))

	_, err = Similarity([]float64{1, 2}, []float64{1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeComparisonFailed))
}

package shapefp

import (
	"fmt"
	"math"

	"github.com/crystalytics/fragscreen/pkg/errors"
)

// Similarity scores two fingerprints on (0, 1]: the reciprocal of one plus
// the mean absolute difference across components.  Identical fingerprints
// score exactly 1.  Mismatched lengths and empty fingerprints yield
// ErrCodeComparisonFailed.
func Similarity(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, errors.New(errors.ErrCodeComparisonFailed, "empty fingerprint")
	}
	if len(a) != len(b) {
		return 0, errors.New(errors.ErrCodeComparisonFailed,
			fmt.Sprintf("fingerprint lengths differ: %d vs %d", len(a), len(b)))
	}

	var total float64
	for i := range a {
		total += math.Abs(a[i] - b[i])
	}
	return 1 / (1 + total/float64(len(a))), nil
}

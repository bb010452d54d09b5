// Package shapefp implements the rotation-invariant shape fingerprint the
// pipeline uses for fragment deduplication and population matching.
//
// Every atom contributes a 4D point (x, y, z, sqrt of its atomic number), so
// two fragments only score as near-identical when both their geometry and
// their element composition line up.  The point cloud is centred, four
// reference points are chosen, and the first three statistical moments of
// the distance distribution to each reference point are concatenated into a
// 12-value descriptor.  Descriptors compare via Similarity regardless of the
// original atom order or orientation.
package shapefp

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/crystalytics/fragscreen/internal/domain/structure"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// Dim is the fingerprint length: four reference points, three moments each.
const Dim = 12

// point is one atom in the 4D descriptor space.
type point [4]float64

func (p point) sub(q point) point {
	return point{p[0] - q[0], p[1] - q[1], p[2] - q[2], p[3] - q[3]}
}

func (p point) norm() float64 {
	return math.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2] + p[3]*p[3])
}

// ---------------------------------------------------------------------------
// Fingerprint generation
// ---------------------------------------------------------------------------

// Fingerprint computes the 12-value shape descriptor of a molecule.
// Molecules with no atoms or with element symbols outside the periodic
// table yield ErrCodeFingerprintFailed.
func Fingerprint(m *structure.Molecule) ([]float64, error) {
	if m == nil || len(m.Atoms) == 0 {
		return nil, errors.New(errors.ErrCodeFingerprintFailed, "molecule has no atoms")
	}

	points, err := descriptorPoints(m)
	if err != nil {
		return nil, err
	}

	refs := referencePoints(points)
	fp := make([]float64, 0, Dim)
	dists := make([]float64, len(points))
	for _, ref := range refs {
		for i, p := range points {
			dists[i] = p.sub(ref).norm()
		}
		mean, std, skew := moments(dists)
		fp = append(fp, mean, std, skew)
	}
	return fp, nil
}

// descriptorPoints maps atoms to 4D points and centres each of the four
// coordinates on its mean, the charge column included.
func descriptorPoints(m *structure.Molecule) ([]point, error) {
	points := make([]point, len(m.Atoms))
	var mean point
	for i, a := range m.Atoms {
		z, err := a.AtomicNumber()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeFingerprintFailed,
				fmt.Sprintf("atom %d of %s", i, m.Identifier))
		}
		points[i] = point{a.Coord.X, a.Coord.Y, a.Coord.Z, math.Sqrt(float64(z))}
		for k := 0; k < 4; k++ {
			mean[k] += points[i][k]
		}
	}
	n := float64(len(points))
	for k := 0; k < 4; k++ {
		mean[k] /= n
	}
	for i := range points {
		points[i] = points[i].sub(mean)
	}
	return points, nil
}

// referencePoints picks the four anchors of the descriptor: the centroid
// (the origin once centred), the point closest to it, the point farthest
// from it, and the point farthest from that farthest point.  Ties keep the
// earliest point.
func referencePoints(points []point) [4]point {
	var origin point

	closest, farthest := points[0], points[0]
	minD, maxD := points[0].norm(), points[0].norm()
	for _, p := range points[1:] {
		d := p.norm()
		if d < minD {
			minD = d
			closest = p
		}
		if d > maxD {
			maxD = d
			farthest = p
		}
	}

	opposite := points[0]
	maxD = points[0].sub(farthest).norm()
	for _, p := range points[1:] {
		if d := p.sub(farthest).norm(); d > maxD {
			maxD = d
			opposite = p
		}
	}

	return [4]point{origin, closest, farthest, opposite}
}

// moments returns the mean, the population standard deviation, and the
// signed cube root of the third central moment of a distance sample.
func moments(dists []float64) (mean, std, skew float64) {
	n := float64(len(dists))
	for _, d := range dists {
		mean += d
	}
	mean /= n

	var m2, m3 float64
	for _, d := range dists {
		dev := d - mean
		m2 += dev * dev
		m3 += dev * dev * dev
	}
	std = math.Sqrt(m2 / n)
	skew = math.Cbrt(m3 / n)
	return mean, std, skew
}

// ---------------------------------------------------------------------------
// Fingerprint keys
// ---------------------------------------------------------------------------

// Key renders a fingerprint as a stable string for use as a map key when
// aggregating results across workers.
func Key(fp []float64) string {
	parts := make([]string, len(fp))
	for i, v := range fp {
		parts[i] = strconv.FormatFloat(v, 'g', 17, 64)
	}
	return strings.Join(parts, ",")
}

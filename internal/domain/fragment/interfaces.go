package fragment

import "github.com/crystalytics/fragscreen/internal/domain/structure"

// Encoder serialises a fragment structure for persistence.  The pipeline
// stores fragments as SDF strings; the concrete codec lives in
// infrastructure.
type Encoder interface {
	// Encode renders the molecule as a single-entry document.
	Encode(m *structure.Molecule) (string, error)
}

// Fingerprinter derives the numeric shape descriptor records carry.
// Implementations must be deterministic: the same structure always maps to
// the same vector.
type Fingerprinter interface {
	// Fingerprint computes the descriptor for one fragment.
	Fingerprint(m *structure.Molecule) ([]float64, error)
}

// Scorer compares two fingerprints on [0, 1].  Deduplication and population
// matching share one Scorer so that a threshold means the same thing in
// both stages.
type Scorer interface {
	// Similarity returns 1 for identical fingerprints and decays toward 0
	// as they diverge.
	Similarity(a, b []float64) (float64, error)
}

// EncoderFunc adapts a function to the Encoder interface.
type EncoderFunc func(m *structure.Molecule) (string, error)

// Encode calls f.
func (f EncoderFunc) Encode(m *structure.Molecule) (string, error) { return f(m) }

// FingerprinterFunc adapts a function to the Fingerprinter interface.
type FingerprinterFunc func(m *structure.Molecule) ([]float64, error)

// Fingerprint calls f.
func (f FingerprinterFunc) Fingerprint(m *structure.Molecule) ([]float64, error) { return f(m) }

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(a, b []float64) (float64, error)

// Similarity calls f.
func (f ScorerFunc) Similarity(a, b []float64) (float64, error) { return f(a, b) }

package fragment

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/crystalytics/fragscreen/internal/domain/structure"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// ─────────────────────────────────────────────────────────────
// Formula Signature
// ─────────────────────────────────────────────────────────────

// Signature is the grouping key of the whole pipeline: the central atom's
// element, the fragment's atom count, and a count-annotated formula over all
// fragment atoms.  Two fragments with different atom multisets never share a
// signature, so grouping by Signature partitions the comparison space.
type Signature struct {
	Central   string `json:"central"`
	AtomCount int    `json:"atom_count"`
	Formula   string `json:"formula"`
}

// Describe derives the signature of a fragment.  The central atom is the
// fragment's first atom by construction.
func Describe(m *structure.Molecule) (Signature, error) {
	if m == nil || len(m.Atoms) == 0 {
		return Signature{}, errors.New(errors.ErrCodeSignatureInvalid, "fragment has no atoms")
	}
	return Signature{
		Central:   m.Atoms[0].Symbol,
		AtomCount: len(m.Atoms),
		Formula:   formulaOf(m),
	}, nil
}

// formulaOf renders the count-annotated formula: element symbols sorted
// lexicographically, each followed by its count, e.g. "C4H1".  Counts of one
// are spelled out.
func formulaOf(m *structure.Molecule) string {
	counts := make(map[string]int)
	for _, a := range m.Atoms {
		counts[a.Symbol]++
	}
	symbols := make([]string, 0, len(counts))
	for s := range counts {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var b strings.Builder
	for _, s := range symbols {
		b.WriteString(s)
		b.WriteString(strconv.Itoa(counts[s]))
	}
	return b.String()
}

// String renders the signature in the dataset's tuple form, the exact
// format the index and dataset formula columns store:
//
//	('C', 5, 'C4H1')
func (s Signature) String() string {
	return fmt.Sprintf("('%s', %d, '%s')", s.Central, s.AtomCount, s.Formula)
}

var signaturePattern = regexp.MustCompile(`^\(\s*'([^']+)'\s*,\s*(\d+)\s*,\s*'([^']*)'\s*\)$`)

// ParseSignature reads the tuple form back into a Signature.  Anything that
// does not match the tuple shape yields ErrCodeSignatureInvalid.
func ParseSignature(raw string) (Signature, error) {
	m := signaturePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Signature{}, errors.New(errors.ErrCodeSignatureInvalid,
			fmt.Sprintf("malformed signature %q", raw))
	}
	count, err := strconv.Atoi(m[2])
	if err != nil {
		return Signature{}, errors.New(errors.ErrCodeSignatureInvalid,
			fmt.Sprintf("malformed atom count in %q", raw))
	}
	return Signature{Central: m[1], AtomCount: count, Formula: m[3]}, nil
}

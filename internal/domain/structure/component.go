package structure

import (
	"fmt"

	"github.com/crystalytics/fragscreen/pkg/errors"
)

// ─────────────────────────────────────────────────────────────
// Component Selection
// ─────────────────────────────────────────────────────────────

// ComponentOfInterest picks the chemically relevant component of a
// multi-component entry by majority vote over three criteria:
//
//   - the component is organometallic
//   - the component is the heaviest by total atomic weight
//   - the component has the most atoms
//
// Each criterion is one vote; the heaviest and largest picks resolve ties to
// the earliest component.  The winner is the first component in input order
// with at least two votes and at least minAtoms atoms, so an undersized
// two-vote component is passed over in favour of a later one.  Entries where
// no component qualifies yield ErrCodeNoSuitableComponent; the caller skips
// such entries and reports them as diagnostics.
func ComponentOfInterest(m *Molecule, minAtoms int) (*Molecule, error) {
	if m == nil || len(m.Atoms) == 0 {
		return nil, errors.New(errors.ErrCodeStructureEmpty, "structure has no atoms")
	}

	comps := m.Components()

	heaviest, largest := 0, 0
	maxWeight := comps[0].MolecularWeight()
	maxAtoms := comps[0].AtomCount()
	for i, c := range comps[1:] {
		if w := c.MolecularWeight(); w > maxWeight {
			maxWeight = w
			heaviest = i + 1
		}
		if n := c.AtomCount(); n > maxAtoms {
			maxAtoms = n
			largest = i + 1
		}
	}

	for i, c := range comps {
		votes := 0
		if c.IsOrganometallic() {
			votes++
		}
		if i == heaviest {
			votes++
		}
		if i == largest {
			votes++
		}
		if votes >= 2 && c.AtomCount() >= minAtoms {
			return c, nil
		}
	}
	return nil, errors.New(errors.ErrCodeNoSuitableComponent,
		fmt.Sprintf("no component of %s reached a majority with %d or more atoms",
			m.Identifier, minAtoms))
}

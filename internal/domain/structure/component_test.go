package structure

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystalytics/fragscreen/pkg/errors"
)

// chain builds a singly bonded chain of the given elements, spaced 1.5 A
// apart on the x axis.
func chain(id string, syms ...string) *Molecule {
	m := NewMolecule(id)
	for i, s := range syms {
		m.AddAtom(Atom{Symbol: s, Coord: Vec3{X: 1.5 * float64(i)}})
		if i > 0 {
			if err := m.AddBond(Bond{A1: i - 1, A2: i, Order: BondSingle}); err != nil {
				panic(fmt.Sprintf("chain %s: %v", id, err))
			}
		}
	}
	return m
}

// merge packs several molecules into one multi-component entry.
func merge(id string, parts ...*Molecule) *Molecule {
	m := NewMolecule(id)
	for _, p := range parts {
		base := len(m.Atoms)
		m.Atoms = append(m.Atoms, p.Atoms...)
		for _, b := range p.Bonds {
			m.Bonds = append(m.Bonds, Bond{A1: b.A1 + base, A2: b.A2 + base, Order: b.Order})
		}
	}
	return m
}

func TestComponentOfInterest_SingleComponent(t *testing.T) {
	m := chain("HEXANE", "C", "C", "C", "C", "C", "C")
	comp, err := ComponentOfInterest(m, 5)
	require.NoError(t, err)
	assert.Equal(t, 6, comp.AtomCount())
}

func TestComponentOfInterest_DropsSolvent(t *testing.T) {
	// Main molecule is both heaviest and largest; the water loses 0-2.
	main := chain("X", "C", "C", "C", "C", "C", "O")
	water := chain("X", "O", "H", "H")
	m := merge("SOLVATE", water, main)

	comp, err := ComponentOfInterest(m, 5)
	require.NoError(t, err)
	assert.Equal(t, 6, comp.AtomCount())
	assert.Equal(t, "C", comp.Atoms[0].Symbol)
}

func TestComponentOfInterest_OrganometallicVote(t *testing.T) {
	// The iron complex is organometallic and heaviest but not largest;
	// two votes against one pick it over the longer carbon chain.
	complexPart := chain("X", "Fe", "C", "C", "C", "C")
	organic := chain("X", "C", "C", "C", "C", "C", "C", "C")
	m := merge("CMPLX", organic, complexPart)

	comp, err := ComponentOfInterest(m, 5)
	require.NoError(t, err)
	assert.Equal(t, "Fe", comp.Atoms[0].Symbol)
}

func TestComponentOfInterest_NoMajority(t *testing.T) {
	// Three criteria, three different winners: the small iron carbide is
	// organometallic, the iodine pair is heaviest, the carbon chain is
	// largest.  Nobody reaches two votes.
	om := chain("X", "Fe", "C")
	heavy := chain("X", "I", "I", "I")
	large := chain("X", "H", "H", "H", "H", "H", "H", "H", "H")
	m := merge("SPLIT", om, heavy, large)

	_, err := ComponentOfInterest(m, 5)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoSuitableComponent))
}

func TestComponentOfInterest_WinnerTooSmall(t *testing.T) {
	m := chain("TINY", "C", "C", "O")
	_, err := ComponentOfInterest(m, 5)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoSuitableComponent))
}

func TestComponentOfInterest_SkipsUndersizedWinner(t *testing.T) {
	// The mercury complex takes the organometallic and heaviest votes but
	// has only four atoms, so the vote falls through to the iron complex,
	// which is organometallic and largest.
	small := chain("X", "Hg", "C", "C", "C")
	big := chain("X", "Fe", "C", "C", "C", "C", "C")
	m := merge("TWOOM", small, big)

	comp, err := ComponentOfInterest(m, 5)
	require.NoError(t, err)
	assert.Equal(t, "Fe", comp.Atoms[0].Symbol)
	assert.Equal(t, 6, comp.AtomCount())
}

func TestComponentOfInterest_TieKeepsFirst(t *testing.T) {
	// Identical twins tie on weight and size; both criteria resolve to the
	// first component, which therefore wins the vote.
	twinA := chain("X", "C", "C", "C", "C", "C")
	twinB := chain("X", "C", "C", "C", "C", "C")
	m := merge("TWINS", twinA, twinB)

	comp, err := ComponentOfInterest(m, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, comp.AtomCount())
	// First twin occupies atom indices 0-4 of the parent.
	assert.InDelta(t, 0.0, comp.Atoms[0].Coord.X, 1e-12)
}

func TestComponentOfInterest_Empty(t *testing.T) {
	_, err := ComponentOfInterest(NewMolecule("EMPTY"), 5)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStructureEmpty))

	_, err = ComponentOfInterest(nil, 5)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStructureEmpty))
}

// Package structure provides the core domain model for chemical structures:
// atoms with 3D coordinates, bonds, connected-component decomposition, and
// the selection rule that picks the component of interest out of a
// multi-component entry.
package structure

import (
	"fmt"
	"math"

	"github.com/crystalytics/fragscreen/pkg/errors"
)

// ─────────────────────────────────────────────────────────────
// Value Objects
// ─────────────────────────────────────────────────────────────

// Vec3 is a point in 3D Cartesian space, in angstroms.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the component-wise sum v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{X: v.X + w.X, Y: v.Y + w.Y, Z: v.Z + w.Z}
}

// Sub returns the component-wise difference v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{X: v.X - w.X, Y: v.Y - w.Y, Z: v.Z - w.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Vec3) float64 {
	return a.Sub(b).Norm()
}

// Atom is a single atom site: an element symbol, an optional site label
// ("C1", "Fe2"), and a 3D position.
type Atom struct {
	Label  string `json:"label,omitempty"`
	Symbol string `json:"symbol"`
	Coord  Vec3   `json:"coord"`
}

// AtomicNumber returns the atom's nuclear charge, or an error for an
// element symbol the periodic table does not know.
func (a Atom) AtomicNumber() (int, error) {
	z, ok := AtomicNumber(a.Symbol)
	if !ok {
		return 0, errors.New(errors.ErrCodeUnknownElement,
			fmt.Sprintf("unknown element symbol %q", a.Symbol))
	}
	return z, nil
}

// BondOrder is the formal order of a bond, following molfile conventions.
type BondOrder int

const (
	BondSingle   BondOrder = 1
	BondDouble   BondOrder = 2
	BondTriple   BondOrder = 3
	BondAromatic BondOrder = 4
)

// String renders the bond order the way a molfile bond block spells it.
func (o BondOrder) String() string {
	switch o {
	case BondSingle:
		return "1"
	case BondDouble:
		return "2"
	case BondTriple:
		return "3"
	case BondAromatic:
		return "4"
	default:
		return fmt.Sprintf("%d", int(o))
	}
}

// Bond joins two atoms by their 0-based indices into Molecule.Atoms.
type Bond struct {
	A1    int       `json:"a1"`
	A2    int       `json:"a2"`
	Order BondOrder `json:"order"`
}

// ─────────────────────────────────────────────────────────────
// Aggregate Root
// ─────────────────────────────────────────────────────────────

// Molecule is a connected or multi-component chemical structure: an ordered
// atom list plus bonds indexing into it.  Atom order is significant; it is
// preserved through component splits and fragment extraction so that
// downstream geometry stays aligned with the source entry.
type Molecule struct {
	Identifier string `json:"identifier"`
	Atoms      []Atom `json:"atoms"`
	Bonds      []Bond `json:"bonds"`
}

// NewMolecule creates an empty molecule with the given identifier.
func NewMolecule(identifier string) *Molecule {
	return &Molecule{Identifier: identifier}
}

// AddAtom appends an atom and returns its index.
func (m *Molecule) AddAtom(a Atom) int {
	m.Atoms = append(m.Atoms, a)
	return len(m.Atoms) - 1
}

// AddBond appends a bond after checking that both endpoints exist.
func (m *Molecule) AddBond(b Bond) error {
	if b.A1 < 0 || b.A1 >= len(m.Atoms) || b.A2 < 0 || b.A2 >= len(m.Atoms) {
		return errors.New(errors.ErrCodeStructureParseFailed,
			fmt.Sprintf("bond %d-%d out of range for %d atoms", b.A1, b.A2, len(m.Atoms)))
	}
	if b.A1 == b.A2 {
		return errors.New(errors.ErrCodeStructureParseFailed,
			fmt.Sprintf("bond joins atom %d to itself", b.A1))
	}
	m.Bonds = append(m.Bonds, b)
	return nil
}

// AtomCount returns the number of atoms.
func (m *Molecule) AtomCount() int {
	return len(m.Atoms)
}

// Adjacency returns, for each atom index, the list of bonded neighbour
// indices in bond insertion order.  Bonds referencing atoms outside the
// molecule are ignored rather than propagated.
func (m *Molecule) Adjacency() [][]int {
	n := len(m.Atoms)
	adj := make([][]int, n)
	for _, b := range m.Bonds {
		if b.A1 < 0 || b.A1 >= n || b.A2 < 0 || b.A2 >= n {
			continue
		}
		adj[b.A1] = append(adj[b.A1], b.A2)
		adj[b.A2] = append(adj[b.A2], b.A1)
	}
	return adj
}

// MolecularWeight sums the standard atomic weights of all atoms.  Atoms with
// unknown element symbols contribute nothing.
func (m *Molecule) MolecularWeight() float64 {
	var total float64
	for _, a := range m.Atoms {
		if w, ok := AtomicWeight(a.Symbol); ok {
			total += w
		}
	}
	return total
}

// HasMetal reports whether any atom is a metal.
func (m *Molecule) HasMetal() bool {
	for _, a := range m.Atoms {
		if IsMetal(a.Symbol) {
			return true
		}
	}
	return false
}

// HasCarbon reports whether any atom is carbon.
func (m *Molecule) HasCarbon() bool {
	for _, a := range m.Atoms {
		if NormalizeSymbol(a.Symbol) == "C" {
			return true
		}
	}
	return false
}

// IsOrganometallic reports whether the molecule contains at least one metal
// atom and at least one carbon atom.
func (m *Molecule) IsOrganometallic() bool {
	return m.HasMetal() && m.HasCarbon()
}

// Centroid returns the unweighted mean position of all atoms.
// The zero vector is returned for an empty molecule.
func (m *Molecule) Centroid() Vec3 {
	if len(m.Atoms) == 0 {
		return Vec3{}
	}
	var c Vec3
	for _, a := range m.Atoms {
		c = c.Add(a.Coord)
	}
	return c.Scale(1 / float64(len(m.Atoms)))
}

// InteratomicDistance returns the distance between the two atoms of a
// two-atom molecule.  Any other atom count is an error; callers use this
// only on the exact-geometry comparison path.
func (m *Molecule) InteratomicDistance() (float64, error) {
	if len(m.Atoms) != 2 {
		return 0, errors.New(errors.ErrCodeDistanceFailed,
			fmt.Sprintf("interatomic distance needs exactly 2 atoms, have %d", len(m.Atoms)))
	}
	return Distance(m.Atoms[0].Coord, m.Atoms[1].Coord), nil
}

// Components splits the molecule into its connected components, in order of
// each component's lowest atom index.  Atom order within a component follows
// the parent's atom order, and bonds are remapped to component-local indices.
// Every component keeps the parent identifier.
func (m *Molecule) Components() []*Molecule {
	n := len(m.Atoms)
	if n == 0 {
		return nil
	}

	adj := m.Adjacency()
	seen := make([]bool, n)
	var comps []*Molecule

	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}

		// Breadth-first walk from the lowest unvisited atom.
		member := make([]bool, n)
		queue := []int{start}
		seen[start] = true
		member[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nb := range adj[cur] {
				if !seen[nb] {
					seen[nb] = true
					member[nb] = true
					queue = append(queue, nb)
				}
			}
		}

		comp := NewMolecule(m.Identifier)
		remap := make(map[int]int, n)
		for i := 0; i < n; i++ {
			if member[i] {
				remap[i] = comp.AddAtom(m.Atoms[i])
			}
		}
		for _, b := range m.Bonds {
			if member[b.A1] && member[b.A2] {
				comp.Bonds = append(comp.Bonds, Bond{
					A1:    remap[b.A1],
					A2:    remap[b.A2],
					Order: b.Order,
				})
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// Package fragment implements the decomposition of structures into per-atom
// fragments, the formula signatures that group them, and the greedy
// deduplication that turns raw fragments into the canonical target set.
package fragment

import (
	"fmt"
	"strconv"

	"github.com/crystalytics/fragscreen/internal/domain/structure"
)

// ─────────────────────────────────────────────────────────────
// Extraction
// ─────────────────────────────────────────────────────────────

// Extract builds one fragment per atom of the structure: the central atom
// first, then its bonded neighbours in bond order, plus the bonds that
// connect the central atom to them.  Bonds whose endpoints did not make it
// into the fragment are skipped; extraction never fails on a bad bond.
// Fragments come back in atom iteration order.
func Extract(m *structure.Molecule) []*structure.Molecule {
	if m == nil || len(m.Atoms) == 0 {
		return nil
	}

	adj := m.Adjacency()
	frags := make([]*structure.Molecule, 0, len(m.Atoms))
	for i := range m.Atoms {
		frags = append(frags, extractAt(m, adj, i))
	}
	return frags
}

// extractAt builds the fragment centred on atom index c.
func extractAt(m *structure.Molecule, adj [][]int, c int) *structure.Molecule {
	frag := structure.NewMolecule(atomLabel(m, c) + "_frag")

	remap := make(map[int]int, len(adj[c])+1)
	remap[c] = frag.AddAtom(labelled(m, c))
	for _, nb := range adj[c] {
		if _, ok := remap[nb]; ok {
			continue
		}
		remap[nb] = frag.AddAtom(labelled(m, nb))
	}

	for _, b := range m.Bonds {
		if b.A1 != c && b.A2 != c {
			continue
		}
		a1, ok1 := remap[b.A1]
		a2, ok2 := remap[b.A2]
		if !ok1 || !ok2 {
			continue
		}
		if err := frag.AddBond(structure.Bond{A1: a1, A2: a2, Order: b.Order}); err != nil {
			continue
		}
	}
	return frag
}

// labelled returns the atom at index i with its label filled in.
func labelled(m *structure.Molecule, i int) structure.Atom {
	a := m.Atoms[i]
	a.Label = atomLabel(m, i)
	return a
}

// atomLabel returns the atom's site label, synthesising "<symbol><ordinal>"
// when the source structure carries none.
func atomLabel(m *structure.Molecule, i int) string {
	if l := m.Atoms[i].Label; l != "" {
		return l
	}
	return m.Atoms[i].Symbol + strconv.Itoa(i+1)
}

// ─────────────────────────────────────────────────────────────
// Records
// ─────────────────────────────────────────────────────────────

// Record is the persisted form of a fragment: its signature, atom count,
// serialised structure, and shape fingerprint.  Records are immutable once
// built; the population dataset is a flat file of them.
type Record struct {
	Signature   Signature `json:"formula"`
	AtomCount   int       `json:"n_atoms"`
	SDF         string    `json:"sdf"`
	Fingerprint []float64 `json:"fp"`
}

// Builder turns extracted fragments into records using the injected codec
// and fingerprint oracle.
type Builder struct {
	encoder Encoder
	printer Fingerprinter
}

// NewBuilder wires a record builder.
func NewBuilder(enc Encoder, fp Fingerprinter) *Builder {
	return &Builder{encoder: enc, printer: fp}
}

// Build produces the record for one fragment.
func (b *Builder) Build(frag *structure.Molecule) (*Record, error) {
	sig, err := Describe(frag)
	if err != nil {
		return nil, err
	}
	sdf, err := b.encoder.Encode(frag)
	if err != nil {
		return nil, fmt.Errorf("encode fragment %s: %w", frag.Identifier, err)
	}
	fp, err := b.printer.Fingerprint(frag)
	if err != nil {
		return nil, fmt.Errorf("fingerprint fragment %s: %w", frag.Identifier, err)
	}
	return &Record{
		Signature:   sig,
		AtomCount:   sig.AtomCount,
		SDF:         sdf,
		Fingerprint: fp,
	}, nil
}

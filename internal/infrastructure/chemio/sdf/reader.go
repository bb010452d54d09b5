// Package sdf reads and writes chemical structures in MDL SDF/molfile V2000
// form.  The pipeline stores every fragment as an SDF string, so the codec
// here is the boundary between raw dataset rows and the structure domain
// model.
package sdf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/crystalytics/fragscreen/internal/domain/structure"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

const (
	recordSeparator = "$$$$"
	blockEnd        = "M  END"
)

// Entry is one SDF record: the decoded molecule plus any trailing data
// items ("> <Name>" blocks).
type Entry struct {
	Molecule *structure.Molecule
	Data     map[string]string
}

// Decode parses a single molfile entry from a string.  Trailing data items
// and the record separator are tolerated and ignored.
func Decode(s string) (*structure.Molecule, error) {
	r := NewReader(strings.NewReader(s))
	entry, err := r.Next()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeStructureParseFailed, "empty sdf input")
	}
	if err != nil {
		return nil, err
	}
	return entry.Molecule, nil
}

// Reader streams entries out of a multi-record SDF document.
type Reader struct {
	scanner *bufio.Scanner
	index   int
}

// NewReader wraps r in an SDF entry reader.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{scanner: sc}
}

// Next returns the next entry, or io.EOF once the document is exhausted.
// A malformed entry yields ErrCodeStructureParseFailed; the reader stays
// usable, positioned after that entry's record separator.
func (r *Reader) Next() (*Entry, error) {
	mol, perr := r.readMolfile()
	if perr != nil && perr != io.EOF {
		r.skipToSeparator()
		return nil, perr
	}
	if perr == io.EOF {
		return nil, io.EOF
	}

	data, err := r.readDataItems()
	if err != nil {
		return nil, err
	}
	return &Entry{Molecule: mol, Data: data}, nil
}

// readMolfile consumes one molfile block up to and including "M  END".
func (r *Reader) readMolfile() (*structure.Molecule, error) {
	// Header: title, program line, comment.  Skip blank padding between
	// records first; a clean EOF here means the document is done.
	title, ok := r.nextLine()
	for ok && strings.TrimSpace(title) == "" {
		title, ok = r.nextLine()
	}
	if !ok {
		return nil, io.EOF
	}
	r.index++

	if _, ok = r.nextLine(); !ok {
		return nil, r.fail(title, "truncated header")
	}
	if _, ok = r.nextLine(); !ok {
		return nil, r.fail(title, "truncated header")
	}

	counts, ok := r.nextLine()
	if !ok {
		return nil, r.fail(title, "missing counts line")
	}
	nAtoms, nBonds, err := parseCounts(counts)
	if err != nil {
		return nil, r.fail(title, err.Error())
	}

	mol := structure.NewMolecule(strings.TrimSpace(title))
	for i := 0; i < nAtoms; i++ {
		line, ok := r.nextLine()
		if !ok {
			return nil, r.fail(title, fmt.Sprintf("truncated atom block at atom %d", i+1))
		}
		atom, err := parseAtomLine(line)
		if err != nil {
			return nil, r.fail(title, err.Error())
		}
		mol.AddAtom(atom)
	}
	for i := 0; i < nBonds; i++ {
		line, ok := r.nextLine()
		if !ok {
			return nil, r.fail(title, fmt.Sprintf("truncated bond block at bond %d", i+1))
		}
		bond, err := parseBondLine(line)
		if err != nil {
			return nil, r.fail(title, err.Error())
		}
		if err := mol.AddBond(bond); err != nil {
			return nil, r.fail(title, err.Error())
		}
	}

	// Properties block: skip everything up to M  END.
	for {
		line, ok := r.nextLine()
		if !ok {
			return nil, r.fail(title, "missing M  END")
		}
		if strings.TrimSpace(line) == strings.TrimSpace(blockEnd) {
			return mol, nil
		}
	}
}

// readDataItems consumes "> <Name>" blocks up to the record separator or EOF.
func (r *Reader) readDataItems() (map[string]string, error) {
	data := make(map[string]string)
	var name string
	var value []string

	flush := func() {
		if name != "" {
			data[name] = strings.Join(value, "\n")
		}
		name = ""
		value = value[:0]
	}

	for {
		line, ok := r.nextLine()
		if !ok {
			flush()
			return data, nil
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == recordSeparator:
			flush()
			return data, nil
		case strings.HasPrefix(trimmed, ">"):
			flush()
			name = parseDataHeader(trimmed)
		case name != "" && trimmed != "":
			value = append(value, trimmed)
		}
	}
}

// skipToSeparator advances past the current record after a parse failure.
func (r *Reader) skipToSeparator() {
	for {
		line, ok := r.nextLine()
		if !ok || strings.TrimSpace(line) == recordSeparator {
			return
		}
	}
}

func (r *Reader) nextLine() (string, bool) {
	if !r.scanner.Scan() {
		return "", false
	}
	return r.scanner.Text(), true
}

func (r *Reader) fail(title, msg string) error {
	return errors.New(errors.ErrCodeStructureParseFailed,
		fmt.Sprintf("entry %d (%s): %s", r.index, strings.TrimSpace(title), msg))
}

// parseCounts reads the atom and bond counts from a V2000 counts line.
// The fields are fixed-width 3-character columns.
func parseCounts(line string) (atoms, bonds int, err error) {
	if len(line) < 6 {
		return 0, 0, fmt.Errorf("counts line too short: %q", line)
	}
	atoms, err = strconv.Atoi(strings.TrimSpace(line[0:3]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad atom count in %q", line)
	}
	bonds, err = strconv.Atoi(strings.TrimSpace(line[3:6]))
	if err != nil {
		return 0, 0, fmt.Errorf("bad bond count in %q", line)
	}
	if atoms < 0 || bonds < 0 {
		return 0, 0, fmt.Errorf("negative counts in %q", line)
	}
	return atoms, bonds, nil
}

func parseAtomLine(line string) (structure.Atom, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return structure.Atom{}, fmt.Errorf("bad atom line %q", line)
	}
	var coord structure.Vec3
	var err error
	if coord.X, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return structure.Atom{}, fmt.Errorf("bad x coordinate in %q", line)
	}
	if coord.Y, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return structure.Atom{}, fmt.Errorf("bad y coordinate in %q", line)
	}
	if coord.Z, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return structure.Atom{}, fmt.Errorf("bad z coordinate in %q", line)
	}
	sym := structure.NormalizeSymbol(fields[3])
	return structure.Atom{Symbol: sym, Coord: coord}, nil
}

// parseBondLine reads 1-based endpoint indices and the bond order from a
// V2000 bond line, converting endpoints to 0-based.
func parseBondLine(line string) (structure.Bond, error) {
	var a1, a2, order int
	var err error
	if len(line) >= 9 {
		a1, err = strconv.Atoi(strings.TrimSpace(line[0:3]))
		if err == nil {
			a2, err = strconv.Atoi(strings.TrimSpace(line[3:6]))
		}
		if err == nil {
			order, err = strconv.Atoi(strings.TrimSpace(line[6:9]))
		}
	} else {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return structure.Bond{}, fmt.Errorf("bad bond line %q", line)
		}
		if a1, err = strconv.Atoi(fields[0]); err == nil {
			if a2, err = strconv.Atoi(fields[1]); err == nil {
				order, err = strconv.Atoi(fields[2])
			}
		}
	}
	if err != nil {
		return structure.Bond{}, fmt.Errorf("bad bond line %q", line)
	}
	if a1 < 1 || a2 < 1 {
		return structure.Bond{}, fmt.Errorf("bond indices must be 1-based in %q", line)
	}
	return structure.Bond{A1: a1 - 1, A2: a2 - 1, Order: structure.BondOrder(order)}, nil
}

// parseDataHeader extracts the field name from a data item header such as
// "> <Similarity>" or ">  <Name> (extra)".
func parseDataHeader(line string) string {
	open := strings.Index(line, "<")
	if open < 0 {
		return ""
	}
	end := strings.Index(line[open:], ">")
	if end < 0 {
		return ""
	}
	return line[open+1 : open+end]
}

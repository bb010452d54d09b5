package sdf

import (
	"fmt"
	"io"
	"strings"

	"github.com/crystalytics/fragscreen/internal/domain/structure"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// programStamp fills the molfile program line.  It is fixed so that encoded
// output is deterministic.
const programStamp = "  fragscreen"

// DataItem is one "> <Name>" annotation attached to a written entry.
type DataItem struct {
	Name  string
	Value string
}

// Encode renders a molecule as a single V2000 molfile string, terminated by
// "M  END" and a newline.  Atom counts above the V2000 limit of 999 are
// rejected.
func Encode(m *structure.Molecule) (string, error) {
	if m == nil {
		return "", errors.New(errors.ErrCodeStructureWriteFailed, "nil molecule")
	}
	if len(m.Atoms) > 999 || len(m.Bonds) > 999 {
		return "", errors.New(errors.ErrCodeStructureWriteFailed,
			fmt.Sprintf("%s exceeds V2000 limits: %d atoms, %d bonds",
				m.Identifier, len(m.Atoms), len(m.Bonds)))
	}

	var b strings.Builder
	b.WriteString(m.Identifier)
	b.WriteByte('\n')
	b.WriteString(programStamp)
	b.WriteByte('\n')
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", len(m.Atoms), len(m.Bonds))
	for _, a := range m.Atoms {
		fmt.Fprintf(&b, "%10.4f%10.4f%10.4f %-3s 0  0  0  0  0  0  0  0  0  0  0  0\n",
			a.Coord.X, a.Coord.Y, a.Coord.Z, a.Symbol)
	}
	for _, bd := range m.Bonds {
		fmt.Fprintf(&b, "%3d%3d%3d  0\n", bd.A1+1, bd.A2+1, int(bd.Order))
	}
	b.WriteString(blockEnd)
	b.WriteByte('\n')
	return b.String(), nil
}

// Writer emits a multi-entry SDF document, one record separator per entry.
type Writer struct {
	w     io.Writer
	count int
}

// NewWriter wraps w in an SDF entry writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEntry appends one molecule with its data items and the record
// separator.
func (sw *Writer) WriteEntry(m *structure.Molecule, items ...DataItem) error {
	block, err := Encode(m)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(block)
	for _, it := range items {
		fmt.Fprintf(&b, "> <%s>\n%s\n\n", it.Name, it.Value)
	}
	b.WriteString(recordSeparator)
	b.WriteByte('\n')

	if _, err := io.WriteString(sw.w, b.String()); err != nil {
		return errors.Wrap(err, errors.ErrCodeStructureWriteFailed,
			fmt.Sprintf("write entry %s", m.Identifier))
	}
	sw.count++
	return nil
}

// WriteRaw appends an already encoded molfile block, adding data items and
// the record separator.  The block is expected to end in "M  END"; a
// trailing separator of its own is stripped first.
func (sw *Writer) WriteRaw(block string, items ...DataItem) error {
	block = strings.TrimRight(block, "\n")
	block = strings.TrimSuffix(block, recordSeparator)
	block = strings.TrimRight(block, "\n")
	if block == "" {
		return errors.New(errors.ErrCodeStructureWriteFailed, "empty sdf block")
	}

	var b strings.Builder
	b.WriteString(block)
	b.WriteByte('\n')
	for _, it := range items {
		fmt.Fprintf(&b, "> <%s>\n%s\n\n", it.Name, it.Value)
	}
	b.WriteString(recordSeparator)
	b.WriteByte('\n')

	if _, err := io.WriteString(sw.w, b.String()); err != nil {
		return errors.Wrap(err, errors.ErrCodeStructureWriteFailed, "write raw entry")
	}
	sw.count++
	return nil
}

// Count returns the number of entries written so far.
func (sw *Writer) Count() int {
	return sw.count
}

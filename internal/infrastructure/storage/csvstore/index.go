package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/crystalytics/fragscreen/internal/domain/fragment"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// Index CSV column names.  The index carries one row per dataset record.
const (
	colChunkID    = "chunk_id"
	colRowInChunk = "row_in_chunk"
	colEntryID    = "entry_id"
	colFormula    = "formula"
)

// IndexFilter narrows an index scan to the rows worth reading: records of
// population members whose signature the target set also contains.  IDs must
// be pre-normalised via NormalizeID.
type IndexFilter struct {
	IDs        map[string]struct{}
	Signatures map[fragment.Signature]struct{}
}

// IndexSelection is the outcome of an index scan: per-chunk row sets
// addressing the dataset rows to load, plus scan statistics.  Row numbers
// are chunk-local and zero-based.
type IndexSelection struct {
	Rows       map[int]*roaring.Bitmap
	MatchedIDs map[string]struct{}
	Scanned    int
	Skipped    int
}

// Total counts the selected dataset rows across all chunks.
func (s *IndexSelection) Total() int {
	total := 0
	for _, bm := range s.Rows {
		total += int(bm.GetCardinality())
	}
	return total
}

// Empty reports whether the scan selected nothing.
func (s *IndexSelection) Empty() bool {
	return len(s.Rows) == 0
}

// ScanIndex streams the index CSV and collects the rows matching the
// filter.  Malformed rows are counted and skipped, never fatal; a missing
// or wrong header is.
func ScanIndex(r io.Reader, filter IndexFilter) (*IndexSelection, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	cols, err := readHeader(cr, colChunkID, colRowInChunk, colEntryID, colFormula)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexOpenFailed, "index header")
	}

	sel := &IndexSelection{
		Rows:       make(map[int]*roaring.Bitmap),
		MatchedIDs: make(map[string]struct{}),
	}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		sel.Scanned++
		if err != nil {
			sel.Skipped++
			continue
		}

		chunkID, err := strconv.Atoi(record[cols[colChunkID]])
		if err != nil || chunkID < 0 {
			sel.Skipped++
			continue
		}
		rowInChunk, err := strconv.Atoi(record[cols[colRowInChunk]])
		if err != nil || rowInChunk < 0 {
			sel.Skipped++
			continue
		}
		entryID := NormalizeID(record[cols[colEntryID]])
		sig, err := fragment.ParseSignature(record[cols[colFormula]])
		if err != nil {
			sel.Skipped++
			continue
		}

		if _, ok := filter.IDs[entryID]; !ok {
			continue
		}
		if _, ok := filter.Signatures[sig]; !ok {
			continue
		}

		bm := sel.Rows[chunkID]
		if bm == nil {
			bm = roaring.New()
			sel.Rows[chunkID] = bm
		}
		bm.Add(uint32(rowInChunk))
		sel.MatchedIDs[entryID] = struct{}{}
	}
	return sel, nil
}

// readHeader reads the CSV header and maps the required column names to
// their positions.
func readHeader(cr *csv.Reader, required ...string) (map[string]int, error) {
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

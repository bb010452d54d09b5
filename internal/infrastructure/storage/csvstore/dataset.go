package csvstore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/crystalytics/fragscreen/internal/domain/fragment"
	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/logging"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// Dataset CSV column names beyond those shared with the index.
const (
	colIdentifier  = "identifier"
	colFingerprint = "fp"
	colSDF         = "sdf"
	colAtomCount   = "n_atoms"
)

// LoadStats summarises one selective dataset pass.
type LoadStats struct {
	ChunksRead    int
	ChunksSkipped int
	RowsLoaded    int
	RowsSkipped   int
	RowsMissing   int
}

// ReadSelectedRows streams the dataset CSV once and materialises only the
// rows named by the index selection, grouped by signature.  Rows belonging
// to unlisted chunks are passed over without parsing their contents.  The
// stream stops as soon as every listed row has been accounted for.
//
// A malformed listed row is skipped with a diagnostic; a listed offset the
// dataset never produces is reported per chunk after the pass.  Neither is
// fatal.
func ReadSelectedRows(ctx context.Context, r io.Reader, sel *IndexSelection, chunkSize int, log logging.Logger) (map[fragment.Signature][]*fragment.Record, *LoadStats, error) {
	if chunkSize <= 0 {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "chunk size must be positive")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	cols, err := readHeader(cr, colFormula, colFingerprint, colSDF, colAtomCount)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeDatasetOpenFailed, "dataset header")
	}

	groups := make(map[fragment.Signature][]*fragment.Record)
	stats := &LoadStats{}
	want := sel.Total()
	if want == 0 {
		return groups, stats, nil
	}

	remaining := make(map[int]int, len(sel.Rows))
	for id, bm := range sel.Rows {
		remaining[id] = int(bm.GetCardinality())
	}

	row := 0
	chunk := -1
	var listed *roaring.Bitmap
	for {
		record, readErr := cr.Read()
		if readErr == io.EOF {
			break
		}

		c := row / chunkSize
		local := row % chunkSize
		row++
		if c != chunk {
			chunk = c
			listed = sel.Rows[c]
			if listed != nil {
				stats.ChunksRead++
			} else {
				stats.ChunksSkipped++
			}
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}
		if listed == nil || !listed.Contains(uint32(local)) {
			continue
		}
		remaining[c]--

		var rec *fragment.Record
		err := readErr
		if err == nil {
			rec, err = parseDatasetRow(record, cols)
		}
		if err != nil {
			stats.RowsSkipped++
			log.Warn("dataset row unusable",
				logging.Int("chunk", c),
				logging.Int("row", local),
				logging.Err(err))
			continue
		}
		groups[rec.Signature] = append(groups[rec.Signature], rec)
		stats.RowsLoaded++
		if stats.RowsLoaded+stats.RowsSkipped == want {
			break
		}
	}

	// Listed offsets the stream never reached point at index/dataset drift.
	ids := make([]int, 0, len(remaining))
	for id, n := range remaining {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	for _, id := range ids {
		stats.RowsMissing += remaining[id]
		log.Warn("indexed rows absent from dataset chunk",
			logging.Int("chunk", id),
			logging.Int("missing", remaining[id]))
	}
	return groups, stats, nil
}

// parseDatasetRow converts one listed CSV record into a fragment record.
func parseDatasetRow(record []string, cols map[string]int) (*fragment.Record, error) {
	sig, err := fragment.ParseSignature(record[cols[colFormula]])
	if err != nil {
		return nil, err
	}
	fp, err := parseFingerprint(record[cols[colFingerprint]])
	if err != nil {
		return nil, fmt.Errorf("fp column: %w", err)
	}
	nAtoms, err := strconv.Atoi(strings.TrimSpace(record[cols[colAtomCount]]))
	if err != nil {
		return nil, fmt.Errorf("n_atoms column: %w", err)
	}
	sdf := record[cols[colSDF]]
	if strings.TrimSpace(sdf) == "" {
		return nil, fmt.Errorf("sdf column is empty")
	}
	return &fragment.Record{
		Signature:   sig,
		AtomCount:   nAtoms,
		SDF:         sdf,
		Fingerprint: fp,
	}, nil
}

// parseFingerprint reads the bracketed vector form the dataset stores,
// e.g. "[0.1, -2.5, 0.0]".
func parseFingerprint(raw string) ([]float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty fingerprint vector")
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("fingerprint component %q: %w", strings.TrimSpace(p), err)
		}
		out = append(out, v)
	}
	return out, nil
}

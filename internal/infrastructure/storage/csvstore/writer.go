package csvstore

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/crystalytics/fragscreen/internal/domain/fragment"
	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/logging"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// IndexBuildStats summarises one index build.
type IndexBuildStats struct {
	Rows    int
	Indexed int
	Skipped int
	Chunks  int
}

// BuildIndex streams a dataset CSV once and writes its row index: one
// chunk_id,row_in_chunk,entry_id,formula line per usable dataset row.
// Offsets are chunk-local and zero-based.  Entry ids are canonicalised the
// way the index scan expects them.  A malformed dataset row keeps its row
// position but produces no index entry.
func BuildIndex(ctx context.Context, dataset io.Reader, out io.Writer, chunkSize int, log logging.Logger) (*IndexBuildStats, error) {
	if chunkSize <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "chunk size must be positive")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	cr := csv.NewReader(dataset)
	cr.ReuseRecord = true
	cols, err := readHeader(cr, colIdentifier, colFormula)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatasetOpenFailed, "dataset header")
	}

	cw := csv.NewWriter(out)
	if err := cw.Write([]string{colChunkID, colRowInChunk, colEntryID, colFormula}); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexWriteFailed, "index header")
	}

	stats := &IndexBuildStats{}
	row := 0
	for {
		record, readErr := cr.Read()
		if readErr == io.EOF {
			break
		}

		c := row / chunkSize
		local := row % chunkSize
		row++
		stats.Rows++
		if local == 0 {
			stats.Chunks++
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		if readErr != nil {
			stats.Skipped++
			log.Warn("dataset row unreadable",
				logging.Int("chunk", c),
				logging.Int("row", local),
				logging.Err(readErr))
			continue
		}

		id := NormalizeID(record[cols[colIdentifier]])
		if id == "" {
			stats.Skipped++
			log.Warn("dataset row has no identifier",
				logging.Int("chunk", c),
				logging.Int("row", local))
			continue
		}
		sig, err := fragment.ParseSignature(record[cols[colFormula]])
		if err != nil {
			stats.Skipped++
			log.Warn("dataset row has no usable formula",
				logging.Int("chunk", c),
				logging.Int("row", local),
				logging.Err(err))
			continue
		}

		line := []string{strconv.Itoa(c), strconv.Itoa(local), id, sig.String()}
		if err := cw.Write(line); err != nil {
			return stats, errors.Wrap(err, errors.ErrCodeIndexWriteFailed, "index row")
		}
		stats.Indexed++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return stats, errors.Wrap(err, errors.ErrCodeIndexWriteFailed, "flush index")
	}
	return stats, nil
}

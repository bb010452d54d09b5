// Package csvstore reads and writes the flat-file population store: the
// membership list, the chunked fragment dataset, and the sparse row index
// that makes selective retrieval possible.  The two-pass Loader is the only
// way the pipeline touches the dataset; it never materialises more than the
// indexed rows of one chunk at a time.
package csvstore

import (
	"context"

	"github.com/crystalytics/fragscreen/internal/domain/fragment"
	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/logging"
	"github.com/crystalytics/fragscreen/internal/infrastructure/storage/source"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// Sources names the three inputs of a load.  Each is resolved through the
// Loader's Opener, so the same Loader serves local files, gzip files, and
// object-store keys.
type Sources struct {
	Population string
	Index      string
	Dataset    string
}

// Result carries the loaded population groups plus the counts the run
// summary and metrics report about the load.
type Result struct {
	Groups     map[fragment.Signature][]*fragment.Record
	Population int
	Selection  *IndexSelection
	Stats      *LoadStats
}

// Records counts the loaded records across all groups.
func (r *Result) Records() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g)
	}
	return n
}

// Loader performs the two-pass selective retrieval: scan the index for rows
// owned by population members carrying a wanted signature, then materialise
// exactly those dataset rows.
type Loader struct {
	opener    source.Opener
	chunkSize int
	log       logging.Logger
}

// NewLoader wires a Loader.  chunkSize must match the chunk size the index
// was built with.
func NewLoader(opener source.Opener, chunkSize int, log logging.Logger) (*Loader, error) {
	if opener == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "loader requires a source opener")
	}
	if chunkSize <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "chunk size must be positive")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Loader{opener: opener, chunkSize: chunkSize, log: log}, nil
}

// Load runs both passes.  An empty index selection is not an error: the
// result simply carries no groups, and the caller reports zero matches.  An
// empty population file is reported as ErrCodePopulationEmpty so the caller
// can tell "nothing requested" from "nothing found".
func (l *Loader) Load(ctx context.Context, src Sources, wanted map[fragment.Signature]struct{}) (*Result, error) {
	ids, err := l.readPopulation(ctx, src.Population)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.New(errors.ErrCodePopulationEmpty,
			"population file lists no identifiers").WithDetail(src.Population)
	}
	l.log.Info("population membership loaded",
		logging.Int("identifiers", len(ids)),
		logging.String("source", src.Population))

	sel, err := l.scanIndex(ctx, src.Index, IndexFilter{IDs: ids, Signatures: wanted})
	if err != nil {
		return nil, err
	}
	l.log.Info("index scanned",
		logging.Int("rows", sel.Scanned),
		logging.Int("skipped", sel.Skipped),
		logging.Int("selected", sel.Total()),
		logging.Int("chunks", len(sel.Rows)),
		logging.Int("matched_ids", len(sel.MatchedIDs)))

	res := &Result{
		Groups:     make(map[fragment.Signature][]*fragment.Record),
		Population: len(ids),
		Selection:  sel,
		Stats:      &LoadStats{},
	}
	if sel.Empty() {
		l.log.Warn("index selected no population rows; nothing to compare",
			logging.String("index", src.Index))
		return res, nil
	}

	groups, stats, err := l.readDataset(ctx, src.Dataset, sel)
	if err != nil {
		return nil, err
	}
	res.Groups = groups
	res.Stats = stats
	l.log.Info("population records loaded",
		logging.Int("records", res.Records()),
		logging.Int("groups", len(groups)),
		logging.Int("rows_skipped", stats.RowsSkipped),
		logging.Int("rows_missing", stats.RowsMissing),
		logging.Int("chunks_read", stats.ChunksRead),
		logging.Int("chunks_skipped", stats.ChunksSkipped))
	return res, nil
}

func (l *Loader) readPopulation(ctx context.Context, name string) (map[string]struct{}, error) {
	rc, err := l.opener.Open(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePopulationOpenFailed, name)
	}
	defer rc.Close()
	ids, err := ReadPopulationIDs(rc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePopulationOpenFailed, name)
	}
	return IDSet(ids), nil
}

func (l *Loader) scanIndex(ctx context.Context, name string, filter IndexFilter) (*IndexSelection, error) {
	rc, err := l.opener.Open(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIndexOpenFailed, name)
	}
	defer rc.Close()
	return ScanIndex(rc, filter)
}

func (l *Loader) readDataset(ctx context.Context, name string, sel *IndexSelection) (map[fragment.Signature][]*fragment.Record, *LoadStats, error) {
	rc, err := l.opener.Open(ctx, name)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeDatasetOpenFailed, name)
	}
	defer rc.Close()
	return ReadSelectedRows(ctx, rc, sel, l.chunkSize, l.log)
}

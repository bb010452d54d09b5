// Package report writes the run outputs: one SDF file with the canonical
// target fragments per screened structure, one SDF match file per compared
// fragment, and the machine-readable run summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crystalytics/fragscreen/internal/domain/fragment"
	"github.com/crystalytics/fragscreen/internal/domain/matching"
	"github.com/crystalytics/fragscreen/internal/infrastructure/chemio/sdf"
	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/logging"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// Data item names attached to match entries.
const (
	itemSimilarity = "Similarity"
	itemDistance   = "DistanceDifference"
)

// errorValue marks a match whose distance could not be recovered from its
// geometry at report time.
const errorValue = "ERROR"

// TargetReport carries everything the writer emits for one screened target.
type TargetReport struct {
	// Index is the target's position in the input, 0-based.  File names
	// start with it so reports sort in input order.
	Index int

	// Entry is the target structure's identifier.
	Entry string

	// Kept lists the deduplicated target fragments in extraction order.
	Kept []*fragment.Record

	// Results lists the comparison outcomes to report, already ordered;
	// match files are numbered from 1 in this order.
	Results []*matching.TargetResult
}

// TargetSummary is the per-target section of the run summary.
type TargetSummary struct {
	Index     int    `json:"index"`
	Entry     string `json:"entry"`
	Skipped   bool   `json:"skipped,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Fragments int    `json:"fragments_extracted"`
	Kept      int    `json:"fragments_kept"`
	Compared  int    `json:"fragments_compared"`
	Matched   int    `json:"fragments_matched"`
}

// Summary is the run summary serialised to summary.json.
type Summary struct {
	RunID          string          `json:"run_id"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Targets        []TargetSummary `json:"targets"`
	PopulationSize int             `json:"population_size"`
	RecordsLoaded  int             `json:"records_loaded"`
	Comparisons    int             `json:"comparison_tasks"`
	Matched        int             `json:"fragments_matched"`
	Compared       int             `json:"fragments_compared"`
}

// Writer writes report files into a single output directory.
type Writer struct {
	dir string
	log logging.Logger
}

// NewWriter creates the output directory if needed and returns a writer.
func NewWriter(dir string, log logging.Logger) (*Writer, error) {
	if dir == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "report directory is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReportWriteFailed, dir)
	}
	return &Writer{dir: dir, log: log}, nil
}

// WriteTarget writes the unique-fragments file and one match file per
// comparison result.  It returns the paths written.
func (w *Writer) WriteTarget(tr *TargetReport) ([]string, error) {
	if tr == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "nil target report")
	}
	paths := make([]string, 0, len(tr.Results)+1)

	uniquePath, err := w.writeUniqueFragments(tr)
	if err != nil {
		return paths, err
	}
	paths = append(paths, uniquePath)

	for i, res := range tr.Results {
		p, err := w.writeMatches(tr, i+1, res)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (w *Writer) writeUniqueFragments(tr *TargetReport) (string, error) {
	name := fmt.Sprintf("%d_%s_target_unique_fragments.sdf", tr.Index, sanitizeName(tr.Entry))
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeReportWriteFailed, path)
	}
	defer f.Close()

	sw := sdf.NewWriter(f)
	for _, rec := range tr.Kept {
		if err := sw.WriteRaw(rec.SDF); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeReportWriteFailed, path)
		}
	}
	w.log.Debug("unique fragments written",
		logging.String("path", path),
		logging.Int("fragments", sw.Count()))
	return path, nil
}

func (w *Writer) writeMatches(tr *TargetReport, ordinal int, res *matching.TargetResult) (string, error) {
	name := fmt.Sprintf("%d_%s_frag%d_matches.sdf", tr.Index, sanitizeName(tr.Entry), ordinal)
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeReportWriteFailed, path)
	}
	defer f.Close()

	sw := sdf.NewWriter(f)
	if err := sw.WriteRaw(res.TargetSDF); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeReportWriteFailed, path)
	}
	for _, m := range res.TopMatches {
		if err := sw.WriteRaw(m.SDF, annotate(res, m)); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeReportWriteFailed, path)
		}
	}
	w.log.Debug("match file written",
		logging.String("path", path),
		logging.Int("matches", len(res.TopMatches)))
	return path, nil
}

// WriteSummary writes the run summary to summary.json.
func (w *Writer) WriteSummary(s *Summary) (string, error) {
	path := filepath.Join(w.dir, "summary.json")
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeReportWriteFailed, "marshal summary")
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeReportWriteFailed, path)
	}
	return path, nil
}

// annotate renders the data item for one match block.  Two-atom targets
// report the recomputed interatomic distance difference; everything else
// reports the match score.
func annotate(res *matching.TargetResult, m matching.Match) sdf.DataItem {
	if res.AtomCount == 2 {
		diff, err := distanceDifference(res.TargetSDF, m.SDF)
		if err != nil {
			return sdf.DataItem{Name: itemDistance, Value: errorValue}
		}
		return sdf.DataItem{Name: itemDistance, Value: fmt.Sprintf("%.4f", diff)}
	}
	return sdf.DataItem{Name: itemSimilarity, Value: fmt.Sprintf("%.4f", m.Score)}
}

// distanceDifference recovers both geometries and returns the absolute
// interatomic distance difference.
func distanceDifference(targetSDF, matchSDF string) (float64, error) {
	tm, err := sdf.Decode(targetSDF)
	if err != nil {
		return 0, err
	}
	cm, err := sdf.Decode(matchSDF)
	if err != nil {
		return 0, err
	}
	dt, err := tm.InteratomicDistance()
	if err != nil {
		return 0, err
	}
	dc, err := cm.InteratomicDistance()
	if err != nil {
		return 0, err
	}
	diff := dt - dc
	if diff < 0 {
		diff = -diff
	}
	return diff, nil
}

// sanitizeName keeps entry identifiers safe to embed in file names.
func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, s)
}

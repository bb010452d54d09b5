// Package screening wires the pipeline behind one application service:
// target preparation, fragment deduplication, indexed population loading,
// parallel group matching, aggregation, and report writing.  The service
// owns orchestration only; the chemistry lives in the domain packages and
// the oracles are injected ports.
package screening

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/crystalytics/fragscreen/internal/config"
	"github.com/crystalytics/fragscreen/internal/domain/fragment"
	"github.com/crystalytics/fragscreen/internal/domain/matching"
	"github.com/crystalytics/fragscreen/internal/domain/structure"
	"github.com/crystalytics/fragscreen/internal/infrastructure/chemio/sdf"
	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/logging"
	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/prometheus"
	"github.com/crystalytics/fragscreen/internal/infrastructure/report"
	"github.com/crystalytics/fragscreen/internal/infrastructure/storage/csvstore"
	"github.com/crystalytics/fragscreen/internal/intelligence/shapefp"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// PopulationLoader retrieves the population fragment groups for a run.
// *csvstore.Loader is the production implementation.
type PopulationLoader interface {
	Load(ctx context.Context, src csvstore.Sources, wanted map[fragment.Signature]struct{}) (*csvstore.Result, error)
}

// ReportWriter lands run outputs.  *report.Writer is the production
// implementation.
type ReportWriter interface {
	WriteTarget(tr *report.TargetReport) ([]string, error)
	WriteSummary(s *report.Summary) (string, error)
}

// Deps carries the service's collaborators.  Loader is required; Reports is
// required when output writing is enabled.  Every nil oracle port falls back
// to the production implementation: the SDF codec for serialisation and
// two-atom geometry, the shape fingerprint for identity and similarity.
type Deps struct {
	Loader  PopulationLoader
	Reports ReportWriter

	Encoder  fragment.Encoder
	Printer  fragment.Fingerprinter
	Scorer   fragment.Scorer
	Key      matching.KeyFunc
	Distance matching.DistanceFunc

	Logger  logging.Logger
	Metrics *prometheus.PipelineMetrics
}

func applyDefaults(d *Deps) {
	if d.Encoder == nil {
		d.Encoder = fragment.EncoderFunc(sdf.Encode)
	}
	if d.Printer == nil {
		d.Printer = fragment.FingerprinterFunc(shapefp.Fingerprint)
	}
	if d.Scorer == nil {
		d.Scorer = fragment.ScorerFunc(shapefp.Similarity)
	}
	if d.Key == nil {
		d.Key = shapefp.Key
	}
	if d.Distance == nil {
		d.Distance = sdfDistance
	}
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	if d.Metrics == nil {
		d.Metrics = prometheus.NewPipelineMetrics(prometheus.NewNopCollector())
	}
}

// sdfDistance recovers the interatomic distance of a serialised two-atom
// fragment.
func sdfDistance(raw string) (float64, error) {
	m, err := sdf.Decode(raw)
	if err != nil {
		return 0, err
	}
	return m.InteratomicDistance()
}

// ---------------------------------------------------------------------------
// Request / Result DTOs
// ---------------------------------------------------------------------------

// Request describes one screening run: the parsed target structures in
// input order and the population sources to screen them against.
type Request struct {
	Targets []*structure.Molecule
	Sources csvstore.Sources
}

// RunResult is what a completed run hands back to the caller.
type RunResult struct {
	RunID   string
	Summary *report.Summary
	// Paths lists every report file written, unique-fragment files first
	// per target, then the run summary.
	Paths []string
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service runs screening end to end.  It is safe to reuse across runs; all
// per-run state lives on the stack of Run.
type Service struct {
	cfg      config.ScreeningConfig
	out      config.OutputConfig
	loader   PopulationLoader
	reports  ReportWriter
	builder  *fragment.Builder
	dedup    *fragment.Deduplicator
	comparer *matching.Comparer
	key      matching.KeyFunc
	workers  int
	log      logging.Logger
	metrics  *prometheus.PipelineMetrics
}

// NewService validates the configuration, wires the dedup and comparison
// stages, and returns a ready service.
func NewService(cfg config.ScreeningConfig, out config.OutputConfig, deps Deps) (*Service, error) {
	applyDefaults(&deps)
	if deps.Loader == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "screening service requires a population loader")
	}
	if (out.WriteSDF || out.WriteSummary) && deps.Reports == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "screening service requires a report writer when output is enabled")
	}

	dedup, err := fragment.NewDeduplicator(deps.Scorer, cfg.DedupThreshold)
	if err != nil {
		return nil, err
	}
	comparer, err := matching.NewComparer(matching.Options{
		Threshold:         cfg.MatchThreshold,
		DistanceTolerance: cfg.DistanceTolerance,
		TopK:              cfg.TopK,
		Scorer:            deps.Scorer,
		Key:               deps.Key,
		Distance:          deps.Distance,
	})
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Service{
		cfg:      cfg,
		out:      out,
		loader:   deps.Loader,
		reports:  deps.Reports,
		builder:  fragment.NewBuilder(deps.Encoder, deps.Printer),
		dedup:    dedup,
		comparer: comparer,
		key:      deps.Key,
		workers:  workers,
		log:      deps.Logger,
		metrics:  deps.Metrics,
	}, nil
}

// Run screens every target of the request against the population and writes
// the configured reports.  Per-item failures (an unusable fragment, an
// unscorable pair, a structure with no screenable component) are logged and
// skipped; only unopenable sources, cancellation, and report write failures
// abort the run.
func (s *Service) Run(ctx context.Context, req *Request) (*RunResult, error) {
	res, err := s.run(ctx, req)
	prometheus.RecordRun(s.metrics, err)
	return res, err
}

func (s *Service) run(ctx context.Context, req *Request) (*RunResult, error) {
	if req == nil || len(req.Targets) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no target structures to screen")
	}

	runID := uuid.NewString()
	started := time.Now().UTC()
	log := s.log.With(logging.String("run_id", runID))
	log.Info("screening run started",
		logging.Int("targets", len(req.Targets)),
		logging.Int("workers", s.workers),
		logging.String("dataset", req.Sources.Dataset))

	prepStart := time.Now()
	prepared, dedupDur := s.prepareTargets(log, req.Targets)
	prometheus.ObserveStage(s.metrics, prometheus.StagePrepare, time.Since(prepStart)-dedupDur)
	prometheus.ObserveStage(s.metrics, prometheus.StageDedup, dedupDur)

	wanted := wantedSignatures(prepared)
	var loaded *csvstore.Result
	if len(wanted) == 0 {
		log.Warn("no target fragments survived preparation; nothing to screen")
	} else {
		loadStart := time.Now()
		res, err := s.loader.Load(ctx, req.Sources, wanted)
		prometheus.ObserveStage(s.metrics, prometheus.StageLoad, time.Since(loadStart))
		if err != nil {
			prometheus.RecordError(s.metrics, "loader", err)
			return nil, err
		}
		loaded = res
		s.recordLoad(loaded)
	}

	tasks := 0
	if loaded != nil && loaded.Records() > 0 {
		n, err := s.match(ctx, log, prepared, loaded.Groups)
		if err != nil {
			return nil, err
		}
		tasks = n
	}

	summary, paths, err := s.writeReports(prepared, loaded, runID, started, tasks)
	if err != nil {
		prometheus.RecordError(s.metrics, "report", err)
		return nil, err
	}

	log.Info("screening run finished",
		logging.Int("targets", len(prepared)),
		logging.Int("population", summary.PopulationSize),
		logging.Int("records", summary.RecordsLoaded),
		logging.Int("comparison_tasks", summary.Comparisons),
		logging.Int("fragments_compared", summary.Compared),
		logging.Int("fragments_matched", summary.Matched),
		logging.Duration("elapsed", time.Since(started)))

	return &RunResult{RunID: runID, Summary: summary, Paths: paths}, nil
}

// ---------------------------------------------------------------------------
// Target preparation
// ---------------------------------------------------------------------------

// preparedTarget accumulates everything the later stages and the report
// need about one input structure.
type preparedTarget struct {
	index     int
	entry     string
	extracted int
	records   []*fragment.Record
	kept      []*fragment.Record
	groups    map[fragment.Signature][]*fragment.Record
	skipped   bool
	reason    string

	results []*matching.TargetResult
	matched int
}

// prepareTargets reduces each structure to its component of interest,
// extracts and fingerprints its fragments, and deduplicates them.  A target
// that fails component selection is marked skipped; the run continues.
func (s *Service) prepareTargets(log logging.Logger, targets []*structure.Molecule) ([]*preparedTarget, time.Duration) {
	prepared := make([]*preparedTarget, 0, len(targets))
	var dedupDur time.Duration

	for i, mol := range targets {
		pt := &preparedTarget{index: i, entry: entryName(mol, i)}
		prepared = append(prepared, pt)

		comp, err := structure.ComponentOfInterest(mol, s.cfg.MinComponentAtoms)
		if err != nil {
			pt.skipped = true
			pt.reason = err.Error()
			s.metrics.TargetsTotal.WithLabelValues("skipped").Inc()
			prometheus.RecordError(s.metrics, "prepare", err)
			log.Warn("target skipped",
				logging.String("entry", pt.entry),
				logging.Err(err))
			continue
		}

		frags := fragment.Extract(comp)
		pt.extracted = len(frags)
		s.metrics.FragmentsExtracted.WithLabelValues().Add(float64(len(frags)))

		for _, frag := range frags {
			rec, err := s.builder.Build(frag)
			if err != nil {
				prometheus.RecordError(s.metrics, "prepare", err)
				log.Warn("fragment unusable",
					logging.String("entry", pt.entry),
					logging.String("fragment", frag.Identifier),
					logging.Err(err))
				continue
			}
			pt.records = append(pt.records, rec)
		}

		dedupStart := time.Now()
		groups, diags := s.dedup.Deduplicate(pt.records)
		dedupDur += time.Since(dedupStart)
		for _, d := range diags {
			prometheus.RecordError(s.metrics, "dedup", d)
			log.Warn("fragment dropped during deduplication",
				logging.String("entry", pt.entry),
				logging.Err(d))
		}
		pt.groups = groups
		pt.kept = keptInOrder(pt.records, groups)

		duplicates := len(pt.records) - len(pt.kept) - len(diags)
		s.metrics.DedupTotal.WithLabelValues("kept").Add(float64(len(pt.kept)))
		s.metrics.DedupTotal.WithLabelValues("duplicate").Add(float64(duplicates))
		s.metrics.DedupTotal.WithLabelValues("dropped").Add(float64(len(diags)))
		s.metrics.TargetsTotal.WithLabelValues("screened").Inc()

		log.Info("target prepared",
			logging.String("entry", pt.entry),
			logging.Int("component_atoms", comp.AtomCount()),
			logging.Int("fragments", pt.extracted),
			logging.Int("kept", len(pt.kept)),
			logging.Int("signatures", len(pt.groups)))
	}
	return prepared, dedupDur
}

// entryName falls back to a positional name for structures whose title line
// is blank.
func entryName(m *structure.Molecule, i int) string {
	if m != nil {
		if id := strings.TrimSpace(m.Identifier); id != "" {
			return id
		}
	}
	return fmt.Sprintf("entry_%d", i)
}

// keptInOrder flattens the deduplicated groups back into extraction order.
func keptInOrder(records []*fragment.Record, groups map[fragment.Signature][]*fragment.Record) []*fragment.Record {
	keep := make(map[*fragment.Record]struct{}, len(records))
	for _, g := range groups {
		for _, r := range g {
			keep[r] = struct{}{}
		}
	}
	out := make([]*fragment.Record, 0, len(keep))
	for _, r := range records {
		if _, ok := keep[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// wantedSignatures unions the surviving signatures across all targets; the
// loader only materialises population rows carrying one of them.
func wantedSignatures(prepared []*preparedTarget) map[fragment.Signature]struct{} {
	wanted := make(map[fragment.Signature]struct{})
	for _, pt := range prepared {
		for sig := range pt.groups {
			wanted[sig] = struct{}{}
		}
	}
	return wanted
}

// ---------------------------------------------------------------------------
// Matching
// ---------------------------------------------------------------------------

// groupTask binds one signature-group comparison to the target it belongs
// to, so per-target results never mix.
type groupTask struct {
	target int
	task   *matching.Task
}

// match runs every (target, signature group) comparison on a bounded worker
// pool, then folds the per-task outcomes into per-target result tables.  It
// returns the number of comparison tasks executed.  Only context
// cancellation aborts it.
func (s *Service) match(ctx context.Context, log logging.Logger, prepared []*preparedTarget, population map[fragment.Signature][]*fragment.Record) (int, error) {
	var tasks []groupTask
	for i, pt := range prepared {
		if pt.skipped || len(pt.groups) == 0 {
			continue
		}
		for _, task := range matching.BuildTasks(pt.groups, population) {
			tasks = append(tasks, groupTask{target: i, task: task})
		}
	}
	if len(tasks) == 0 {
		log.Warn("no formula signature shared between targets and population")
		return 0, nil
	}

	compareStart := time.Now()
	slots := make([][]*matching.TargetResult, len(tasks))
	active := s.metrics.ActiveWorkers.WithLabelValues()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range tasks {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			active.Inc()
			defer active.Dec()

			t := tasks[i]
			results, diags := s.comparer.CompareGroup(t.task)
			for _, d := range diags {
				prometheus.RecordError(s.metrics, "matching", d)
				log.Warn("comparison pair skipped",
					logging.String("signature", t.task.Signature.String()),
					logging.Err(d))
			}
			slots[i] = results
			s.metrics.ComparisonsTotal.WithLabelValues().Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeComparisonFailed, "comparison pool aborted")
	}
	prometheus.ObserveStage(s.metrics, prometheus.StageCompare, time.Since(compareStart))

	aggStart := time.Now()
	byTarget := make(map[int]*matching.Aggregator)
	for i, t := range tasks {
		agg := byTarget[t.target]
		if agg == nil {
			agg = matching.NewAggregator(s.cfg.TopK)
			byTarget[t.target] = agg
		}
		agg.Add(slots[i])
	}
	for ti, agg := range byTarget {
		pt := prepared[ti]
		pt.results = s.orderResults(pt.kept, agg)
		pt.matched = agg.MatchedCount()
		s.metrics.MatchesTotal.WithLabelValues().Add(float64(pt.matched))
	}
	prometheus.ObserveStage(s.metrics, prometheus.StageAggregate, time.Since(aggStart))

	return len(tasks), nil
}

// orderResults returns the aggregated results in the order of the kept
// records that produced them, so report files follow extraction order even
// though workers finish in any order.
func (s *Service) orderResults(kept []*fragment.Record, agg *matching.Aggregator) []*matching.TargetResult {
	byKey := make(map[string]*matching.TargetResult, agg.Len())
	for _, r := range agg.Results() {
		byKey[r.Key] = r
	}

	out := make([]*matching.TargetResult, 0, len(byKey))
	seen := make(map[string]struct{}, len(byKey))
	for _, rec := range kept {
		k := s.key(rec.Fingerprint)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if r, ok := byKey[k]; ok {
			out = append(out, r)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Reporting
// ---------------------------------------------------------------------------

// writeReports assembles the run summary and writes the configured output
// files.
func (s *Service) writeReports(prepared []*preparedTarget, loaded *csvstore.Result, runID string, started time.Time, tasks int) (*report.Summary, []string, error) {
	reportStart := time.Now()

	summary := &report.Summary{
		RunID:       runID,
		StartedAt:   started,
		Targets:     make([]report.TargetSummary, 0, len(prepared)),
		Comparisons: tasks,
	}
	if loaded != nil {
		summary.PopulationSize = loaded.Population
		summary.RecordsLoaded = loaded.Records()
	}

	var paths []string
	for _, pt := range prepared {
		summary.Targets = append(summary.Targets, report.TargetSummary{
			Index:     pt.index,
			Entry:     pt.entry,
			Skipped:   pt.skipped,
			Reason:    pt.reason,
			Fragments: pt.extracted,
			Kept:      len(pt.kept),
			Compared:  len(pt.results),
			Matched:   pt.matched,
		})
		summary.Compared += len(pt.results)
		summary.Matched += pt.matched

		if pt.skipped || !s.out.WriteSDF {
			continue
		}
		written, err := s.reports.WriteTarget(&report.TargetReport{
			Index:   pt.index,
			Entry:   pt.entry,
			Kept:    pt.kept,
			Results: pt.results,
		})
		if err != nil {
			return nil, nil, err
		}
		paths = append(paths, written...)
	}

	summary.FinishedAt = time.Now().UTC()
	if s.out.WriteSummary {
		p, err := s.reports.WriteSummary(summary)
		if err != nil {
			return nil, nil, err
		}
		paths = append(paths, p)
	}

	prometheus.ObserveStage(s.metrics, prometheus.StageReport, time.Since(reportStart))
	return summary, paths, nil
}

// recordLoad mirrors the loader's counters into the run metrics.
func (s *Service) recordLoad(res *csvstore.Result) {
	if sel := res.Selection; sel != nil {
		s.metrics.IndexRowsTotal.WithLabelValues("scanned").Add(float64(sel.Scanned))
		s.metrics.IndexRowsTotal.WithLabelValues("selected").Add(float64(sel.Total()))
		s.metrics.IndexRowsTotal.WithLabelValues("skipped").Add(float64(sel.Skipped))
	}
	if st := res.Stats; st != nil {
		s.metrics.ChunksTotal.WithLabelValues("read").Add(float64(st.ChunksRead))
		s.metrics.ChunksTotal.WithLabelValues("skipped").Add(float64(st.ChunksSkipped))
		s.metrics.RecordsTotal.WithLabelValues("loaded").Add(float64(st.RowsLoaded))
		s.metrics.RecordsTotal.WithLabelValues("skipped").Add(float64(st.RowsSkipped))
		s.metrics.RecordsTotal.WithLabelValues("missing").Add(float64(st.RowsMissing))
	}
}

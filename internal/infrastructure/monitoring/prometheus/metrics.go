package prometheus

import (
	"time"

	"github.com/crystalytics/fragscreen/pkg/errors"
)

// Stage label values for PipelineMetrics.StageDuration.
const (
	StagePrepare   = "prepare"
	StageDedup     = "dedup"
	StageLoad      = "load"
	StageCompare   = "compare"
	StageAggregate = "aggregate"
	StageReport    = "report"
)

// PipelineMetrics holds every metric the screening pipeline emits.
type PipelineMetrics struct {
	// Target preparation
	TargetsTotal       CounterVec // "status": screened | skipped
	FragmentsExtracted CounterVec
	DedupTotal         CounterVec // "fate": kept | duplicate | dropped

	// Population load
	IndexRowsTotal CounterVec // "result": scanned | selected | skipped
	ChunksTotal    CounterVec // "result": read | skipped
	RecordsTotal   CounterVec // "result": loaded | skipped | missing

	// Matching
	ComparisonsTotal CounterVec
	MatchesTotal     CounterVec
	ActiveWorkers    GaugeVec

	// Run lifecycle
	StageDuration HistogramVec // "stage"
	RunsTotal     CounterVec   // "status": completed | failed
	ErrorsTotal   CounterVec   // "component", "code"
}

// DefaultStageDurationBuckets covers stages from sub-second extraction to a
// long dataset scan.
var DefaultStageDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300, 600, 1800}

// NewPipelineMetrics registers the pipeline metrics on the collector.
func NewPipelineMetrics(collector MetricsCollector) *PipelineMetrics {
	m := &PipelineMetrics{}

	m.TargetsTotal = collector.RegisterCounter("targets_total", "Target structures by outcome", "status")
	m.FragmentsExtracted = collector.RegisterCounter("fragments_extracted_total", "Fragments extracted from target components")
	m.DedupTotal = collector.RegisterCounter("dedup_fragments_total", "Target fragments by deduplication fate", "fate")

	m.IndexRowsTotal = collector.RegisterCounter("index_rows_total", "Row-index entries by scan result", "result")
	m.ChunksTotal = collector.RegisterCounter("dataset_chunks_total", "Dataset chunks by read result", "result")
	m.RecordsTotal = collector.RegisterCounter("dataset_records_total", "Selected dataset rows by load result", "result")

	m.ComparisonsTotal = collector.RegisterCounter("comparison_tasks_total", "Signature-group comparison tasks executed")
	m.MatchesTotal = collector.RegisterCounter("matches_total", "Target fragments that found a qualifying match")
	m.ActiveWorkers = collector.RegisterGauge("active_workers", "Matcher workers currently running")

	m.StageDuration = collector.RegisterHistogram("stage_duration_seconds", "Pipeline stage wall time", DefaultStageDurationBuckets, "stage")
	m.RunsTotal = collector.RegisterCounter("runs_total", "Screening runs by outcome", "status")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Failures and per-item diagnostics", "component", "code")

	return m
}

// ObserveStage records one stage duration.
func ObserveStage(m *PipelineMetrics, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun counts a finished run under its outcome.
func RecordRun(m *PipelineMetrics, err error) {
	if m == nil {
		return
	}
	status := "completed"
	if err != nil {
		status = "failed"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RecordError counts one failure or per-item diagnostic under the component
// that produced it and the error's code.
func RecordError(m *PipelineMetrics, component string, err error) {
	if m == nil || err == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, errors.GetCode(err).String()).Inc()
}

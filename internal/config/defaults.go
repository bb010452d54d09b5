// Package config provides configuration loading, defaults, and validation for
// fragscreen.
package config

import "runtime"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultDatasetSource = "file"
	DefaultChunkSize     = 100000

	DefaultDedupThreshold    = 0.999
	DefaultMatchThreshold    = 0.99
	DefaultDistanceTolerance = 0.01
	DefaultTopK              = 3
	DefaultMinComponentAtoms = 5

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultOutputDir        = "results"
	DefaultMetricsNamespace = "fragscreen"
)

// ApplyDefaults fills every zero-value field in cfg with the project default.
// Fields already set by the caller are left unchanged so explicit
// configuration always wins.  It must run after unmarshalling and before
// Validate so optional-but-defaulted fields are never seen as missing.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Dataset ───────────────────────────────────────────────────────────────
	if cfg.Dataset.Source == "" {
		cfg.Dataset.Source = DefaultDatasetSource
	}
	if cfg.Dataset.ChunkSize == 0 {
		cfg.Dataset.ChunkSize = DefaultChunkSize
	}

	// ── Screening ─────────────────────────────────────────────────────────────
	if cfg.Screening.DedupThreshold == 0 {
		cfg.Screening.DedupThreshold = DefaultDedupThreshold
	}
	if cfg.Screening.MatchThreshold == 0 {
		cfg.Screening.MatchThreshold = DefaultMatchThreshold
	}
	if cfg.Screening.DistanceTolerance == 0 {
		cfg.Screening.DistanceTolerance = DefaultDistanceTolerance
	}
	if cfg.Screening.TopK == 0 {
		cfg.Screening.TopK = DefaultTopK
	}
	if cfg.Screening.MinComponentAtoms == 0 {
		cfg.Screening.MinComponentAtoms = DefaultMinComponentAtoms
	}
	// Workers 0 is meaningful (one per CPU) and resolved here so the rest of
	// the code never re-checks.
	if cfg.Screening.Workers == 0 {
		cfg.Screening.Workers = runtime.NumCPU()
	}

	// ── Logging ───────────────────────────────────────────────────────────────
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	// ── Output ────────────────────────────────────────────────────────────────
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// NewDefault returns a Config populated entirely with defaults.  Used by
// tests and by the CLI when no config file is supplied.
func NewDefault() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Output.WriteSDF = true
	cfg.Output.WriteSummary = true
	return cfg
}

// Package config defines all configuration structures for fragscreen.
// No I/O or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"

	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// S3Config holds S3/MinIO object-storage parameters used when dataset inputs
// live in a bucket instead of on the local filesystem.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// DatasetConfig locates the fragment population inputs.
type DatasetConfig struct {
	// Source selects where the three inputs are read from:
	// "file" (local paths) or "s3" (object keys in S3.Bucket).
	Source string `mapstructure:"source"`

	// Path is the chunked fragment dataset CSV (or .csv.gz).
	Path string `mapstructure:"path"`

	// IndexPath is the sparse row index CSV (or .csv.gz).
	IndexPath string `mapstructure:"index_path"`

	// PopulationPath is the population membership file, one entry per line.
	PopulationPath string `mapstructure:"population_path"`

	// ChunkSize is the number of data rows per dataset chunk.  It must match
	// the chunk size the row index was built with.
	ChunkSize int `mapstructure:"chunk_size"`

	S3 S3Config `mapstructure:"s3"`
}

// ScreeningConfig holds the comparison tunables.
type ScreeningConfig struct {
	// DedupThreshold is the similarity at or above which two target fragments
	// of the same signature count as duplicates.
	DedupThreshold float64 `mapstructure:"dedup_threshold"`

	// MatchThreshold is the minimum similarity for a population candidate to
	// qualify as a match.
	MatchThreshold float64 `mapstructure:"match_threshold"`

	// DistanceTolerance is the maximum interatomic-distance difference (in Å)
	// for the two-atom comparison path.
	DistanceTolerance float64 `mapstructure:"distance_tolerance"`

	// TopK is the number of best matches retained per target fragment.
	TopK int `mapstructure:"top_k"`

	// Workers bounds the matcher pool.  0 means one worker per CPU.
	Workers int `mapstructure:"workers"`

	// MinComponentAtoms is the smallest component of interest worth screening.
	MinComponentAtoms int `mapstructure:"min_component_atoms"`
}

// OutputConfig controls report writing.
type OutputConfig struct {
	// Dir is the directory match reports and the run summary are written to.
	Dir string `mapstructure:"dir"`

	// WriteSDF toggles per-fragment SDF match files.
	WriteSDF bool `mapstructure:"write_sdf"`

	// WriteSummary toggles the run summary JSON.
	WriteSummary bool `mapstructure:"write_summary"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Listen is the optional address for a /metrics listener during long
	// runs, e.g. ":9090".  Empty disables the listener.
	Listen string `mapstructure:"listen"`

	Namespace string `mapstructure:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.  Every component reads its
// settings from the relevant sub-struct.
type Config struct {
	Logging   logging.Config  `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Screening ScreeningConfig `mapstructure:"screening"`
	Output    OutputConfig    `mapstructure:"output"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the run.
func (c *Config) Validate() error {
	// Dataset
	switch c.Dataset.Source {
	case "file", "s3":
	default:
		return fmt.Errorf("config: dataset.source %q is invalid; expected file|s3", c.Dataset.Source)
	}
	if c.Dataset.Source == "s3" {
		if c.Dataset.S3.Endpoint == "" {
			return fmt.Errorf("config: dataset.s3.endpoint is required when dataset.source is s3")
		}
		if c.Dataset.S3.Bucket == "" {
			return fmt.Errorf("config: dataset.s3.bucket is required when dataset.source is s3")
		}
	}
	if c.Dataset.ChunkSize < 1 {
		return fmt.Errorf("config: dataset.chunk_size must be ≥ 1, got %d", c.Dataset.ChunkSize)
	}

	// Screening
	if c.Screening.DedupThreshold <= 0 || c.Screening.DedupThreshold > 1 {
		return fmt.Errorf("config: screening.dedup_threshold %v is out of range (0, 1]", c.Screening.DedupThreshold)
	}
	if c.Screening.MatchThreshold <= 0 || c.Screening.MatchThreshold > 1 {
		return fmt.Errorf("config: screening.match_threshold %v is out of range (0, 1]", c.Screening.MatchThreshold)
	}
	if c.Screening.DistanceTolerance <= 0 {
		return fmt.Errorf("config: screening.distance_tolerance must be > 0, got %v", c.Screening.DistanceTolerance)
	}
	if c.Screening.TopK < 1 {
		return fmt.Errorf("config: screening.top_k must be ≥ 1, got %d", c.Screening.TopK)
	}
	if c.Screening.Workers < 0 {
		return fmt.Errorf("config: screening.workers must be ≥ 0, got %d", c.Screening.Workers)
	}
	if c.Screening.MinComponentAtoms < 1 {
		return fmt.Errorf("config: screening.min_component_atoms must be ≥ 1, got %d", c.Screening.MinComponentAtoms)
	}

	// Logging
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q is invalid; expected debug|info|warn|error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: logging.format %q is invalid; expected json|console", c.Logging.Format)
	}

	// Output
	if c.Output.Dir == "" {
		return fmt.Errorf("config: output.dir is required")
	}

	return nil
}

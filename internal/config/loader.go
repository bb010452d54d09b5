// Package config provides configuration loading, defaults, and validation for
// fragscreen.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "FRAGSCREEN"

// newViper builds a pre-configured Viper instance: YAML file type,
// FRAGSCREEN_ env prefix, automatic env binding, and a key replacer mapping
// "." → "_" so nested keys like "dataset.chunk_size" resolve to
// "FRAGSCREEN_DATASET_CHUNK_SIZE".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerKeys(v)
	return v
}

// registerKeys declares every configuration key to viper.  Unmarshal only
// honours environment overrides for keys viper already knows about, so each
// leaf key is registered with its default here.
func registerKeys(v *viper.Viper) {
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
	v.SetDefault("logging.output_paths", []string{})
	v.SetDefault("logging.error_output_paths", []string{})

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)

	v.SetDefault("dataset.source", DefaultDatasetSource)
	v.SetDefault("dataset.path", "")
	v.SetDefault("dataset.index_path", "")
	v.SetDefault("dataset.population_path", "")
	v.SetDefault("dataset.chunk_size", DefaultChunkSize)
	v.SetDefault("dataset.s3.endpoint", "")
	v.SetDefault("dataset.s3.access_key", "")
	v.SetDefault("dataset.s3.secret_key", "")
	v.SetDefault("dataset.s3.bucket", "")
	v.SetDefault("dataset.s3.region", "")
	v.SetDefault("dataset.s3.use_ssl", false)

	v.SetDefault("screening.dedup_threshold", DefaultDedupThreshold)
	v.SetDefault("screening.match_threshold", DefaultMatchThreshold)
	v.SetDefault("screening.distance_tolerance", DefaultDistanceTolerance)
	v.SetDefault("screening.top_k", DefaultTopK)
	v.SetDefault("screening.workers", 0)
	v.SetDefault("screening.min_component_atoms", DefaultMinComponentAtoms)

	v.SetDefault("output.dir", DefaultOutputDir)
	v.SetDefault("output.write_sdf", true)
	v.SetDefault("output.write_summary", true)
}

// Load reads the YAML file at configPath, merges FRAGSCREEN_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.  It returns a fully-populated *Config or a descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from FRAGSCREEN_* environment
// variables, with no config file required.  Preferred for containerised
// batch deployments.
//
// Naming convention:
//
//	FRAGSCREEN_<SECTION>_<FIELD>   e.g. FRAGSCREEN_DATASET_PATH
func LoadFromEnv() (*Config, error) {
	v := newViper()
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the newly parsed
// Config whenever the file changes on disk.  Intended for hot-reloading
// non-critical settings, e.g. the log level during a long screening run;
// callers are responsible for applying only the safe subset of changes.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
// A change that fails to parse or validate is dropped without invoking
// onChange, so the application never observes a broken config.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read; callers should have called Load first, so errors here
	// are not surfaced again.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
}

// MustLoad wraps Load and panics on any error.  For use in main() where a
// config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

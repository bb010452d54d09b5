package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultDatasetSource, cfg.Dataset.Source)
	assert.Equal(t, DefaultChunkSize, cfg.Dataset.ChunkSize)
	assert.Equal(t, DefaultDedupThreshold, cfg.Screening.DedupThreshold)
	assert.Equal(t, DefaultMatchThreshold, cfg.Screening.MatchThreshold)
	assert.Equal(t, DefaultDistanceTolerance, cfg.Screening.DistanceTolerance)
	assert.Equal(t, DefaultTopK, cfg.Screening.TopK)
	assert.Equal(t, DefaultMinComponentAtoms, cfg.Screening.MinComponentAtoms)
	assert.Greater(t, cfg.Screening.Workers, 0)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
	assert.Equal(t, DefaultOutputDir, cfg.Output.Dir)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Dataset.ChunkSize = 2500
	cfg.Screening.Workers = 2
	cfg.Screening.TopK = 10
	ApplyDefaults(cfg)

	assert.Equal(t, 2500, cfg.Dataset.ChunkSize)
	assert.Equal(t, 2, cfg.Screening.Workers)
	assert.Equal(t, 10, cfg.Screening.TopK)
}

func TestApplyDefaults_NilConfigDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestNewDefault_IsValid(t *testing.T) {
	cfg := NewDefault()
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Output.WriteSDF)
	assert.True(t, cfg.Output.WriteSummary)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Greater(t, cfg.Processing.NumWorkers, 0)
	assert.Equal(t, 1.0, cfg.Processing.SmoothSigma)
	assert.Equal(t, "series-number", cfg.Grouping.SplitBy)
	assert.Equal(t, 3, cfg.Grouping.OrientationPrecision)
	assert.Equal(t, 10, cfg.Video.FPS)
	assert.True(t, cfg.Output.Verbose)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcmtoolbox.yaml")
	yaml := `
processing:
  numWorkers: 2
  smoothSigma: 0.5
grouping:
  splitBy: orientation
video:
  fps: 24
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Processing.NumWorkers)
	assert.Equal(t, 0.5, cfg.Processing.SmoothSigma)
	assert.Equal(t, "orientation", cfg.Grouping.SplitBy)
	assert.Equal(t, 24, cfg.Video.FPS)
	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Grouping.OrientationPrecision)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dcmtoolbox.yaml")

	cfg := DefaultConfig()
	cfg.Video.FPS = 30
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("processing: ["), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

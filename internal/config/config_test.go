package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/go-bitrate/internal/analysis"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, analysis.DefaultWindowLength, cfg.Analysis.WindowLength)
	assert.Equal(t, analysis.DefaultMaxSamples, cfg.Analysis.MaxSamples)
	assert.Equal(t, "auto", cfg.Probe.Backend)
	assert.Equal(t, "ffprobe", cfg.Probe.FFprobePath)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Jobs)
	assert.False(t, cfg.Cache.Enabled)
	assert.NotEmpty(t, cfg.Cache.Dir)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, `
analysis:
  window_length: 2
  window_step: 0.5
probe:
  backend: MP4
  timeout: 45s
output:
  format: json
jobs: 4
`)
	t.Setenv("BITRATE_JOBS", "8")
	t.Setenv("BITRATE_LOG_LEVEL", "debug")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "text", "")
	flags.Float64("window", analysis.DefaultWindowLength, "")
	require.NoError(t, flags.Parse([]string{"--output", "CSV"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 2.0, cfg.Analysis.WindowLength)
	assert.Equal(t, 0.5, cfg.Analysis.WindowStep)
	assert.Equal(t, "mp4", cfg.Probe.Backend)
	assert.Equal(t, 45*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, 8, cfg.Jobs)
	assert.Equal(t, "debug", cfg.Log.Level)

	opts := cfg.Analysis.Options()
	assert.Equal(t, 2.0, opts.WindowLength)
	assert.Equal(t, 0.5, opts.WindowStep)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"step longer than window": "analysis:\n  window_length: 1\n  window_step: 2\n",
		"negative window":         "analysis:\n  window_length: -1\n",
		"unknown output":          "output:\n  format: xml\n",
		"unknown backend":         "probe:\n  backend: gstreamer\n",
		"zero jobs":               "jobs: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

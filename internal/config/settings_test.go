package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	t.Parallel()
	s := DefaultSettings()
	assert.Equal(t, 10, s.Parallelism)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, 5, s.Retry.MaxAttempts)
	assert.Equal(t, time.Second, s.Retry.InitialDelay)
	assert.Equal(t, 5*time.Minute, s.Timeouts.Read)
	assert.Equal(t, 30*time.Minute, s.Timeouts.Create)
	assert.Equal(t, 20*time.Minute, s.Timeouts.Delete)
	assert.Zero(t, s.LockTimeout)
	assert.NoError(t, s.Validate())
}

func TestLoadSettings_FileEnvAndFlags(t *testing.T) {
	t.Setenv("CONVERGE_RETRY_MAX_ATTEMPTS", "9")
	t.Setenv("CONVERGE_LOG_LEVEL", "warn")

	dir := t.TempDir()
	path := writeFile(t, dir, "settings.yaml", "parallelism: 4\ntimeouts:\n  create: 5m\n  read: 45s\nmetrics:\n  file: /tmp/converge.prom\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	fs.Int("parallelism", 10, "")
	require.NoError(t, fs.Parse([]string{"--log-level=debug"}))

	s, err := LoadSettings(path, fs)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Parallelism, "unchanged flag must not override the file")
	assert.Equal(t, "debug", s.Log.Level, "changed flag overrides env")
	assert.Equal(t, 9, s.Retry.MaxAttempts)
	assert.Equal(t, 5*time.Minute, s.Timeouts.Create)
	assert.Equal(t, 45*time.Second, s.Timeouts.Read)
	assert.Equal(t, "/tmp/converge.prom", s.MetricsFile)
}

func TestLoadSettings_Errors(t *testing.T) {
	t.Parallel()
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	path := writeFile(t, t.TempDir(), "bad.yaml", "parallelism: 0\n")
	_, err = LoadSettings(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parallelism must be at least 1")
}

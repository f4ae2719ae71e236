package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("STRAND_CONFIG", "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100, c.Scheduler.RoutineNum)
	assert.Positive(t, c.Scheduler.ProcessorNum)
	assert.False(t, c.Perf.Enabled)
	assert.Equal(t, 4096, c.Perf.BufferSize)
	assert.Equal(t, 200*time.Millisecond, c.Perf.FlushInterval)
	assert.Equal(t, filepath.Join(home, ".local", "share", "strand", "trace.db"), c.Database.Path)
	require.NoError(t, c.Validate())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "strand.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[scheduler]
routine_num = 8
processor_num = 2

[perf]
enabled = true
flush_interval = "50ms"

[database]
path = "/tmp/strand-test.db"
`), 0o644))
	t.Setenv("STRAND_SCHEDULER_PROCESSOR_NUM", "3")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, c.Scheduler.RoutineNum)
	assert.Equal(t, 3, c.Scheduler.ProcessorNum)
	assert.True(t, c.Perf.Enabled)
	assert.Equal(t, 50*time.Millisecond, c.Perf.FlushInterval)
	assert.Equal(t, "/tmp/strand-test.db", c.Database.Path)
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "env.toml")
	require.NoError(t, os.WriteFile(path, []byte("[scheduler]\nroutine_num = 12\n"), 0o644))
	t.Setenv("STRAND_CONFIG", path)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, c.Scheduler.RoutineNum)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	isolate(t)
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"routine num", func(c *Config) { c.Scheduler.RoutineNum = 0 }},
		{"processor num", func(c *Config) { c.Scheduler.ProcessorNum = -1 }},
		{"buffer size", func(c *Config) { c.Perf.BufferSize = 0 }},
		{"flush interval", func(c *Config) { c.Perf.FlushInterval = 0 }},
		{"database path", func(c *Config) { c.Perf.Enabled = true; c.Database.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

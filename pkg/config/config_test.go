package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env
	cfg := Load()

	assert.Equal(t, 2, cfg.Analysis.MinWordFreq)
	assert.Equal(t, 5, cfg.Analysis.MaxSnippets)
	assert.Equal(t, 50, cfg.Analysis.ContextChars)
	assert.Equal(t, filepath.Join("data", "analysis", "word_index.sqlite"), cfg.Paths.DBPath)
	assert.Equal(t, 1500*time.Millisecond, cfg.Fetch.Delay)
	assert.True(t, cfg.Fetch.RespectRobots)
	assert.Equal(t, "info", cfg.App.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LIVY_DATA_DIR", "/srv/livy")
	t.Setenv("LIVY_MIN_WORD_FREQ", "7")
	t.Setenv("LIVY_MAX_SNIPPETS", "not-a-number")
	t.Setenv("LIVY_FETCH_DELAY", "250ms")
	t.Setenv("LIVY_RESPECT_ROBOTS", "false")
	t.Setenv("LIVY_LOG_LEVEL", "DEBUG")

	cfg := Load()
	assert.Equal(t, filepath.Join("/srv/livy", "texts"), cfg.Paths.TextsDir)
	assert.Equal(t, 7, cfg.Analysis.MinWordFreq)
	assert.Equal(t, 5, cfg.Analysis.MaxSnippets, "invalid values fall back to the default")
	assert.Equal(t, 250*time.Millisecond, cfg.Fetch.Delay)
	assert.False(t, cfg.Fetch.RespectRobots)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestValidateRejectsBadAnalysisSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	for name, mutate := range map[string]func(*Config){
		"min freq":   func(c *Config) { c.Analysis.MinWordFreq = 0 },
		"snippets":   func(c *Config) { c.Analysis.MaxSnippets = 0 },
		"context":    func(c *Config) { c.Analysis.ContextChars = -1 },
		"workers":    func(c *Config) { c.Analysis.Workers = 0 },
		"batch size": func(c *Config) { c.Analysis.BatchSize = 0 },
		"db path":    func(c *Config) { c.Paths.DBPath = "" },
		"retries":    func(c *Config) { c.Fetch.Retries = 0 },
	} {
		cfg := Load()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

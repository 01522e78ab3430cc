package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Type)
	assert.Equal(t, -0.5, cfg.Visibility.HideThreshold)
	assert.Equal(t, 5, cfg.Graph.MaxDepth)
	assert.Equal(t, "both", cfg.Graph.DefaultDirection)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFrom_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citegraph.yaml")
	writeFile(t, path, `
store:
  type: sqlite
  sqlite_path: /tmp/papers.db
visibility:
  hide_threshold: -3
graph:
  max_depth: 8
rate_limit:
  votes_per_minute: 30
`)
	t.Setenv("GRAPH_MAX_DEPTH", "7")
	t.Setenv("VOTE_RATE_LIMIT_DISTRIBUTED", "true")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.Store.Type)
	assert.Equal(t, "/tmp/papers.db", cfg.Store.SQLitePath)
	assert.Equal(t, -3.0, cfg.Visibility.HideThreshold)
	assert.Equal(t, 7, cfg.Graph.MaxDepth, "environment overrides the file")
	assert.Equal(t, 1, cfg.Graph.DefaultDepth, "unset keys keep defaults")
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, 30, cfg.RateLimit.VotesPerMinute)
	assert.True(t, cfg.RateLimit.Distributed)

	d := cfg.Domain()
	assert.Equal(t, -3.0, d.HideThreshold)
	assert.Equal(t, 7, d.MaxExpandDepth)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"STORE_TYPE": "postgres"}},
		{"default depth above max", map[string]string{"GRAPH_DEFAULT_DEPTH": "9"}},
		{"bad direction", map[string]string{"GRAPH_DEFAULT_DIRECTION": "sideways"}},
		{"negative rate limit", map[string]string{"VOTE_RATE_LIMIT": "-1"}},
		{"production memory store", map[string]string{"ENVIRONMENT": "production"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFrom("")
			assert.Error(t, err)
		})
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigWatcher_ReloadsThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citegraph.yaml")
	writeFile(t, path, "visibility:\n  hide_threshold: -1\n")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	prev := reloadDebounce
	reloadDebounce = 10 * time.Millisecond
	defer func() { reloadDebounce = prev }()

	w, err := NewConfigWatcher(cfg, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	changed := make(chan float64, 4)
	w.OnChange(func(c *Config) { changed <- c.Visibility.HideThreshold })

	writeFile(t, path, "visibility:\n  hide_threshold: 2\n")

	select {
	case got := <-changed:
		assert.Equal(t, 2.0, got)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration change was not observed")
	}
	assert.Equal(t, 2.0, w.GetConfig().Visibility.HideThreshold)
}

func TestConfigWatcher_KeepsConfigOnInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citegraph.yaml")
	writeFile(t, path, "visibility:\n  hide_threshold: -1\n")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	w, err := NewConfigWatcher(cfg, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	// reloadConfig is invoked directly so the test does not race the timer
	writeFile(t, path, "store:\n  type: nope\n")
	w.reloadConfig()

	assert.Equal(t, -1.0, w.GetConfig().Visibility.HideThreshold)
}

func TestNewConfigWatcher_RequiresFile(t *testing.T) {
	_, err := NewConfigWatcher(Default(), zap.NewNop())
	assert.Error(t, err)
}

package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"citegraph/application/commands"
	"citegraph/application/services"
	"citegraph/infrastructure/config"
	"citegraph/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitializeContainer_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Server.LogLevel = "error"

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.False(t, c.Tracing.Enabled())

	out, err := c.CommandBus.Send(context.Background(), commands.AddPaperCommand{
		Title:   "Wired",
		Authors: []string{"A. Author"},
		Year:    2024,
	})
	require.NoError(t, err)
	paper := out.(*services.PaperView)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+paper.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wired")
}

func TestInitializeContainer_SQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Server.LogLevel = "error"
	cfg.Store.Type = config.StoreSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "citegraph.db")

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, c.Store.Ping(context.Background()))
}

func TestInitializeContainer_BadLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.LogLevel = "chatty"

	_, _, err := InitializeContainer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestContainer_WatchConfigUpdatesThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  log_level: error\nvisibility:\n  hide_threshold: -0.5\n"), 0o644))

	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	watcher, err := c.WatchConfig()
	require.NoError(t, err)
	require.NotNil(t, watcher)
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(path, []byte("server:\n  log_level: error\nvisibility:\n  hide_threshold: -4\n"), 0o644))

	assert.Eventually(t, func() bool {
		return c.Visibility.Threshold() == -4
	}, 5*time.Second, 20*time.Millisecond)
}

func TestContainer_MetricsEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.Server.LogLevel = "error"

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	h := c.Handler()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "citegraph_http_requests_total"))
}

func TestProvideVoteRateLimiter(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.RateLimit.VotesPerMinute = 0

		limiter, cleanup, err := ProvideVoteRateLimiter(context.Background(), cfg, zap.NewNop())
		require.NoError(t, err)
		defer cleanup()
		assert.Nil(t, limiter)
	})

	t.Run("distributed needs dynamodb", func(t *testing.T) {
		cfg := config.Default()
		cfg.RateLimit.Distributed = true

		limiter, cleanup, err := ProvideVoteRateLimiter(context.Background(), cfg, zap.NewNop())
		require.NoError(t, err)
		defer cleanup()
		assert.IsType(t, &auth.UserRateLimiter{}, limiter)
		assert.Equal(t, cfg.RateLimit.VotesPerMinute, limiter.Limit())
	})
}

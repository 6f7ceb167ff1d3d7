package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/newsdesk/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestBuildAppInMemory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Fetcher.Type = "http"
	cfg.Storage.Type = "memory"
	cfg.Lock.Enabled = false
	cfg.Events.Enabled = false
	cfg.AI.Enabled = false

	a, err := buildApp(context.Background(), cfg, testLogger)
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	assert.Equal(t, "memory", a.store.Name())

	rec := httptest.NewRecorder()
	a.server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crawler/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSetupLoggerLevels(t *testing.T) {
	ctx := context.Background()

	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"})
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.True(t, logger.Enabled(ctx, slog.LevelWarn))

	logger = setupLogger(config.LoggingConfig{Level: "debug"})
	assert.True(t, logger.Enabled(ctx, slog.LevelDebug))
}

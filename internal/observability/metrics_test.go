package observability

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestRecordCycle(t *testing.T) {
	m := NewMetrics(testLogger)
	m.RecordCycle("scheduled", true, time.Second, 10, 1, 4, 5)
	m.RecordCycle("manual", false, time.Second, 0, 0, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("scheduled", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("manual", "failed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ArticlesTotal.WithLabelValues("saved")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ArticlesTotal.WithLabelValues("duplicate")))
	assert.Zero(t, testutil.ToFloat64(m.EmptyCycles), "failed cycles are not empty cycles")

	m.RecordCycle("scheduled", true, time.Second, 0, 0, 0, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmptyCycles))
}

func TestRecordFetch(t *testing.T) {
	m := NewMetrics(testLogger)
	m.RecordFetch("http", "", 100*time.Millisecond)
	m.RecordFetch("browser", "timeout", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchesTotal.WithLabelValues("http", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrors.WithLabelValues("timeout")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordFetch("http", "", time.Second)
		m.RecordCycle("manual", true, time.Second, 1, 0, 0, 1)
		m.SetConsecutiveFailures(3)
		m.RecordAlert()
		m.RecordNormalize("openai", "ai")
		m.ObserveLLM(time.Second)
		m.RecordProcessed("created")
		m.RecordHTTP("GET", "/health", "200", time.Millisecond)
	})
}

func TestHandlerExposition(t *testing.T) {
	m := NewMetrics(testLogger)
	m.SetConsecutiveFailures(2)
	m.RecordAlert()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "newsdesk_scheduler_consecutive_failures 2")
	assert.Contains(t, string(body), "newsdesk_scheduler_alerts_total 1")
}

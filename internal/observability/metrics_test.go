package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveEvaluation(t *testing.T) {
	m := NewMetrics()

	m.ObserveEvaluation("incident", false, 2*time.Millisecond)
	m.ObserveEvaluation("incident", false, time.Millisecond)
	m.ObserveEvaluation("breach", true, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues("incident")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("breach")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks))
	assert.Equal(t, 1, testutil.CollectAndCount(m.evalLatency))
}

func TestMetrics_ObserveCalibration(t *testing.T) {
	m := NewMetrics()

	m.ObserveCalibration("completed", 3)
	m.ObserveCalibration("skipped", 0)
	m.ObserveCalibration("completed", 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.calibrationRuns.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calibrationRuns.WithLabelValues("skipped")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.weightAdjustments))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveEvaluation("suspicious", false, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `risk_engine_evaluations_total{classification="suspicious"} 1`))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.ObserveCalibration("failed", 0)

	assert.Equal(t, 0.0, testutil.ToFloat64(b.calibrationRuns.WithLabelValues("failed")))
}

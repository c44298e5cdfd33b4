package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.RemoteCalls.WithLabelValues("slots", "success").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.RemoteCalls.WithLabelValues("slots", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RemoteCalls.WithLabelValues("slots", "success")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.SyncRuns.WithLabelValues("registry", "success").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kurisync_sync_runs_total{job="registry",outcome="success"} 1`)
}

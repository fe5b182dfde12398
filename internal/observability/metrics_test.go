package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapHandlerCountsByStatus(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := m.WrapHandler("/api/x", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/x", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/x", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/x", "418")))
}

func TestDomainCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ReadingIngested("mqtt")
	m.ReadingRejected("validation")
	m.ReadingDuplicate()
	m.Insight("drought_risk", "HIGH")
	m.BreakerState("gateway-probe", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.readingsIngested.WithLabelValues("mqtt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readingsDuplicate))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.insights.WithLabelValues("drought_risk", "HIGH")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cbState.WithLabelValues("gateway-probe")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.EventPublished()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "insight_events_published_total 1")
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ReadingIngested("http")
		m.Analysis("trend")
		m.WrapHandler("/", http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

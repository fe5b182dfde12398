package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	readingsIngested  *prometheus.CounterVec
	readingsRejected  *prometheus.CounterVec
	readingsDuplicate prometheus.Counter
	analyses          *prometheus.CounterVec
	insights          *prometheus.CounterVec
	eventsPublished   prometheus.Counter
	cbState           *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg. A nil reg uses the default
// Prometheus registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	m := &Metrics{
		gatherer: gatherer,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		readingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readings_ingested_total",
			Help: "Sensor readings stored, by transport.",
		}, []string{"source"}),
		readingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readings_rejected_total",
			Help: "Sensor payloads rejected, by reason.",
		}, []string{"reason"}),
		readingsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readings_duplicate_total",
			Help: "Sensor payloads recognised as duplicates of a stored reading.",
		}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insight_analyses_total",
			Help: "Analyses run, by engine (trend or node).",
		}, []string{"engine"}),
		insights: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insights_emitted_total",
			Help: "Insights produced by the trend engine, by type and risk level.",
		}, []string{"type", "risk"}),
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insight_events_published_total",
			Help: "Insight events published to the broker.",
		}),
		cbState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cb_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
	}

	registerer.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.readingsIngested,
		m.readingsRejected,
		m.readingsDuplicate,
		m.analyses,
		m.insights,
		m.eventsPublished,
		m.cbState,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ReadingIngested(source string) {
	if m == nil {
		return
	}
	m.readingsIngested.WithLabelValues(source).Inc()
}

func (m *Metrics) ReadingRejected(reason string) {
	if m == nil {
		return
	}
	m.readingsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ReadingDuplicate() {
	if m == nil {
		return
	}
	m.readingsDuplicate.Inc()
}

func (m *Metrics) Analysis(engine string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(engine).Inc()
}

func (m *Metrics) Insight(kind, risk string) {
	if m == nil {
		return
	}
	m.insights.WithLabelValues(kind, risk).Inc()
}

func (m *Metrics) EventPublished() {
	if m == nil {
		return
	}
	m.eventsPublished.Inc()
}

// BreakerState records a breaker state as 0 closed, 1 half-open, 2 open.
func (m *Metrics) BreakerState(target string, state int) {
	if m == nil {
		return
	}
	m.cbState.WithLabelValues(target).Set(float64(state))
}

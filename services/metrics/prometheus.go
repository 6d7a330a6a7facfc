package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/gradebook/core"
)

const namespace = "gradebook"

// Prometheus records the application metrics on its own registry.
type Prometheus struct {
	reg *prometheus.Registry

	resultsWritten   *prometheus.CounterVec
	cohortRecomputes *prometheus.CounterVec
	auditFailures    prometheus.Counter
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

var _ core.Metrics = (*Prometheus)(nil) // interface compliance check

func NewPrometheus(conf *core.Config) *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	labels := prometheus.Labels{"env": conf.Env, "build": conf.Build}

	return &Prometheus{
		reg: reg,
		resultsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "results_written_total",
			Help:        "Student results written, by operation",
			ConstLabels: labels,
		}, []string{"operation"}),
		cohortRecomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cohort_recomputes_total",
			Help:        "Cohort statistics and positions recomputations, by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		auditFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "audit_record_failures_total",
			Help:        "History entries that could not be recorded",
			ConstLabels: labels,
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "HTTP requests, by route and status code",
			ConstLabels: labels,
		}, []string{"method", "route", "code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency, by route",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"method", "route"}),
	}
}

func (m *Prometheus) ResultsWritten(op string, n int) {
	m.resultsWritten.WithLabelValues(op).Add(float64(n))
}

func (m *Prometheus) CohortRecomputed(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.cohortRecomputes.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) AuditRecordFailed() {
	m.auditFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware counts and times every request by its route pattern.
// Errors are handed to the echo error handler here, so the returned error is always nil.
func (m *Prometheus) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				// the error handler writes the status that gets counted
				ctx.Error(err)
			}

			code := ctx.Response().Status
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
			m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

package metrics

import (
	"context"
	"strconv"
	"time"

	"quiz-gate-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the service collectors on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	SessionsStarted prometheus.Counter
	Outcomes        *prometheus.CounterVec
	Registrations   *prometheus.CounterVec
	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sessions_started_total",
			Help: "Total number of quiz sessions started",
		}),
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_outcomes_total",
				Help: "Total number of finished quiz sessions by outcome",
			},
			[]string{"kind"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrations_total",
				Help: "Total number of registration and contact submissions by result",
			},
			[]string{"form", "result"},
		),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
	}
	r.registry.MustRegister(
		r.SessionsStarted,
		r.Outcomes,
		r.Registrations,
		r.RequestCounter,
		r.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry (tests, extra collectors).
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// OnOutcome implements app.OutcomeReporter.
func (r *Recorder) OnOutcome(_ context.Context, outcome domain.Outcome) {
	r.Outcomes.WithLabelValues(string(outcome.Kind)).Inc()
}

// OnStart implements app.StartObserver.
func (r *Recorder) OnStart(context.Context, domain.Snapshot) {
	r.SessionsStarted.Inc()
}

// ObserveSubmission counts a form submission; result is "ok" or the submission error kind.
func (r *Recorder) ObserveSubmission(form, result string) {
	r.Registrations.WithLabelValues(form, result).Inc()
}

// Middleware records request count and latency per route template.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		r.RequestCounter.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		r.RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cleit"

// Metrics holds the service collectors. It implements gate.Recorder.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec
	ReqDuration   *prometheus.HistogramVec
	InFlight      prometheus.Gauge

	Resolutions    *prometheus.CounterVec
	Redirects      *prometheus.CounterVec
	StaleResults   *prometheus.CounterVec
	SurfacesActive *prometheus.GaugeVec
}

// New registers every collector on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"route", "method", "status"}),
		ReqDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Request duration seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests",
		}),

		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_resolutions_total",
			Help:      "Identity resolutions by outcome",
		}, []string{"outcome"}),
		Redirects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_redirects_total",
			Help:      "Redirects issued by guarded surfaces",
		}, []string{"kind", "target"}),
		StaleResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_stale_results_total",
			Help:      "Resolutions dropped because a newer notification arrived",
		}, []string{"kind"}),
		SurfacesActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gate_surfaces_active",
			Help:      "Mounted guarded surfaces",
		}, []string{"kind"}),
	}
}

func (m *Metrics) Resolution(outcome string) { m.Resolutions.WithLabelValues(outcome).Inc() }

func (m *Metrics) Redirect(kind, target string) { m.Redirects.WithLabelValues(kind, target).Inc() }

func (m *Metrics) StaleResult(kind string) { m.StaleResults.WithLabelValues(kind).Inc() }

func (m *Metrics) SurfaceOpened(kind string) { m.SurfacesActive.WithLabelValues(kind).Inc() }

func (m *Metrics) SurfaceClosed(kind string) { m.SurfacesActive.WithLabelValues(kind).Dec() }

// Gin records request counts and latency by route template.
func (m *Metrics) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.ReqDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the collectors of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

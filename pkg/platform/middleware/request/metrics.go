package request

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks HTTP latency by route pattern and status class.
type Metrics struct {
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetrics registers the HTTP collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "companion_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status class",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"route", "status"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "companion_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(route, statusClass(status)).Observe(seconds)
}

func (m *Metrics) trackInFlight(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
}

// statusClass collapses a status code to "2xx", "4xx" and so on.
func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

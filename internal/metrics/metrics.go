package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	ProbeRequests  prometheus.Counter
	ProbeErrors    *prometheus.CounterVec
	ProbeDurations prometheus.Histogram
	ProbeBytes     prometheus.Counter

	GeoIPRequests prometheus.Counter
	GeoIPErrors   prometheus.Counter
}

func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())

	return &Collector{
		registry: registry,

		ProbeRequests: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "probe_requests_total",
			Help: "The total number of probe invocations",
		}),
		ProbeErrors: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "probe_errors_total",
			Help: "The total number of failed probes by error kind",
		}, []string{"kind"}),
		ProbeDurations: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "probe_duration_seconds",
			Help:    "Total transfer time of successful probes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		ProbeBytes: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "probe_received_bytes_total",
			Help: "The total amount of body bytes received by probes",
		}),
		GeoIPRequests: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "geoip_requests_total",
			Help: "The total number of geolocation lookups",
		}),
		GeoIPErrors: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "geoip_errors_total",
			Help: "The total number of failed geolocation lookups",
		}),
	}
}

// Handler exposes the registry for the /metrics route.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Package metrics holds the prometheus registry shared by edgeprobe packages.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// MetricComponentLabelKey is the key for the component of the metric.
	MetricComponentLabelKey = "edgeprobe_component"
	// MetricSiteLabelKey is the key for the probed site of the metric.
	MetricSiteLabelKey = "edgeprobe_site"
)

var defaultRegistry = prometheus.NewRegistry()

func init() {
	defaultRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// MustRegister registers the collectors with the default registry.
// Panics on duplicate registration.
func MustRegister(cs ...prometheus.Collector) {
	defaultRegistry.MustRegister(cs...)
}

func Gatherer() prometheus.Gatherer {
	return defaultRegistry
}

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(defaultRegistry, promhttp.HandlerOpts{})
}

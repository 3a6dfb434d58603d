package nettest

import (
	"github.com/prometheus/client_golang/prometheus"

	pkgmetrics "github.com/leptonai/edgeprobe/pkg/metrics"
)

const SubSystem = "edge_site"

var (
	componentLabel = prometheus.Labels{
		pkgmetrics.MetricComponentLabelKey: "nettest",
	}

	metricMeanLatency = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: SubSystem,
			Name:      "mean_latency_milliseconds",
			Help:      "tracks the rolling mean latency of a site in milliseconds",
		},
		[]string{pkgmetrics.MetricComponentLabelKey, pkgmetrics.MetricSiteLabelKey},
	).MustCurryWith(componentLabel)

	metricProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: SubSystem,
			Name:      "probes_total",
			Help:      "counts probes by result (success, failure, error)",
		},
		[]string{pkgmetrics.MetricComponentLabelKey, pkgmetrics.MetricSiteLabelKey, "result"},
	).MustCurryWith(componentLabel)

	metricRoundDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Subsystem: SubSystem,
			Name:      "round_duration_seconds",
			Help:      "tracks how long one probe round over all sites takes",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

const (
	probeResultSuccess = "success"
	probeResultFailure = "failure"
	probeResultError   = "error"
)

func init() {
	pkgmetrics.MustRegister(metricMeanLatency, metricProbes, metricRoundDuration)
}

func observeProbe(site *Site, result string) {
	name := site.Name()
	metricProbes.With(prometheus.Labels{
		pkgmetrics.MetricSiteLabelKey: name,
		"result":                      result,
	}).Inc()

	if result == probeResultSuccess {
		metricMeanLatency.With(prometheus.Labels{
			pkgmetrics.MetricSiteLabelKey: name,
		}).Set(site.Mean())
	}
}

package chronotiles

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var buildInfoMetric = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "chronotiles",
	Name:      "buildinfo",
}, []string{"version", "revision"})

var buildTimeMetric = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "chronotiles",
	Name:      "buildtime",
})

var requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chronotiles",
	Subsystem: "server",
	Name:      "requests_total",
	Help:      "Requests handled, by status code",
}, []string{"status"})

var decodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "chronotiles",
	Subsystem: "server",
	Name:      "decode_seconds",
	Help:      "Whole-tile decode duration, fetch to GeoJSON",
	Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
})

var cacheSizeMetric = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "chronotiles",
	Subsystem: "server",
	Name:      "cache_entries",
	Help:      "Current number of entries in the decode cache",
})

func init() {
	for _, c := range []prometheus.Collector{
		buildInfoMetric, buildTimeMetric, requestsTotal, decodeDuration, cacheSizeMetric,
	} {
		if err := prometheus.Register(c); err != nil {
			fmt.Println("Error registering metric", err)
		}
	}
}

// SetBuildInfo publishes version metrics the way the release pipeline
// stamps them.
func SetBuildInfo(version string, commit string, date string) {
	buildInfoMetric.WithLabelValues(version, commit).Set(1)
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		buildTimeMetric.Set(float64(t.Unix()))
	} else if unix, err := strconv.ParseInt(date, 10, 64); err == nil {
		buildTimeMetric.Set(float64(unix))
	}
}

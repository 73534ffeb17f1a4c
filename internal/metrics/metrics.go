// Package metrics exposes the gateway's Prometheus instrumentation:
// ingestion/processing throughput, active-user and active-provider
// gauges, shared-stream fan-out, and reverse-proxy stream outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iptvgw_ingest_fetch_duration_seconds",
			Help:    "Duration of input fetches (M3U/Xtream).",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"input", "result"},
	)

	IngestChannelsFetched = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iptvgw_ingest_channels_fetched",
			Help: "Number of channels returned by the last successful fetch of an input.",
		},
		[]string{"input"},
	)

	ProcessDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iptvgw_process_duration_seconds",
			Help:    "Duration of the filter/rename/map/sort/dedup pipeline for a target.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target"},
	)

	ProcessChannelsOut = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iptvgw_process_channels_out",
			Help: "Channel count a target's catalog held after the last successful run, by cluster.",
		},
		[]string{"target", "cluster"},
	)

	ProcessErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iptvgw_process_errors_total",
			Help: "Total processing pipeline failures.",
		},
		[]string{"target"},
	)

	ActiveUserConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "iptvgw_active_user_connections",
			Help: "Current number of leased user streaming connections across all users.",
		},
	)

	ActiveUserDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iptvgw_active_user_denials_total",
			Help: "Total stream admissions rejected by per-user connection limits.",
		},
		[]string{"username"},
	)

	ActiveProviderLeases = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iptvgw_active_provider_leases",
			Help: "Current number of leased connections per provider alias.",
		},
		[]string{"alias"},
	)

	ActiveProviderCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iptvgw_active_provider_circuit_state",
			Help: "Provider alias circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"alias"},
	)

	SharedStreamSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iptvgw_shared_stream_subscribers",
			Help: "Current number of subscribers fanned out from a shared upstream stream.",
		},
		[]string{"key"},
	)

	SharedStreamDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iptvgw_shared_stream_subscribers_dropped_total",
			Help: "Total subscribers disconnected for falling behind a shared stream.",
		},
		[]string{"key"},
	)

	ReverseProxyStreamsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iptvgw_reverseproxy_streams_started_total",
			Help: "Total streams that reached the Streaming state.",
		},
		[]string{"target"},
	)

	ReverseProxyStreamsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iptvgw_reverseproxy_streams_failed_total",
			Help: "Total streams that ended in an error outcome, by reason.",
		},
		[]string{"target", "reason"},
	)

	ReverseProxyRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iptvgw_reverseproxy_retries_total",
			Help: "Total provider-rotation retries during a stream.",
		},
		[]string{"target"},
	)
)

// RecordIngestFetch records one input fetch outcome.
func RecordIngestFetch(input string, duration time.Duration, channels int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	IngestFetchDuration.WithLabelValues(input, result).Observe(duration.Seconds())
	if err == nil {
		IngestChannelsFetched.WithLabelValues(input).Set(float64(channels))
	}
}

// RecordProcess records one target's pipeline run outcome.
func RecordProcess(target string, duration time.Duration, counts map[string]int, err error) {
	ProcessDuration.WithLabelValues(target).Observe(duration.Seconds())
	if err != nil {
		ProcessErrors.WithLabelValues(target).Inc()
		return
	}
	for cluster, n := range counts {
		ProcessChannelsOut.WithLabelValues(target, cluster).Set(float64(n))
	}
}

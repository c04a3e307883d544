package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts oracle requests.
	// Labels: provider (openai, anthropic), operation (generate, embed, validate), result (success, error)
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "porthealth",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total number of oracle requests by provider, operation and result",
		},
		[]string{"provider", "operation", "result"},
	)

	// RequestDuration tracks oracle request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "porthealth",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Duration of oracle requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	// RetriesTotal counts retried oracle requests.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "porthealth",
			Subsystem: "llm",
			Name:      "retries_total",
			Help:      "Total number of oracle request retries",
		},
		[]string{"provider", "operation"},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ThingSpeakAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cranesight_thingspeak_api_calls_total",
			Help: "Total ThingSpeak API calls",
		},
		[]string{"endpoint", "status"},
	)

	ThingSpeakAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cranesight_thingspeak_api_latency_seconds",
			Help:    "ThingSpeak API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cranesight_refresh_total",
			Help: "Refresh ticks by outcome",
		},
		[]string{"result"},
	)

	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cranesight_predictions_total",
			Help: "Predictions published by warning level",
		},
		[]string{"level"},
	)

	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cranesight_stream_subscribers",
			Help: "Currently connected stream subscribers",
		},
	)
)

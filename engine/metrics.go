package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardbot_events_processed",
	Help: "Number of inbound events handled, by kind",
}, []string{"kind"})

var eventErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardbot_event_errors",
	Help: "Number of events whose handling failed, by kind and error kind",
}, []string{"kind", "error"})

var eventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "guardbot_event_duration_sec",
	Help:    "Time spent handling one event",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
}, []string{"kind"})

var floodDetections = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardbot_flood_detections",
	Help: "Number of flood verdicts",
})

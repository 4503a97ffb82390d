package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardbot_decisions",
	Help: "Number of decisions applied to the platform",
}, []string{"kind"})

var platformErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardbot_platform_errors",
	Help: "Number of platform calls that failed",
}, []string{"action"})

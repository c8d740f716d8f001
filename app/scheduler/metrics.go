package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes recorded in outreach_dispatch_total
const (
	outcomeSubmitted = "submitted"
	outcomeRetry     = "retry"
	outcomeSent      = "sent"
	outcomeFailed    = "failed"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_dispatch_total",
			Help: "Dispatch attempts and terminal outcomes by channel",
		},
		[]string{"channel", "outcome"},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outreach_tick_duration_seconds",
			Help:    "Duration of a scheduler tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	capRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outreach_cap_rejections_total",
			Help: "Dispatches deferred because the campaign daily cap was reached",
		},
	)
)

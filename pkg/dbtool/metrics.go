package dbtool

import "github.com/prometheus/client_golang/prometheus"

var (
	actionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbtool_action_requests_total",
			Help: "Total number of tool actions dispatched.",
		},
		[]string{"action", "code"},
	)

	actionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbtool_action_duration_seconds",
			Help:    "Tool action latency by action name.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(actionRequestsTotal, actionDurationSeconds)
}

func observeAction(action Action, code string, seconds float64) {
	actionRequestsTotal.WithLabelValues(string(action), code).Inc()
	actionDurationSeconds.WithLabelValues(string(action)).Observe(seconds)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenhouse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenhouse_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Realtime subscription metrics
	RealtimeMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenhouse_realtime_messages_total",
			Help: "Messages received from the realtime backend",
		},
		[]string{"path", "status"}, // status: ok, invalid, duplicate
	)

	RealtimeWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenhouse_realtime_writes_total",
			Help: "Writes issued to the realtime backend",
		},
		[]string{"op", "status"},
	)

	// Alerting metrics
	BreachesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenhouse_breaches_total",
			Help: "Threshold breaches detected by the evaluator",
		},
		[]string{"quantity"},
	)

	AlertsNotifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenhouse_alerts_notified_total",
			Help: "Breaches that passed the cooldown and were dispatched",
		},
		[]string{"quantity"},
	)

	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenhouse_alerts_suppressed_total",
			Help: "Breaches suppressed by the cooldown",
		},
		[]string{"quantity"},
	)

	EmailSendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenhouse_email_send_total",
			Help: "Outbound alert e-mails by outcome",
		},
		[]string{"status"}, // status: sent, failed, breaker_open
	)

	// History metrics
	HistoryPoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "greenhouse_history_cached_points",
			Help: "History points currently cached for charting",
		},
	)

	HistoryWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "greenhouse_history_write_errors_total",
			Help: "Asynchronous history write errors",
		},
	)
)

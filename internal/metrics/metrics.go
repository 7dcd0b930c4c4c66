// Package metrics defines the Prometheus collectors for the real-time core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry metrics
var (
	// RegistryActiveConnections tracks the number of attached, open connections
	RegistryActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_active_connections",
			Help: "Number of attached, open client connections",
		},
	)

	// RegistryTopicSubscribers tracks subscriber counts per topic
	RegistryTopicSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registry_topic_subscribers",
			Help: "Current subscriber count per topic",
		},
		[]string{"topic"},
	)

	// RegistryMessagesDropped counts messages dropped by drop-oldest backpressure
	RegistryMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_messages_dropped_total",
			Help: "Messages dropped from full outbound queues (drop-oldest)",
		},
	)

	// RegistryMessagesDelivered counts messages enqueued for delivery
	RegistryMessagesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_messages_delivered_total",
			Help: "Messages enqueued onto connection outbound queues",
		},
	)

	// RegistryHeartbeatEvictions counts connections detached for missed heartbeats
	RegistryHeartbeatEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_heartbeat_evictions_total",
			Help: "Connections detached after exceeding the heartbeat timeout",
		},
	)

	// RegistryTransportFailures counts connections detached after a permanent transport failure
	RegistryTransportFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_transport_failures_total",
			Help: "Connections detached after a permanent transport failure",
		},
	)

	// RegistryCommandChannelDepth tracks current command channel depth
	RegistryCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_command_channel_depth",
			Help: "Current registry command channel depth",
		},
	)
)

// Broadcaster metrics
var (
	// BroadcastFanoutDuration tracks how long one publish takes end to end
	BroadcastFanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_fanout_duration_seconds",
			Help:    "Duration of a single topic fan-out in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	// BroadcastMessagesPublished counts publishes per topic
	BroadcastMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_published_total",
			Help: "Messages published per topic",
		},
		[]string{"topic"},
	)
)

// Alert metrics
var (
	// AlertsEmitted counts emitted alerts by level
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_emitted_total",
			Help: "Alerts emitted by severity level",
		},
		[]string{"level"},
	)

	// AlertsSuppressed counts alerts suppressed by the cooldown window
	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_suppressed_total",
			Help: "Alert emissions suppressed by the cooldown window",
		},
	)
)

// Scheduler metrics
var (
	// SchedulerCycles counts update cycles by outcome
	SchedulerCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_cycles_total",
			Help: "Update scheduler cycles by status (ok/skipped)",
		},
		[]string{"status"},
	)

	// SchedulerCycleDuration tracks full cycle duration
	SchedulerCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_cycle_duration_seconds",
			Help:    "Duration of one scheduler cycle in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// ScoringFetchDuration tracks scoring engine fetch latency
	ScoringFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scoring_fetch_duration_seconds",
			Help:    "Scoring engine fetch duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// ScoringFetchErrors counts failed scoring engine fetches
	ScoringFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoring_fetch_errors_total",
			Help: "Failed scoring engine fetches",
		},
	)
)

// Analytics metrics
var (
	// AnalyticsSnapshots tracks the number of retained snapshots
	AnalyticsSnapshots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analytics_snapshots_retained",
			Help: "Snapshots currently held within the retention window",
		},
	)

	// AnalyticsEvictions counts snapshots evicted by retention
	AnalyticsEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_snapshots_evicted_total",
			Help: "Snapshots evicted from the retention window",
		},
	)
)

// Mirror metrics
var (
	// MirrorErrors counts failed best-effort mirror writes
	MirrorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_errors_total",
			Help: "Failed best-effort Redis mirror writes by kind",
		},
		[]string{"kind"},
	)
)

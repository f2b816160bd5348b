// Package metrics provides Prometheus metrics for the warden detection service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Manager manages all Prometheus metrics for the warden service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Detection Metrics - What the moderation layer cares about
	eventsHandled       prometheus.Counter
	eventsDropped       *prometheus.CounterVec
	landingsJudged      *prometheus.CounterVec
	verifications       *prometheus.CounterVec
	detectionsRaised    *prometheus.CounterVec
	certainty           *prometheus.GaugeVec
	expectedDamage      prometheus.Histogram
	handleLatency       prometheus.Histogram
	profilesOnline      prometheus.Gauge
	profilesArchived    prometheus.Counter
	sinkPublishDropped  *prometheus.CounterVec
	suspectBoardEntries prometheus.Gauge

	// Scheduler Metrics
	schedulerPending prometheus.Gauge
	schedulerTicks   prometheus.Counter
	schedulerPanics  prometheus.Counter

	// Queue Metrics - Dispatch backlog
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	workerCount   prometheus.Gauge

	// HTTP Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "warden",
		subsystem:        "detection",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.eventsHandled = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_handled_total",
		Help:        "Total number of movement events dispatched to profiles",
		ConstLabels: m.constLabels,
	})

	m.eventsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_dropped_total",
		Help:        "Total number of movement events not handled, by reason",
		ConstLabels: m.constLabels,
	}, []string{"reason"})

	m.landingsJudged = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "landings_total",
		Help:        "Landings observed by fall checks, by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.verifications = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "verifications_total",
		Help:        "Deferred verifications, by result (scheduled, aborted, clean, violation)",
		ConstLabels: m.constLabels,
	}, []string{"result"})

	m.detectionsRaised = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "detections_total",
		Help:        "Total number of detections raised by check and version",
		ConstLabels: m.constLabels,
	}, []string{"check", "version"})

	m.certainty = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "last_detection_certainty_percent",
		Help:        "Certainty of the most recent detection by check and version",
		ConstLabels: m.constLabels,
	}, []string{"check", "version"})

	m.expectedDamage = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "expected_fall_damage",
		Help:        "Distribution of expected fall damage computed at landing",
		Buckets:     []float64{0, 1, 2, 4, 6, 8, 10, 15, 20},
		ConstLabels: m.constLabels,
	})

	m.handleLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "handle_latency_milliseconds",
		Help:        "Time spent handling one movement event in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.profilesOnline = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "profiles_online",
		Help:        "Number of profiles for connected entities",
		ConstLabels: m.constLabels,
	})

	m.profilesArchived = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "profiles_archived_total",
		Help:        "Total number of profile sessions closed on leave",
		ConstLabels: m.constLabels,
	})

	m.sinkPublishDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "sink_dropped_total",
		Help:        "Detections a sink declined to forward, by sink",
		ConstLabels: m.constLabels,
	}, []string{"sink"})

	m.suspectBoardEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "suspect_board_entries",
		Help:        "Number of entities ranked on the suspect board",
		ConstLabels: m.constLabels,
	})

	m.schedulerPending = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scheduler_pending_tasks",
		Help:        "Number of deferred tasks waiting for their tick",
		ConstLabels: m.constLabels,
	})

	m.schedulerTicks = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scheduler_ticks_total",
		Help:        "Total number of scheduler ticks",
		ConstLabels: m.constLabels,
	})

	m.schedulerPanics = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scheduler_task_panics_total",
		Help:        "Total number of deferred tasks that panicked",
		ConstLabels: m.constLabels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_size",
		Help:        "Current number of queued movement events across shards",
		ConstLabels: m.constLabels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_capacity",
		Help:        "Total queue capacity across shards",
		ConstLabels: m.constLabels,
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_count",
		Help:        "Number of dispatch workers (one per shard)",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// Detection Metrics Functions.

// RecordEventHandled increments the handled events counter.
func RecordEventHandled() {
	globalManager.eventsHandled.Inc()
}

// RecordEventDropped increments the dropped events counter for reason.
func RecordEventDropped(reason string) {
	globalManager.eventsDropped.WithLabelValues(reason).Inc()
}

// RecordLanding records the outcome of a landing (judged, exempt, pending).
func RecordLanding(outcome string) {
	globalManager.landingsJudged.WithLabelValues(outcome).Inc()
}

// RecordVerification records a deferred verification result.
func RecordVerification(result string) {
	globalManager.verifications.WithLabelValues(result).Inc()
}

// RecordDetection increments the detection counter and stores its certainty.
func RecordDetection(check, version string, certainty float64) {
	globalManager.detectionsRaised.WithLabelValues(check, version).Inc()
	globalManager.certainty.WithLabelValues(check, version).Set(certainty)
}

// RecordExpectedDamage observes the expected damage computed at a landing.
func RecordExpectedDamage(damage float64) {
	globalManager.expectedDamage.Observe(damage)
}

// RecordHandleLatency records event handling latency in milliseconds.
func RecordHandleLatency(latencyMs float64) {
	globalManager.handleLatency.Observe(latencyMs)
}

// UpdateProfilesOnline sets the number of online profiles.
func UpdateProfilesOnline(count int) {
	globalManager.profilesOnline.Set(float64(count))
}

// RecordProfileArchived counts a profile session closed on leave.
func RecordProfileArchived() {
	globalManager.profilesArchived.Inc()
}

// RecordSinkDropped increments the dropped counter for a sink.
func RecordSinkDropped(sink string) {
	globalManager.sinkPublishDropped.WithLabelValues(sink).Inc()
}

// UpdateSuspectBoardEntries sets the number of ranked entities.
func UpdateSuspectBoardEntries(count int) {
	globalManager.suspectBoardEntries.Set(float64(count))
}

// Scheduler Metrics Functions.

// UpdateSchedulerPending sets the number of pending deferred tasks.
func UpdateSchedulerPending(count int) {
	globalManager.schedulerPending.Set(float64(count))
}

// RecordSchedulerTick increments the tick counter.
func RecordSchedulerTick() {
	globalManager.schedulerTicks.Inc()
}

// RecordSchedulerPanic increments the panicked task counter.
func RecordSchedulerPanic() {
	globalManager.schedulerPanics.Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the total queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Gather collects the current metric families from the custom registry.
func Gather() ([]*dto.MetricFamily, error) {
	if globalManager == nil {
		return nil, ErrNotInitialized
	}
	return customRegistry.Gather()
}

package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	nuts "github.com/vaudience/go-nuts"
)

const namespace = "mailguard"

// Prometheus metrics for the ingestion engine
var (
	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Credential checks by identity class and outcome",
		},
		[]string{"class", "outcome"},
	)

	TelemetryEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_events_total",
			Help:      "Classified telemetry events by kind, detection method and claim status",
		},
		[]string{"kind", "method", "status"},
	)

	LowBatteryTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_battery_reports_total",
			Help:      "Reports with a battery level at or below the low battery floor",
		},
	)

	SecondaryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secondary_write_failures_total",
			Help:      "Recovered failures of best-effort side effects",
		},
		[]string{"operation"},
	)

	ImagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_total",
			Help:      "Stored images by correlation outcome",
		},
		[]string{"matched"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification jobs by outcome",
		},
		[]string{"outcome"},
	)

	MonitoredEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitored_events_total",
			Help:      "Operational events recorded by background services",
		},
		[]string{"event"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of ingestion operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics with the default registry
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			AuthAttemptsTotal,
			TelemetryEventsTotal,
			LowBatteryTotal,
			SecondaryFailuresTotal,
			ImagesTotal,
			NotificationsTotal,
			MonitoredEventsTotal,
			OperationDuration,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}

// ObserveSince records the duration of an operation started at start
func ObserveSince(operation string, start time.Time) {
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Service records operational events from background services
type Service struct{}

// NewService creates a new monitoring service
func NewService() *Service {
	return &Service{}
}

// RecordEvent records a monitored event with labels
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	MonitoredEventsTotal.WithLabelValues(eventName).Inc()
	nuts.L.Infof("[Monitoring] Event %s recorded with labels: %v", eventName, labels)
}

package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/pkg/jobs"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	admissionActions *prometheus.CounterVec
	sessionLookups   *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	seatsTaken       *prometheus.GaugeVec

	requestCount         uint64
	requestDurationTotal uint64
	sessionHitCount      uint64
	sessionMissCount     uint64
	actionCount          uint64
	actionFailureCount   uint64
	notificationSent     uint64
	notificationFailed   uint64

	queueStats func() jobs.Stats
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	admissionActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_actions_total",
		Help: "Admin lifecycle actions by outcome",
	}, []string{"action", "result"})

	sessionLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_store_lookups_total",
		Help: "Session store reads by outcome",
	}, []string{"result"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Applicant notifications by kind and outcome",
	}, []string{"kind", "result"})

	seatsTaken := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "course_seats_taken",
		Help: "Seats taken per course at the last stats read",
	}, []string{"course"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, admissionActions, sessionLookups, notifications, seatsTaken, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		admissionActions: admissionActions,
		sessionLookups:   sessionLookups,
		notifications:    notifications,
		seatsTaken:       seatsTaken,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordAdmissionAction counts an admin lifecycle action.
func (m *MetricsService) RecordAdmissionAction(action models.AdminAction, err error) {
	if m == nil {
		return
	}
	result := resultSuccess
	if err != nil {
		result = resultFailure
		atomic.AddUint64(&m.actionFailureCount, 1)
	}
	m.admissionActions.WithLabelValues(string(action), result).Inc()
	atomic.AddUint64(&m.actionCount, 1)
}

// RecordSessionLookup records a session store hit or miss.
func (m *MetricsService) RecordSessionLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.sessionLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.sessionHitCount, 1)
		return
	}
	m.sessionLookups.WithLabelValues("miss").Inc()
	atomic.AddUint64(&m.sessionMissCount, 1)
}

// RecordNotification counts a delivered or failed notification.
func (m *MetricsService) RecordNotification(kind string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.notifications.WithLabelValues(kind, resultFailure).Inc()
		atomic.AddUint64(&m.notificationFailed, 1)
		return
	}
	m.notifications.WithLabelValues(kind, resultSuccess).Inc()
	atomic.AddUint64(&m.notificationSent, 1)
}

// ObserveSeats publishes the latest seat count of a course.
func (m *MetricsService) ObserveSeats(courseID string, enrolled int) {
	if m == nil {
		return
	}
	m.seatsTaken.WithLabelValues(courseID).Set(float64(enrolled))
}

// WatchNotificationQueue adds the counters of the notification queue to snapshots.
// Call it before the server starts.
func (m *MetricsService) WatchNotificationQueue(stats func() jobs.Stats) {
	if m == nil {
		return
	}
	m.queueStats = stats
}

// Snapshot returns aggregated metrics for the admin dashboard.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.sessionHitCount)
	misses := atomic.LoadUint64(&m.sessionMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var hitRatio float64
	if total := hits + misses; total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	snapshot := models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		SessionHitRatio:          hitRatio,
		AdmissionActions:         atomic.LoadUint64(&m.actionCount),
		AdmissionFailures:        atomic.LoadUint64(&m.actionFailureCount),
		NotificationsSent:        atomic.LoadUint64(&m.notificationSent),
		NotificationsFailed:      atomic.LoadUint64(&m.notificationFailed),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
	if m.queueStats != nil {
		queue := m.queueStats()
		snapshot.NotificationJobsDone = queue.Processed
		snapshot.NotificationJobsRetried = queue.Retried
		snapshot.NotificationJobsDropped = queue.Dropped
	}
	return snapshot
}

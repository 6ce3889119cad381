package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/pkg/jobs"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/api/v1/courses", 200, 10*time.Millisecond)
	m.ObserveHTTPRequest("GET", "/api/v1/courses", 200, 30*time.Millisecond)
	m.RecordAdmissionAction(models.ActionApprove, nil)
	m.RecordAdmissionAction(models.ActionReject, errors.New("boom"))
	m.RecordSessionLookup(true)
	m.RecordSessionLookup(false)
	m.RecordNotification("approved", nil)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 20, snap.AverageRequestDurationMs, 0.01)
	assert.Equal(t, uint64(2), snap.AdmissionActions)
	assert.Equal(t, uint64(1), snap.AdmissionFailures)
	assert.InDelta(t, 0.5, snap.SessionHitRatio, 0.001)
	assert.Equal(t, uint64(1), snap.NotificationsSent)
}

func TestMetricsSnapshotIncludesNotificationQueue(t *testing.T) {
	m := NewMetricsService()
	assert.Zero(t, m.Snapshot().NotificationJobsDone)

	m.WatchNotificationQueue(func() jobs.Stats { return jobs.Stats{Processed: 7, Retried: 2, Dropped: 1} })
	snap := m.Snapshot()
	assert.EqualValues(t, 7, snap.NotificationJobsDone)
	assert.EqualValues(t, 2, snap.NotificationJobsRetried)
	assert.EqualValues(t, 1, snap.NotificationJobsDropped)
}

func TestMetricsHandlerExposesAdmissionCounter(t *testing.T) {
	m := NewMetricsService()
	m.RecordAdmissionAction(models.ActionMarkPaid, nil)
	m.ObserveSeats("beginner", 4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `admission_actions_total{action="mark_paid",result="success"} 1`)
	assert.Contains(t, body, `course_seats_taken{course="beginner"} 4`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordAdmissionAction(models.ActionApprove, nil)
	m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
	assert.Equal(t, models.SystemMetrics{}, m.Snapshot())
}

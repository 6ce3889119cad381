package models

import "time"

// SystemMetrics is an in-process snapshot of instrumentation counters for the admin dashboard.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	SessionHitRatio          float64   `json:"sessionHitRatio"`
	AdmissionActions         uint64    `json:"admissionActions"`
	AdmissionFailures        uint64    `json:"admissionFailures"`
	NotificationsSent        uint64    `json:"notificationsSent"`
	NotificationsFailed      uint64    `json:"notificationsFailed"`
	NotificationJobsDone     int64     `json:"notificationJobsProcessed"`
	NotificationJobsRetried  int64     `json:"notificationJobsRetried"`
	NotificationJobsDropped  int64     `json:"notificationJobsDropped"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

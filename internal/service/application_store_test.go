package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/internal/repository"
)

// memoryApplications mimics the guarded writes of ApplicationRepository on top of a seatStore.
type memoryApplications struct {
	mu    sync.Mutex
	seats *seatStore
	apps  map[string]*models.Application
	seq   int
	err   error
}

func newMemoryApplications(seats *seatStore) *memoryApplications {
	return &memoryApplications{seats: seats, apps: map[string]*models.Application{}}
}

func (m *memoryApplications) put(app models.Application) *models.Application {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if app.ID == "" {
		app.ID = fmt.Sprintf("app-%d", m.seq)
	}
	if app.PublicID == "" {
		app.PublicID = fmt.Sprintf("APP-26-%06X", m.seq)
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Second)
	}
	m.apps[app.ID] = &app
	return &app
}

func (m *memoryApplications) get(id string) *models.Application {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *m.apps[id]
	return &copied
}

func (m *memoryApplications) FindByUserID(_ context.Context, userID string) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, app := range m.apps {
		if app.UserID == userID {
			copied := *app
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryApplications) FindByID(_ context.Context, id string) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	app, ok := m.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (m *memoryApplications) Upsert(_ context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.apps {
		if existing.UserID != app.UserID {
			continue
		}
		if existing.Status != models.ApplicationDraft {
			return sql.ErrNoRows
		}
		existing.Status = app.Status
		existing.Data = app.Data
		existing.SubmittedAt = app.SubmittedAt
		*app = *existing
		return nil
	}
	m.seq++
	app.ID = fmt.Sprintf("app-%d", m.seq)
	app.PublicID = fmt.Sprintf("APP-26-%06X", m.seq)
	app.CreatedAt = time.Now()
	stored := *app
	m.apps[app.ID] = &stored
	return nil
}

func (m *memoryApplications) ListForInbox(context.Context) ([]models.ApplicationWithProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.seats.mu.Lock()
	defer m.seats.mu.Unlock()
	out := []models.ApplicationWithProfile{}
	for _, app := range m.apps {
		if app.Status == models.ApplicationDraft {
			continue
		}
		row := models.ApplicationWithProfile{Application: *app}
		if u, ok := m.seats.users[app.UserID]; ok {
			row.ProfileEmail = u.Email
			row.ProfileFullName = u.FullName
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryApplications) guard(id string, allowed ...models.ApplicationStatus) (*models.Application, error) {
	app, ok := m.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	for _, s := range allowed {
		if app.Status == s {
			return app, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryApplications) StartReview(_ context.Context, id, reviewerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, err := m.guard(id, models.ApplicationSubmitted)
	if err != nil {
		return err
	}
	app.Status = models.ApplicationUnderReview
	app.ReviewedBy = &reviewerID
	return nil
}

func (m *memoryApplications) Approve(_ context.Context, id, reviewerID, courseID string, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	app, err := m.guard(id, models.ApplicationSubmitted, models.ApplicationUnderReview)
	if err != nil {
		return err
	}
	m.seats.mu.Lock()
	defer m.seats.mu.Unlock()
	if m.seats.takenExcept(courseID, app.UserID) >= capacity {
		return repository.ErrCapacityReached
	}
	if u, ok := m.seats.users[app.UserID]; ok && u.EnrollmentStatus.Confirmed() && u.CourseID() != courseID {
		return repository.ErrSeatTaken
	}
	app.Status = models.ApplicationApproved
	app.ReviewedBy = &reviewerID
	if u, ok := m.seats.users[app.UserID]; ok && !u.EnrollmentStatus.Confirmed() {
		u.EnrolledCourseID = &courseID
		u.EnrollmentStatus = models.EnrollmentPaymentPending
	}
	return nil
}

func (m *memoryApplications) Reject(_ context.Context, id, reviewerID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, err := m.guard(id, models.ApplicationSubmitted, models.ApplicationUnderReview)
	if err != nil {
		return err
	}
	app.Status = models.ApplicationRejected
	app.RejectionReason = &reason
	app.ReviewedBy = &reviewerID
	return nil
}

func (m *memoryApplications) SetPaymentLink(_ context.Context, id, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, err := m.guard(id, models.ApplicationApproved)
	if err != nil || app.IsPaid() {
		return sql.ErrNoRows
	}
	now := time.Now()
	app.PaymentLink = &link
	app.PaymentLinkSentAt = &now
	return nil
}

func (m *memoryApplications) MarkPaid(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, err := m.guard(id, models.ApplicationApproved)
	if err != nil || app.IsPaid() || !app.HasPaymentLink() {
		return sql.ErrNoRows
	}
	now := time.Now()
	app.PaymentPaidAt = &now
	m.seats.mu.Lock()
	defer m.seats.mu.Unlock()
	if u, ok := m.seats.users[app.UserID]; ok {
		u.PaymentStatus = models.PaymentPaid
		if u.EnrollmentStatus != models.EnrollmentVisaIssued {
			u.EnrollmentStatus = models.EnrollmentEnrolled
		}
	}
	return nil
}

func (m *memoryApplications) SetPlanDays(_ context.Context, id, planDays string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, err := m.guard(id, models.ApplicationSubmitted, models.ApplicationUnderReview, models.ApplicationApproved)
	if err != nil {
		return err
	}
	app.Data.PlanDays = planDays
	return nil
}

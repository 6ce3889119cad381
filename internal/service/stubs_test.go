package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fos7a/institute-api/internal/catalog"
	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/internal/repository"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return cat
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.logs))
	for i, l := range a.logs {
		out[i] = l.Action
	}
	return out
}

// seatStore is an in-memory stand-in for the seat bearing part of the users table.
type seatStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	overrides map[string]int
	err       error
}

func newSeatStore(users ...*models.User) *seatStore {
	s := &seatStore{users: map[string]*models.User{}, overrides: map[string]int{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *seatStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (s *seatStore) all() []models.User {
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out
}

func (s *seatStore) takenExcept(courseID, userID string) int {
	count := 0
	for _, u := range s.users {
		if u.ID != userID && u.CourseID() == courseID && u.EnrollmentStatus.HoldsSeat() {
			count++
		}
	}
	return count
}

func (s *seatStore) Enroll(_ context.Context, userID, courseID string, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.takenExcept(courseID, userID) >= capacity {
		return repository.ErrCapacityReached
	}
	u, ok := s.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	u.EnrolledCourseID = &courseID
	u.EnrollmentStatus = models.EnrollmentEnrolled
	return nil
}

func (s *seatStore) GetOverride(_ context.Context, courseID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	c, ok := s.overrides[courseID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return c, nil
}

func (s *seatStore) ListOverrides(context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.overrides))
	for k, v := range s.overrides {
		out[k] = v
	}
	return out, s.err
}

func (s *seatStore) UpsertOverride(_ context.Context, o models.CapacityOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[o.CourseID] = o.Capacity
	return s.err
}

func (s *seatStore) CountSeats(_ context.Context, courseID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, u := range s.users {
		if u.CourseID() == courseID && u.EnrollmentStatus.HoldsSeat() {
			count++
		}
	}
	return count, s.err
}

func (s *seatStore) CountAllSeats(context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for _, u := range s.users {
		if u.EnrollmentStatus.HoldsSeat() && u.CourseID() != "" {
			out[u.CourseID()]++
		}
	}
	return out, s.err
}

func seatedUser(id, courseID string, status models.EnrollmentStatus) *models.User {
	return &models.User{ID: id, Email: id + "@example.com", FullName: id, EnrolledCourseID: &courseID, EnrollmentStatus: status, Active: true}
}

func freshUser(id string) *models.User {
	return &models.User{ID: id, Email: id + "@example.com", FullName: id, EnrollmentStatus: models.EnrollmentPending, PaymentStatus: models.PaymentUnpaid, Active: true}
}

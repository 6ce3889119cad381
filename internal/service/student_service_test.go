package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fos7a/institute-api/internal/models"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
)

type mockStudentRepo struct {
	students   map[string]models.Student
	lastFilter models.StudentFilter
	err        error
}

func (m *mockStudentRepo) List(_ context.Context, filter models.StudentFilter) ([]models.StudentDetail, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	details := make([]models.StudentDetail, 0, len(m.students))
	for _, s := range m.students {
		details = append(details, models.StudentDetail{Student: s})
	}
	return details, nil
}

func (m *mockStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByUserID(_ context.Context, userID string) (*models.Student, error) {
	for _, s := range m.students {
		if s.UserID == userID {
			copied := s
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) Create(_ context.Context, student *models.Student) error {
	for _, s := range m.students {
		if s.UserID == student.UserID {
			return &pq.Error{Code: "23505", Constraint: "students_user_id_key"}
		}
	}
	student.ID = "stu-" + student.UserID
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) UpdateStatus(_ context.Context, id string, status models.StudentStatus) error {
	s, ok := m.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Status = status
	m.students[id] = s
	return nil
}

func newTestStudentService(users ...*models.User) (*StudentService, *mockStudentRepo, *auditStub) {
	repo := &mockStudentRepo{students: map[string]models.Student{}}
	audit := &auditStub{}
	return NewStudentService(repo, newSeatStore(users...), audit, validator.New(), zap.NewNop()), repo, audit
}

func TestStudentServiceCreate(t *testing.T) {
	seated := seatedUser("u1", "business", models.EnrollmentEnrolled)
	seated.StudentID = "FTI-26-1234"
	svc, _, audit := newTestStudentService(seated, freshUser("u2"))
	ctx := context.Background()

	student, err := svc.Create(ctx, "admin", CreateStudentRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "FTI-26-1234", student.StudentID)
	require.NotNil(t, student.CourseID)
	assert.Equal(t, "business", *student.CourseID)
	assert.Equal(t, models.StudentActive, student.Status)
	assert.Equal(t, []string{models.AuditActionStudentCreate}, audit.actions())

	_, err = svc.Create(ctx, "admin", CreateStudentRequest{UserID: "u1"})
	assert.Equal(t, appErrors.ErrConflict.Code, codeOf(err))

	_, err = svc.Create(ctx, "admin", CreateStudentRequest{UserID: "u2"})
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, codeOf(err))

	_, err = svc.Create(ctx, "admin", CreateStudentRequest{UserID: "ghost"})
	assert.Equal(t, appErrors.ErrNotFound.Code, codeOf(err))

	_, err = svc.Create(ctx, "admin", CreateStudentRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))
}

func TestStudentServiceUpdateStatus(t *testing.T) {
	svc, repo, _ := newTestStudentService()
	repo.students["s1"] = models.Student{ID: "s1", UserID: "u1", Status: models.StudentActive}
	ctx := context.Background()

	student, err := svc.UpdateStatus(ctx, "admin", "s1", UpdateStudentStatusRequest{Status: models.StudentVisaIssued})
	require.NoError(t, err)
	assert.Equal(t, models.StudentVisaIssued, student.Status)

	_, err = svc.UpdateStatus(ctx, "admin", "s1", UpdateStudentStatusRequest{Status: "graduated"})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	_, err = svc.UpdateStatus(ctx, "admin", "missing", UpdateStudentStatusRequest{Status: models.StudentCompleted})
	assert.Equal(t, appErrors.ErrNotFound.Code, codeOf(err))
}

func TestStudentServiceListAndGetMine(t *testing.T) {
	svc, repo, _ := newTestStudentService()
	repo.students["s1"] = models.Student{ID: "s1", UserID: "u1", Status: models.StudentActive}
	ctx := context.Background()

	list, err := svc.List(ctx, models.StudentFilter{Search: "amina", Status: models.StudentActive})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "amina", repo.lastFilter.Search)

	_, err = svc.List(ctx, models.StudentFilter{Status: "bogus"})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	mine, err := svc.GetMine(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "s1", mine.ID)

	_, err = svc.GetMine(ctx, "u2")
	assert.Equal(t, appErrors.ErrNotFound.Code, codeOf(err))
}

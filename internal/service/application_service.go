package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fos7a/institute-api/internal/catalog"
	"github.com/fos7a/institute-api/internal/models"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
)

type applicationStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.Application, error)
	Upsert(ctx context.Context, app *models.Application) error
}

// ApplicationService handles the student side of the admission lifecycle: drafting
// and submitting the single application of a user.
type ApplicationService struct {
	repo      applicationStore
	catalog   *catalog.Catalog
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewApplicationService constructs the service.
func NewApplicationService(repo applicationStore, cat *catalog.Catalog, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApplicationService{repo: repo, catalog: cat, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// GetMine returns the application of userID.
func (s *ApplicationService) GetMine(ctx context.Context, userID string) (*models.Application, error) {
	app, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no application yet")
		}
		s.logger.Error("failed to load application", zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

// SaveDraft writes the form as a draft. Only drafts can be rewritten.
func (s *ApplicationService) SaveDraft(ctx context.Context, userID string, req models.ApplicationRequest) (*models.Application, error) {
	data, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if data.CourseID != "" && !s.catalog.Exists(data.CourseID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown course")
	}

	app := &models.Application{UserID: userID, Status: models.ApplicationDraft, Data: data}
	if err := s.repo.Upsert(ctx, app); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "application was already submitted")
		}
		s.logger.Error("failed to save draft", zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save application")
	}
	return app, nil
}

// Submit promotes the draft to submitted. The three required consents, a known
// course and, for courses with plans, a valid plan are all required. Exactly one of
// several concurrent submissions wins; the others get a conflict.
func (s *ApplicationService) Submit(ctx context.Context, userID string, req models.ApplicationRequest) (*models.Application, error) {
	data, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if !data.HasRequiredConsents() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "terms, privacy and document collection consent are required")
	}
	if data.CourseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "please choose a course")
	}
	course, ok := s.catalog.Find(models.LocaleEnglish, data.CourseID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown course")
	}
	if course.HasPlans() {
		if _, ok := course.Plan(data.PlanDays); !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "please choose a 30 or 60 day plan")
		}
	}

	now := s.now().UTC()
	data.SubmissionDate = now.Format("2006-01-02")
	app := &models.Application{UserID: userID, Status: models.ApplicationSubmitted, Data: data, SubmittedAt: &now}
	if err := s.repo.Upsert(ctx, app); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "application was already submitted")
		}
		s.logger.Error("failed to submit application", zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit application")
	}

	recordAudit(ctx, s.audit, s.logger, userID, models.AuditActionApplicationSubmit, "application", app.ID, map[string]string{"courseId": data.CourseID, "planDays": data.PlanDays})
	return app, nil
}

func (s *ApplicationService) prepare(req models.ApplicationRequest) (models.ApplicationData, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.ApplicationData{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	data, err := req.ToData()
	if err != nil {
		return models.ApplicationData{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return data, nil
}

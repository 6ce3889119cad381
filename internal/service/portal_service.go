package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fos7a/institute-api/internal/catalog"
	"github.com/fos7a/institute-api/internal/models"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
	"github.com/fos7a/institute-api/pkg/export"
)

const portalLoadError = "We could not load your portal. Please try again."

type studentLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type documentLister interface {
	ListByUser(ctx context.Context, userID string) ([]models.Document, error)
}

type visaLetterRenderer interface {
	RenderVisaLetter(letter export.VisaLetter) ([]byte, error)
}

// PortalService assembles the student portal and issues visa letters.
type PortalService struct {
	users        userFinder
	applications consentLookup
	students     studentLookup
	documents    documentLister
	catalog      *catalog.Catalog
	renderer     visaLetterRenderer
	logger       *zap.Logger
	now          func() time.Time
}

// NewPortalService constructs the service.
func NewPortalService(users userFinder, applications consentLookup, students studentLookup, documents documentLister, cat *catalog.Catalog, renderer visaLetterRenderer, logger *zap.Logger) *PortalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortalService{users: users, applications: applications, students: students, documents: documents, catalog: cat, renderer: renderer, logger: logger, now: time.Now}
}

type portalFacts struct {
	user        *models.User
	application *models.Application
	student     *models.Student
	documents   []models.Document
}

func (s *PortalService) load(ctx context.Context, userID string) (*portalFacts, error) {
	facts := &portalFacts{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user, err := s.users.FindByID(gctx, userID)
		facts.user = user
		return err
	})
	g.Go(func() error {
		app, err := s.applications.FindByUserID(gctx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		facts.application = app
		return err
	})
	g.Go(func() error {
		student, err := s.students.FindByUserID(gctx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		facts.student = student
		return err
	})
	g.Go(func() error {
		docs, err := s.documents.ListByUser(gctx, userID)
		facts.documents = docs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return facts, nil
}

// GetPortal returns the portal state of userID. Load failures are reported as the
// retryable error view rather than as an error.
func (s *PortalService) GetPortal(ctx context.Context, userID string, locale models.Locale) *models.Portal {
	if userID == "" {
		return &models.Portal{View: models.ResolvePortalView(models.PortalInput{})}
	}
	facts, err := s.load(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load portal", zap.String("user_id", userID), zap.Error(err))
		return &models.Portal{
			View:      models.ResolvePortalView(models.PortalInput{Authenticated: true, LoadErr: err}),
			Retryable: true,
			Error:     portalLoadError,
		}
	}

	info := models.NewUserInfo(facts.user)
	portal := &models.Portal{
		View: models.ResolvePortalView(models.PortalInput{
			Authenticated: true,
			HasStudent:    facts.student != nil,
			Application:   facts.application,
		}),
		User:        &info,
		Application: facts.application,
		Student:     facts.student,
		Documents:   facts.documents,
		VisaLetter:  models.NewVisaRequirements(facts.user, facts.documents),
	}
	if course := s.course(locale, facts); course != nil {
		portal.CourseTitle = course.Title
	}
	if facts.application != nil && facts.application.RejectionReason != nil {
		portal.RejectReason = *facts.application.RejectionReason
	}
	return portal
}

// VisaLetter renders the visa support letter once enrollment is confirmed, payment
// is recorded and a document was approved. Otherwise the unmet requirements are
// returned with a PRECONDITION_FAILED error.
func (s *PortalService) VisaLetter(ctx context.Context, userID string, locale models.Locale) ([]byte, models.VisaRequirements, error) {
	facts, err := s.load(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load visa letter facts", zap.String("user_id", userID), zap.Error(err))
		return nil, models.VisaRequirements{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prepare visa letter")
	}
	reqs := models.NewVisaRequirements(facts.user, facts.documents)
	if !reqs.Unlocked {
		return nil, reqs, appErrors.Clone(appErrors.ErrPreconditionFailed, "visa letter is locked: "+strings.Join(missingVisaRequirements(reqs), ", "))
	}

	letter := export.VisaLetter{
		IssuedAt:    s.now().UTC(),
		StudentName: facts.user.FullName,
		StudentID:   facts.user.StudentID,
		Reference:   facts.user.StudentID,
	}
	if app := facts.application; app != nil {
		if name := strings.TrimSpace(app.Data.FullName); name != "" {
			letter.StudentName = name
		}
		letter.Nationality = app.Data.Nationality
		letter.PassportNumber = app.Data.PassportNumber
		letter.PlanDays = app.Data.PlanDays
		if app.PublicID != "" {
			letter.Reference = app.PublicID
		}
	}
	if course := s.course(locale, facts); course != nil {
		letter.CourseTitle = course.Title
		letter.Duration = course.Duration
		if plan, ok := course.Plan(letter.PlanDays); ok {
			letter.Duration = plan.Duration
		}
	}

	pdf, err := s.renderer.RenderVisaLetter(letter)
	if err != nil {
		s.logger.Error("failed to render visa letter", zap.String("user_id", userID), zap.Error(err))
		return nil, reqs, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prepare visa letter")
	}
	return pdf, reqs, nil
}

func (s *PortalService) course(locale models.Locale, facts *portalFacts) *models.Course {
	courseID := facts.user.CourseID()
	if courseID == "" && facts.application != nil {
		courseID = facts.application.Data.CourseID
	}
	if courseID == "" {
		return nil
	}
	course, ok := s.catalog.Find(locale, courseID)
	if !ok {
		return nil
	}
	return course
}

func missingVisaRequirements(reqs models.VisaRequirements) []string {
	missing := make([]string, 0, 3)
	if !reqs.EnrollmentConfirmed {
		missing = append(missing, "enrollment confirmation")
	}
	if !reqs.Paid {
		missing = append(missing, "payment")
	}
	if !reqs.DocumentApproved {
		missing = append(missing, "an approved identity document")
	}
	return missing
}

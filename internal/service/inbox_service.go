package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fos7a/institute-api/internal/catalog"
	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/internal/repository"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
)

type inboxStore interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	ListForInbox(ctx context.Context) ([]models.ApplicationWithProfile, error)
	StartReview(ctx context.Context, id, reviewerID string) error
	Approve(ctx context.Context, id, reviewerID, courseID string, capacity int) error
	Reject(ctx context.Context, id, reviewerID, reason string) error
	SetPaymentLink(ctx context.Context, id, link string) error
	MarkPaid(ctx context.Context, id string) error
	SetPlanDays(ctx context.Context, id, planDays string) error
}

type admissionMetrics interface {
	RecordAdmissionAction(action models.AdminAction, err error)
}

var actionFailureMessages = map[models.AdminAction]string{
	models.ActionStartReview:     "failed to start review",
	models.ActionApprove:         "failed to approve application",
	models.ActionReject:          "failed to reject application",
	models.ActionSendPaymentLink: "failed to send payment link",
	models.ActionMarkPaid:        "failed to mark application as paid",
	models.ActionAssignPlan:      "failed to assign plan",
}

// InboxService backs the admin inbox. Mutations return the refetched inbox so the
// caller always renders the persisted state.
type InboxService struct {
	repo     inboxStore
	users    userFinder
	capacity capacityLookup
	catalog  *catalog.Catalog
	audit    auditRecorder
	notifier notifier
	metrics  admissionMetrics
	logger   *zap.Logger
	inflight singleflight.Group
}

// NewInboxService constructs the service.
func NewInboxService(repo inboxStore, users userFinder, capacity capacityLookup, cat *catalog.Catalog, audit auditRecorder, notifier notifier, metrics admissionMetrics, logger *zap.Logger) *InboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboxService{repo: repo, users: users, capacity: capacity, catalog: cat, audit: audit, notifier: notifier, metrics: metrics, logger: logger}
}

// List returns the enriched inbox narrowed by filter.
func (s *InboxService) List(ctx context.Context, filter models.InboxFilter) ([]models.InboxItem, error) {
	items, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return models.FilterInbox(items, filter), nil
}

func (s *InboxService) fetch(ctx context.Context) ([]models.InboxItem, error) {
	rows, err := s.repo.ListForInbox(ctx)
	if err != nil {
		s.logger.Error("failed to load inbox", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applications")
	}
	items := make([]models.InboxItem, 0, len(rows))
	for i := range rows {
		course, _ := s.catalog.Find(models.LocaleEnglish, rows[i].Data.CourseID)
		items = append(items, models.NewInboxItem(&rows[i], course))
	}
	return items, nil
}

// StartReview moves a submitted application to under_review.
func (s *InboxService) StartReview(ctx context.Context, actorID, id string) ([]models.InboxItem, error) {
	return s.run(ctx, id, models.ActionStartReview, func() error {
		if err := s.repo.StartReview(ctx, id, actorID); err != nil {
			return err
		}
		recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionApplicationReview, "application", id, nil)
		return nil
	})
}

// Approve approves an application and reserves a seat in its course. Courses with
// plans need an assigned plan first.
func (s *InboxService) Approve(ctx context.Context, actorID, id string) ([]models.InboxItem, error) {
	return s.run(ctx, id, models.ActionApprove, func() error {
		app, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if !app.Status.CanTransitionTo(models.ApplicationApproved) {
			return appErrors.ErrInvalidTransition
		}
		course, ok := s.catalog.Find(models.LocaleEnglish, app.Data.CourseID)
		if !ok {
			return appErrors.Clone(appErrors.ErrValidation, "application has no known course")
		}
		if course.HasPlans() {
			if _, ok := course.Plan(app.Data.PlanDays); !ok {
				return appErrors.ErrPlanRequired
			}
		}
		if s.users != nil {
			user, err := s.users.FindByID(ctx, app.UserID)
			if err != nil {
				return err
			}
			if user.EnrollmentStatus.HoldsSeat() && user.CourseID() != course.ID {
				return appErrors.Clone(appErrors.ErrConflict, "applicant already holds a seat in another course")
			}
		}
		capacity, err := s.capacity.Capacity(ctx, course.ID, course.Capacity)
		if err != nil {
			return err
		}
		if err := s.repo.Approve(ctx, id, actorID, course.ID, capacity); err != nil {
			switch {
			case errors.Is(err, repository.ErrCapacityReached):
				return appErrors.ErrCourseFull
			case errors.Is(err, repository.ErrSeatTaken):
				return appErrors.Clone(appErrors.ErrConflict, "applicant already holds a seat in another course")
			}
			return err
		}
		recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionApplicationApprove, "application", id, map[string]string{"courseId": course.ID, "planDays": app.Data.PlanDays})
		s.notify(ctx, app, Notification{Kind: NotifyApplicationApproved})
		return nil
	})
}

// Reject rejects an application with a preset reason and optional details.
func (s *InboxService) Reject(ctx context.Context, actorID, id string, req models.RejectApplicationRequest) ([]models.InboxItem, error) {
	reason, err := models.BuildRejectionReason(req.Reason, req.Details)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return s.run(ctx, id, models.ActionReject, func() error {
		app, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if !app.Status.Reviewable() {
			return appErrors.ErrInvalidTransition
		}
		if err := s.repo.Reject(ctx, id, actorID, reason); err != nil {
			return err
		}
		recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionApplicationReject, "application", id, map[string]string{"reason": reason})
		s.notify(ctx, app, Notification{Kind: NotifyApplicationRejected, Reason: reason})
		return nil
	})
}

// SendPaymentLink records the payment URL of an approved, unpaid application.
func (s *InboxService) SendPaymentLink(ctx context.Context, actorID, id, rawLink string) ([]models.InboxItem, error) {
	link, ok := models.NormalizePaymentLink(rawLink)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment link must start with https://")
	}
	return s.run(ctx, id, models.ActionSendPaymentLink, func() error {
		app, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if app.Status != models.ApplicationApproved || app.IsPaid() {
			return appErrors.ErrInvalidTransition
		}
		if err := s.repo.SetPaymentLink(ctx, id, link); err != nil {
			return err
		}
		recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionPaymentLinkSent, "application", id, map[string]string{"paymentLink": link})
		s.notify(ctx, app, Notification{Kind: NotifyPaymentLink, Link: link})
		return nil
	})
}

// MarkPaid records payment. It is the only way an application reaches paid.
func (s *InboxService) MarkPaid(ctx context.Context, actorID, id string) ([]models.InboxItem, error) {
	return s.run(ctx, id, models.ActionMarkPaid, func() error {
		app, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if app.Status != models.ApplicationApproved || app.IsPaid() || !app.HasPaymentLink() {
			return appErrors.ErrInvalidTransition
		}
		if err := s.repo.MarkPaid(ctx, id); err != nil {
			return err
		}
		recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionPaymentMarkedPaid, "application", id, nil)
		return nil
	})
}

// AssignPlan sets the plan of an application whose course offers plans. Assigning
// the current plan again is a no-op success.
func (s *InboxService) AssignPlan(ctx context.Context, actorID, id string, planDays interface{}) ([]models.InboxItem, error) {
	plan, ok := models.NormalizePlanDays(planDays)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, models.ErrInvalidPlanDays.Error())
	}
	return s.run(ctx, id, models.ActionAssignPlan, func() error {
		app, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		course, found := s.catalog.Find(models.LocaleEnglish, app.Data.CourseID)
		if !found || !course.HasPlans() {
			return appErrors.Clone(appErrors.ErrValidation, "this course has no plans")
		}
		if _, ok := course.Plan(plan); !ok {
			return appErrors.Clone(appErrors.ErrValidation, models.ErrInvalidPlanDays.Error())
		}
		if app.Data.PlanDays == plan {
			return nil
		}
		if err := s.repo.SetPlanDays(ctx, id, plan); err != nil {
			return err
		}
		recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionPlanAssigned, "application", id, map[string]string{"planDays": plan})
		return nil
	})
}

// run collapses concurrent repeats of the same action on the same application,
// translates the outcome and refetches the inbox.
func (s *InboxService) run(ctx context.Context, id string, action models.AdminAction, fn func() error) ([]models.InboxItem, error) {
	key := models.PendingActionKey(id, action)
	_, err, shared := s.inflight.Do(key, func() (interface{}, error) {
		err := s.translate(id, action, fn())
		if s.metrics != nil {
			s.metrics.RecordAdmissionAction(action, err)
		}
		return nil, err
	})
	if shared {
		s.logger.Debug("admin action collapsed", zap.String("key", key))
	}
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx)
}

func (s *InboxService) load(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return app, err
}

func (s *InboxService) translate(id string, action models.AdminAction, err error) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ErrInvalidTransition
	}
	message := actionFailureMessages[action]
	s.logger.Error(message, zap.String("application_id", id), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *InboxService) notify(ctx context.Context, app *models.Application, n Notification) {
	if s.notifier == nil || s.users == nil {
		return
	}
	user, err := s.users.FindByID(ctx, app.UserID)
	if err != nil {
		s.logger.Warn("failed to resolve notification recipient", zap.String("application_id", app.ID), zap.Error(err))
		return
	}
	n.Email = user.Email
	n.FullName = app.Data.FullName
	if n.FullName == "" {
		n.FullName = user.FullName
	}
	n.PublicID = app.PublicID
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("kind", string(n.Kind)), zap.Error(err))
	}
}

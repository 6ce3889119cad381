package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/fos7a/institute-api/internal/catalog"
	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/internal/repository"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
)

type cartStore interface {
	Get(ctx context.Context, userID string) (models.Cart, error)
	Hold(ctx context.Context, userID, courseID string) (string, bool, error)
	Clear(ctx context.Context, userID string) error
}

type seatEnroller interface {
	Enroll(ctx context.Context, userID, courseID string, capacity int) error
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type capacityLookup interface {
	Capacity(ctx context.Context, courseID string, fallback int) (int, error)
}

type sessionMetrics interface {
	RecordSessionLookup(hit bool)
}

// CartService manages the single-slot course cart.
type CartService struct {
	store    cartStore
	seats    seatEnroller
	users    userFinder
	capacity capacityLookup
	catalog  *catalog.Catalog
	audit    auditRecorder
	metrics  sessionMetrics
	logger   *zap.Logger
}

// NewCartService constructs the service.
func NewCartService(store cartStore, seats seatEnroller, users userFinder, capacity capacityLookup, cat *catalog.Catalog, audit auditRecorder, metrics sessionMetrics, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{store: store, seats: seats, users: users, capacity: capacity, catalog: cat, audit: audit, metrics: metrics, logger: logger}
}

// Get returns the cart of userID.
func (s *CartService) Get(ctx context.Context, userID string) (models.Cart, error) {
	cart, err := s.store.Get(ctx, userID)
	if err != nil {
		s.logger.Error("failed to read cart", zap.String("user_id", userID), zap.Error(err))
		return models.Cart{UserID: userID}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart")
	}
	if s.metrics != nil {
		s.metrics.RecordSessionLookup(!cart.Empty())
	}
	return cart, nil
}

// Add places courseID in the cart. When any course is already held the cart is
// returned unchanged together with ErrCartOccupied.
func (s *CartService) Add(ctx context.Context, userID, courseID string) (models.Cart, error) {
	if !s.catalog.Exists(courseID) {
		return models.Cart{UserID: userID}, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	held, ok, err := s.store.Hold(ctx, userID, courseID)
	if err != nil {
		s.logger.Error("failed to hold course", zap.String("user_id", userID), zap.Error(err))
		return models.Cart{UserID: userID}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update cart")
	}
	cart := models.Cart{UserID: userID, CourseID: &held}
	if !ok {
		return cart, appErrors.Clone(appErrors.ErrCartOccupied, "")
	}
	return cart, nil
}

// Remove empties the cart.
func (s *CartService) Remove(ctx context.Context, userID string) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		s.logger.Error("failed to clear cart", zap.String("user_id", userID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update cart")
	}
	return nil
}

// Checkout enrolls the user in the held course, subject to capacity, then clears the cart.
func (s *CartService) Checkout(ctx context.Context, userID string) (*models.UserInfo, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cart is empty")
	}
	courseID := *cart.CourseID

	course, ok := s.catalog.Find(models.LocaleEnglish, courseID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check out")
	}
	if user.EnrollmentStatus.HoldsSeat() && user.CourseID() != courseID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you already hold a seat in another course")
	}

	capacity, err := s.capacity.Capacity(ctx, courseID, course.Capacity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check out")
	}

	if err := s.seats.Enroll(ctx, userID, courseID, capacity); err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityReached):
			return nil, appErrors.Clone(appErrors.ErrCourseFull, "")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session user no longer exists")
		}
		s.logger.Error("checkout failed", zap.String("user_id", userID), zap.String("course_id", courseID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check out")
	}

	if err := s.store.Clear(ctx, userID); err != nil {
		s.logger.Warn("failed to clear cart after checkout", zap.String("user_id", userID), zap.Error(err))
	}
	recordAudit(ctx, s.audit, s.logger, userID, models.AuditActionCartCheckout, "course", courseID, nil)

	user.EnrolledCourseID = &courseID
	user.EnrollmentStatus = models.EnrollmentEnrolled
	info := models.NewUserInfo(user)
	return &info, nil
}

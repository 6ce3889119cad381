package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/fos7a/institute-api/internal/catalog"
	"github.com/fos7a/institute-api/internal/models"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
)

type capacityRepository interface {
	GetOverride(ctx context.Context, courseID string) (int, error)
	ListOverrides(ctx context.Context) (map[string]int, error)
	UpsertOverride(ctx context.Context, override models.CapacityOverride) error
	CountSeats(ctx context.Context, courseID string) (int, error)
	CountAllSeats(ctx context.Context) (map[string]int, error)
}

type seatMetrics interface {
	ObserveSeats(courseID string, enrolled int)
}

// CapacityService derives live seat availability. Stats are always computed from
// the current seat count and never cached.
type CapacityService struct {
	repo    capacityRepository
	catalog *catalog.Catalog
	audit   auditRecorder
	metrics seatMetrics
	logger  *zap.Logger
}

// NewCapacityService constructs the service.
func NewCapacityService(repo capacityRepository, cat *catalog.Catalog, audit auditRecorder, metrics seatMetrics, logger *zap.Logger) *CapacityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityService{repo: repo, catalog: cat, audit: audit, metrics: metrics, logger: logger}
}

// Capacity returns the admin override for courseID, or fallback when none is set.
func (s *CapacityService) Capacity(ctx context.Context, courseID string, fallback int) (int, error) {
	capacity, err := s.repo.GetOverride(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fallback, nil
		}
		return 0, err
	}
	return capacity, nil
}

// GetCourseStats returns the availability of courseID using fallbackCapacity when no override exists.
func (s *CapacityService) GetCourseStats(ctx context.Context, courseID string, fallbackCapacity int) (models.CourseStats, error) {
	capacity, err := s.Capacity(ctx, courseID, fallbackCapacity)
	if err != nil {
		s.logger.Error("failed to load course capacity", zap.String("course_id", courseID), zap.Error(err))
		return models.CourseStats{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course availability")
	}
	enrolled, err := s.repo.CountSeats(ctx, courseID)
	if err != nil {
		s.logger.Error("failed to count seats", zap.String("course_id", courseID), zap.Error(err))
		return models.CourseStats{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course availability")
	}
	if s.metrics != nil {
		s.metrics.ObserveSeats(courseID, enrolled)
	}
	return models.NewCourseStats(courseID, capacity, enrolled), nil
}

// StatsForCourse resolves the base capacity from the catalog.
func (s *CapacityService) StatsForCourse(ctx context.Context, courseID string) (models.CourseStats, error) {
	course, ok := s.catalog.Find(models.LocaleEnglish, courseID)
	if !ok {
		return models.CourseStats{}, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return s.GetCourseStats(ctx, courseID, course.Capacity)
}

// ListCourseStats returns availability for every catalog course.
func (s *CapacityService) ListCourseStats(ctx context.Context) ([]models.CourseStats, error) {
	overrides, err := s.repo.ListOverrides(ctx)
	if err != nil {
		s.logger.Error("failed to list capacity overrides", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course availability")
	}
	seats, err := s.repo.CountAllSeats(ctx)
	if err != nil {
		s.logger.Error("failed to count seats", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course availability")
	}

	courses := s.catalog.List(models.LocaleEnglish)
	out := make([]models.CourseStats, 0, len(courses))
	for _, course := range courses {
		capacity := course.Capacity
		if override, ok := overrides[course.ID]; ok {
			capacity = override
		}
		out = append(out, models.NewCourseStats(course.ID, capacity, seats[course.ID]))
		if s.metrics != nil {
			s.metrics.ObserveSeats(course.ID, seats[course.ID])
		}
	}
	return out, nil
}

// SetCapacity stores an admin capacity override and returns the resulting stats.
func (s *CapacityService) SetCapacity(ctx context.Context, actorID, courseID string, capacity int) (models.CourseStats, error) {
	if capacity < 0 {
		return models.CourseStats{}, appErrors.Clone(appErrors.ErrValidation, "capacity must be zero or greater")
	}
	if !s.catalog.Exists(courseID) {
		return models.CourseStats{}, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if err := s.repo.UpsertOverride(ctx, models.CapacityOverride{CourseID: courseID, Capacity: capacity, UpdatedBy: actorID}); err != nil {
		s.logger.Error("failed to set capacity", zap.String("course_id", courseID), zap.Error(err))
		return models.CourseStats{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update capacity")
	}
	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionCapacityOverride, "course", courseID, map[string]int{"capacity": capacity})
	return s.GetCourseStats(ctx, courseID, capacity)
}

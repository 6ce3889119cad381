package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fos7a/institute-api/internal/catalog"
	"github.com/fos7a/institute-api/internal/dto"
	"github.com/fos7a/institute-api/internal/models"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
	"github.com/fos7a/institute-api/pkg/response"
)

type capacityService interface {
	StatsForCourse(ctx context.Context, courseID string) (models.CourseStats, error)
	ListCourseStats(ctx context.Context) ([]models.CourseStats, error)
	SetCapacity(ctx context.Context, actorID, courseID string, capacity int) (models.CourseStats, error)
}

// CourseHandler serves the localized catalog and seat availability.
type CourseHandler struct {
	catalog  *catalog.Catalog
	capacity capacityService
}

// NewCourseHandler builds a new handler.
func NewCourseHandler(cat *catalog.Catalog, capacity capacityService) *CourseHandler {
	return &CourseHandler{catalog: cat, capacity: capacity}
}

func (h *CourseHandler) locale(c *gin.Context) models.Locale {
	return h.catalog.Locale(c.Query("lang"), c.GetHeader("Accept-Language"))
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param lang query string false "Locale (en, ar, id)"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	locale := h.locale(c)
	courses := h.catalog.List(locale)
	response.OK(c, courses, map[string]interface{}{"locale": locale, "total": len(courses)})
}

// Get godoc
// @Summary Get a course with its availability
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Param lang query string false "Locale (en, ar, id)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, ok := h.catalog.Find(h.locale(c), c.Param("id"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "course not found"))
		return
	}
	detail := dto.CourseDetail{Course: *course}
	if stats, err := h.capacity.StatsForCourse(c.Request.Context(), course.ID); err == nil {
		detail.Stats = &stats
	}
	response.OK(c, detail)
}

// Stats godoc
// @Summary Live seat availability of a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/stats [get]
func (h *CourseHandler) Stats(c *gin.Context) {
	stats, err := h.capacity.StatsForCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// AdminStats godoc
// @Summary Availability of every course
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/courses/stats [get]
func (h *CourseHandler) AdminStats(c *gin.Context) {
	stats, err := h.capacity.ListCourseStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// SetCapacity godoc
// @Summary Override the capacity of a course
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.SetCapacityRequest true "Capacity"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/courses/{id}/capacity [put]
func (h *CourseHandler) SetCapacity(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.SetCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "capacity is required"))
		return
	}
	stats, err := h.capacity.SetCapacity(c.Request.Context(), userID, c.Param("id"), *req.Capacity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}

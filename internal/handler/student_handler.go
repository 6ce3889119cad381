package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/internal/service"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
	"github.com/fos7a/institute-api/pkg/response"
)

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, error)
	Create(ctx context.Context, actorID string, req service.CreateStudentRequest) (*models.Student, error)
	UpdateStatus(ctx context.Context, actorID, id string, req service.UpdateStudentStatusRequest) (*models.Student, error)
}

// StudentHandler handles admin student endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs a new handler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Admin
// @Produce json
// @Param search query string false "Search name, email or student id"
// @Param status query string false "active, visa_issued, completed or withdrawn"
// @Success 200 {object} response.Envelope
// @Router /admin/students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Search: c.Query("search"),
		Status: models.StudentStatus(c.Query("status")),
	}
	students, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, map[string]interface{}{"total": len(students)})
}

// Create godoc
// @Summary Create the student record of a user
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Create(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// UpdateStatus godoc
// @Summary Change a student status
// @Tags Admin
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body service.UpdateStudentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /admin/students/{studentId}/status [patch]
func (h *StudentHandler) UpdateStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req service.UpdateStudentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.UpdateStatus(c.Request.Context(), userID, c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

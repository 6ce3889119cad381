package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/pkg/response"
)

type applicationService interface {
	GetMine(ctx context.Context, userID string) (*models.Application, error)
	SaveDraft(ctx context.Context, userID string, req models.ApplicationRequest) (*models.Application, error)
	Submit(ctx context.Context, userID string, req models.ApplicationRequest) (*models.Application, error)
}

// ApplicationHandler exposes the student's own admission application.
type ApplicationHandler struct {
	service applicationService
}

// NewApplicationHandler builds a new handler.
func NewApplicationHandler(svc applicationService) *ApplicationHandler {
	return &ApplicationHandler{service: svc}
}

// GetMine godoc
// @Summary Current user's application
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/application [get]
func (h *ApplicationHandler) GetMine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	app, err := h.service.GetMine(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, app)
}

// SaveDraft godoc
// @Summary Save the application as a draft
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body models.ApplicationRequest true "Application form"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /me/application [put]
func (h *ApplicationHandler) SaveDraft(c *gin.Context) {
	h.write(c, h.service.SaveDraft)
}

// Submit godoc
// @Summary Submit the application
// @Description Requires terms, privacy and document collection consent, a course, and a plan when the course has plans.
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body models.ApplicationRequest true "Application form"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /me/application/submit [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	h.write(c, h.service.Submit)
}

func (h *ApplicationHandler) write(c *gin.Context, fn func(context.Context, string, models.ApplicationRequest) (*models.Application, error)) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid application payload"))
		return
	}
	app, err := fn(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, app)
}

package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fos7a/institute-api/internal/catalog"
	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/pkg/response"
)

type portalService interface {
	GetPortal(ctx context.Context, userID string, locale models.Locale) *models.Portal
	VisaLetter(ctx context.Context, userID string, locale models.Locale) ([]byte, models.VisaRequirements, error)
}

type studentRecordService interface {
	GetMine(ctx context.Context, userID string) (*models.Student, error)
}

// PortalHandler serves the student portal.
type PortalHandler struct {
	portal   portalService
	students studentRecordService
	catalog  *catalog.Catalog
}

// NewPortalHandler builds a new handler.
func NewPortalHandler(portal portalService, students studentRecordService, cat *catalog.Catalog) *PortalHandler {
	return &PortalHandler{portal: portal, students: students, catalog: cat}
}

func (h *PortalHandler) locale(c *gin.Context) models.Locale {
	return h.catalog.Locale(c.Query("lang"), c.GetHeader("Accept-Language"))
}

// Portal godoc
// @Summary Portal state of the current user
// @Description Always answers 200. Anonymous callers get the sign_in view and load failures the retryable error view.
// @Tags Portal
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/portal [get]
func (h *PortalHandler) Portal(c *gin.Context) {
	userID := ""
	if claims := claimsFromContext(c); claims != nil {
		userID = claims.UserID
	}
	response.OK(c, h.portal.GetPortal(c.Request.Context(), userID, h.locale(c)))
}

// Student godoc
// @Summary Student record of the current user
// @Tags Portal
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/student [get]
func (h *PortalHandler) Student(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	student, err := h.students.GetMine(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, student)
}

// VisaLetter godoc
// @Summary Download the visa support letter
// @Description Unlocked once enrollment is confirmed, payment is recorded and an identity document is approved.
// @Tags Portal
// @Produce application/pdf
// @Success 200 {file} binary
// @Failure 412 {object} response.Envelope
// @Router /me/visa-letter [get]
func (h *PortalHandler) VisaLetter(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	pdf, reqs, err := h.portal.VisaLetter(c.Request.Context(), userID, h.locale(c))
	if err != nil {
		response.Error(c, err, map[string]interface{}{"requirements": reqs})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"visa-letter-%s.pdf\"", userID))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", pdf)
}

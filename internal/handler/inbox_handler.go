package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/pkg/response"
)

type inboxService interface {
	List(ctx context.Context, filter models.InboxFilter) ([]models.InboxItem, error)
	StartReview(ctx context.Context, actorID, id string) ([]models.InboxItem, error)
	Approve(ctx context.Context, actorID, id string) ([]models.InboxItem, error)
	Reject(ctx context.Context, actorID, id string, req models.RejectApplicationRequest) ([]models.InboxItem, error)
	SendPaymentLink(ctx context.Context, actorID, id, link string) ([]models.InboxItem, error)
	MarkPaid(ctx context.Context, actorID, id string) ([]models.InboxItem, error)
	AssignPlan(ctx context.Context, actorID, id string, planDays interface{}) ([]models.InboxItem, error)
}

// InboxHandler exposes the admin application inbox. Every mutation answers with
// the refetched inbox narrowed by the same search and status query as List.
type InboxHandler struct {
	service inboxService
}

// NewInboxHandler builds a new handler.
func NewInboxHandler(svc inboxService) *InboxHandler {
	return &InboxHandler{service: svc}
}

func inboxFilter(c *gin.Context) models.InboxFilter {
	var filter models.InboxFilter
	_ = c.ShouldBindQuery(&filter)
	return filter
}

func respondInbox(c *gin.Context, items []models.InboxItem, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	filtered := models.FilterInbox(items, inboxFilter(c))
	response.OK(c, filtered, map[string]interface{}{"total": len(filtered)})
}

// List godoc
// @Summary List applications
// @Tags Admin
// @Produce json
// @Param search query string false "Search public id, name, email, phone or course"
// @Param status query string false "new, approved, payment_link_sent, paid, rejected or all"
// @Success 200 {object} response.Envelope
// @Router /admin/applications [get]
func (h *InboxHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), models.InboxFilter{})
	respondInbox(c, items, err)
}

// StartReview godoc
// @Summary Start reviewing a submitted application
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/applications/{id}/review [post]
func (h *InboxHandler) StartReview(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	items, err := h.service.StartReview(c.Request.Context(), userID, c.Param("id"))
	respondInbox(c, items, err)
}

// Approve godoc
// @Summary Approve an application and reserve a seat
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/applications/{id}/approve [post]
func (h *InboxHandler) Approve(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	items, err := h.service.Approve(c.Request.Context(), userID, c.Param("id"))
	respondInbox(c, items, err)
}

// Reject godoc
// @Summary Reject an application
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body models.RejectApplicationRequest true "Reason preset and details"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/applications/{id}/reject [post]
func (h *InboxHandler) Reject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.RejectApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid rejection payload"))
		return
	}
	items, err := h.service.Reject(c.Request.Context(), userID, c.Param("id"), req)
	respondInbox(c, items, err)
}

// SendPaymentLink godoc
// @Summary Send the payment link of an approved application
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body models.PaymentLinkRequest true "https payment link"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/applications/{id}/payment-link [post]
func (h *InboxHandler) SendPaymentLink(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.PaymentLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "paymentLink is required"))
		return
	}
	items, err := h.service.SendPaymentLink(c.Request.Context(), userID, c.Param("id"), req.PaymentLink)
	respondInbox(c, items, err)
}

// MarkPaid godoc
// @Summary Record payment of an application
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/applications/{id}/mark-paid [post]
func (h *InboxHandler) MarkPaid(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	items, err := h.service.MarkPaid(c.Request.Context(), userID, c.Param("id"))
	respondInbox(c, items, err)
}

// AssignPlan godoc
// @Summary Assign the 30 or 60 day plan
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body models.AssignPlanRequest true "Plan days"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/applications/{id}/plan [put]
func (h *InboxHandler) AssignPlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.AssignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid plan payload"))
		return
	}
	items, err := h.service.AssignPlan(c.Request.Context(), userID, c.Param("id"), req.PlanDays)
	respondInbox(c, items, err)
}

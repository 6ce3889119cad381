package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/fos7a/institute-api/internal/dto"
	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/pkg/response"
)

type cartService interface {
	Get(ctx context.Context, userID string) (models.Cart, error)
	Add(ctx context.Context, userID, courseID string) (models.Cart, error)
	Remove(ctx context.Context, userID string) error
	Checkout(ctx context.Context, userID string) (*models.UserInfo, error)
}

// CartHandler exposes the single-slot course cart.
type CartHandler struct {
	service cartService
}

// NewCartHandler builds a new handler.
func NewCartHandler(svc cartService) *CartHandler {
	return &CartHandler{service: svc}
}

// Get godoc
// @Summary Current cart
// @Tags Cart
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cart [get]
func (h *CartHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	cart, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cart)
}

// Add godoc
// @Summary Hold a course in the cart
// @Description Only one course can be held. When another is held the request fails and the held course is returned in meta.cart.
// @Tags Cart
// @Accept json
// @Produce json
// @Param payload body dto.AddToCartRequest true "Course"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cart [post]
func (h *CartHandler) Add(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "courseId is required"))
		return
	}
	cart, err := h.service.Add(c.Request.Context(), userID, req.CourseID)
	if err != nil {
		response.Error(c, err, map[string]interface{}{"cart": cart})
		return
	}
	response.OK(c, cart)
}

// Remove godoc
// @Summary Empty the cart
// @Tags Cart
// @Success 204
// @Router /cart [delete]
func (h *CartHandler) Remove(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Checkout godoc
// @Summary Enroll in the held course
// @Tags Cart
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cart/checkout [post]
func (h *CartHandler) Checkout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	info, err := h.service.Checkout(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, info)
}

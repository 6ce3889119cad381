package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/fos7a/institute-api/internal/catalog"
	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/internal/service"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
	"github.com/fos7a/institute-api/pkg/response"
)

type galleryService interface {
	ListPublic(ctx context.Context, locale models.Locale) ([]models.PublicGalleryItem, error)
	List(ctx context.Context, filter models.GalleryFilter) ([]models.GalleryItem, error)
	Upload(ctx context.Context, actorID string, upload service.GalleryUpload) (*models.GalleryUploadResult, error)
	Create(ctx context.Context, actorID string, req models.GalleryItemRequest) (*models.GalleryItem, error)
	Update(ctx context.Context, actorID, id string, patch models.GalleryItemPatch) (*models.GalleryItem, error)
	Delete(ctx context.Context, actorID, id string, deleteFile bool) error
	OpenMedia(ctx context.Context, id string) (*models.GalleryItem, *os.File, error)
}

// GalleryHandler serves the public gallery and its admin management.
type GalleryHandler struct {
	service galleryService
	catalog *catalog.Catalog
}

// NewGalleryHandler builds a new handler.
func NewGalleryHandler(svc galleryService, cat *catalog.Catalog) *GalleryHandler {
	return &GalleryHandler{service: svc, catalog: cat}
}

// Public godoc
// @Summary List the published gallery
// @Tags Gallery
// @Produce json
// @Param lang query string false "Locale (en, ar, id)"
// @Success 200 {object} response.Envelope
// @Router /gallery [get]
func (h *GalleryHandler) Public(c *gin.Context) {
	locale := h.catalog.Locale(c.Query("lang"), c.GetHeader("Accept-Language"))
	items, err := h.service.ListPublic(c.Request.Context(), locale)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items, map[string]interface{}{"total": len(items), "locale": locale})
}

// Media godoc
// @Summary Stream the media of a published gallery item
// @Tags Gallery
// @Produce octet-stream
// @Param id path string true "Gallery item ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /gallery/{id}/media [get]
func (h *GalleryHandler) Media(c *gin.Context) {
	item, file, err := h.service.OpenMedia(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	contentType := "application/octet-stream"
	if item.ContentType != nil && *item.ContentType != "" {
		contentType = *item.ContentType
	}
	size := int64(-1)
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.DataFromReader(http.StatusOK, size, contentType, file, nil)
}

// List godoc
// @Summary List gallery items
// @Tags Admin
// @Produce json
// @Param published query string false "true or false"
// @Success 200 {object} response.Envelope
// @Router /admin/gallery [get]
func (h *GalleryHandler) List(c *gin.Context) {
	var filter models.GalleryFilter
	switch c.Query("published") {
	case "true":
		published := true
		filter.Published = &published
	case "false":
		published := false
		filter.Published = &published
	}
	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items, map[string]interface{}{"total": len(items)})
}

// Upload godoc
// @Summary Upload gallery media
// @Tags Admin
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "JPEG, PNG, WebP, MP4 or WebM"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /admin/gallery/upload [post]
func (h *GalleryHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close() //nolint:errcheck

	res, err := h.service.Upload(c.Request.Context(), userID, service.GalleryUpload{
		FileName: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Create godoc
// @Summary Create a gallery item
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.GalleryItemRequest true "Gallery item"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/gallery [post]
func (h *GalleryHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req models.GalleryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid gallery item payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update a gallery item
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Gallery item ID"
// @Param payload body models.GalleryItemPatch true "Changed fields"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/gallery/{id} [patch]
func (h *GalleryHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var patch models.GalleryItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, bindError(err, "invalid gallery item payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), userID, c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Delete godoc
// @Summary Delete a gallery item
// @Tags Admin
// @Param id path string true "Gallery item ID"
// @Param deleteFile query bool false "Also remove the stored media"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/gallery/{id} [delete]
func (h *GalleryHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), userID, c.Param("id"), c.Query("deleteFile") == "true"); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

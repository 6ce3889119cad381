package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/fos7a/institute-api/internal/dto"
	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/internal/service"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
	"github.com/fos7a/institute-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, userID string, upload service.DocumentUpload) (*models.Document, error)
	List(ctx context.Context, userID string) ([]models.Document, error)
	SignedURL(ctx context.Context, userID, documentID string) (*models.DocumentDownload, error)
	OpenByToken(ctx context.Context, documentID, token string) (*models.Document, *os.File, error)
	Delete(ctx context.Context, userID, documentID string) error
	ListForUser(ctx context.Context, userID string) ([]models.Document, error)
	Approve(ctx context.Context, actorID, documentID string) (*models.Document, error)
	Reject(ctx context.Context, actorID, documentID, reason string) (*models.Document, error)
}

// DocumentHandler exposes identity document upload, download and review.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler builds a new handler.
func NewDocumentHandler(svc documentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// Upload godoc
// @Summary Upload an identity document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param type formData string true "passport or id_card"
// @Param file formData file true "PDF, JPEG or PNG"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /me/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "document type is required"))
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

	doc, err := h.service.Upload(c.Request.Context(), userID, service.DocumentUpload{
		Type:     req.Type,
		FileName: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// List godoc
// @Summary List own documents
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	docs, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, docs)
}

// SignedURL godoc
// @Summary Time limited download link for an own document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/documents/{id}/url [get]
func (h *DocumentHandler) SignedURL(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	link, err := h.service.SignedURL(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

// Delete godoc
// @Summary Delete an own document still pending review
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /me/documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Download a document with a signed token
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, file, err := h.service.OpenByToken(c.Request.Context(), c.Param("id"), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.MimeType, file, nil)
}

// ListForUser godoc
// @Summary List the documents of a user
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /admin/users/{id}/documents [get]
func (h *DocumentHandler) ListForUser(c *gin.Context) {
	docs, err := h.service.ListForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, docs)
}

// Approve godoc
// @Summary Approve a document
// @Tags Admin
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/documents/{id}/approve [post]
func (h *DocumentHandler) Approve(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	doc, err := h.service.Approve(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, doc)
}

// Reject godoc
// @Summary Reject a document
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.RejectDocumentRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/documents/{id}/reject [post]
func (h *DocumentHandler) Reject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req dto.RejectDocumentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "invalid rejection payload"))
			return
		}
	}
	doc, err := h.service.Reject(c.Request.Context(), userID, c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, doc)
}

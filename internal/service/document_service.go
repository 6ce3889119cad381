package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fos7a/institute-api/internal/models"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
	"github.com/fos7a/institute-api/pkg/storage"
)

const (
	defaultMaxDocumentSize = 5 * 1024 * 1024
	sniffLength            = 512
	maxStoredNameLength    = 100
	defaultRejectReason    = "Rejected"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	ListByUser(ctx context.Context, userID string) ([]models.Document, error)
	FindByID(ctx context.Context, id string) (*models.Document, error)
	DeleteOwnPending(ctx context.Context, id, userID string) error
	Review(ctx context.Context, id string, status models.DocumentStatus, reason *string, reviewerID string) error
}

type objectStore interface {
	SaveStream(key string, r io.Reader) (int64, error)
	Open(key string) (*os.File, error)
	Delete(key string) error
}

type consentLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.Application, error)
}

// DocumentConfig tunes upload validation and download links.
type DocumentConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	// DownloadURL is the absolute URL of the token download route.
	DownloadURL string
}

// DocumentUpload is one multipart file submitted by a student.
type DocumentUpload struct {
	Type     models.DocumentType
	FileName string
	Size     int64
	Content  io.Reader
}

// DocumentService stores identity documents and runs their admin review.
type DocumentService struct {
	repo         documentStore
	applications consentLookup
	objects      objectStore
	signer       *storage.SignedURLSigner
	audit        auditRecorder
	logger       *zap.Logger
	config       DocumentConfig
	allowed      map[string]struct{}
}

// NewDocumentService constructs the service.
func NewDocumentService(repo documentStore, applications consentLookup, objects objectStore, signer *storage.SignedURLSigner, audit auditRecorder, logger *zap.Logger, cfg DocumentConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = defaultMaxDocumentSize
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mime := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(mime)] = struct{}{}
	}
	return &DocumentService{repo: repo, applications: applications, objects: objects, signer: signer, audit: audit, logger: logger, config: cfg, allowed: allowed}
}

// Upload validates and stores a document for userID. The application must carry
// the document collection consent.
func (s *DocumentService) Upload(ctx context.Context, userID string, upload DocumentUpload) (*models.Document, error) {
	if !upload.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document type must be passport or id_card")
	}
	if upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.config.MaxFileSizeBytes {
		return nil, s.tooLarge()
	}

	app, err := s.applications.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error("failed to load application for upload", zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upload document")
	}
	if app == nil || !app.Data.ConsentDocumentCollection {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "consent to document collection is required before uploading")
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(upload.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read file")
	}
	if n == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	head = head[:n]
	mime := strings.ToLower(strings.SplitN(http.DetectContentType(head), ";", 2)[0])
	if _, ok := s.allowed[mime]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only PDF, JPEG or PNG files are accepted")
	}

	doc := &models.Document{
		ID:       uuid.NewString(),
		UserID:   userID,
		Type:     upload.Type,
		Name:     strings.TrimSpace(upload.FileName),
		MimeType: mime,
		Status:   models.DocumentPending,
	}
	if doc.Name == "" {
		doc.Name = string(upload.Type)
	}
	doc.FilePath = fmt.Sprintf("students/%s/%s-%s", userID, doc.ID, sanitizeFileName(doc.Name))

	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), upload.Content), s.config.MaxFileSizeBytes+1)
	written, err := s.objects.SaveStream(doc.FilePath, body)
	if err != nil {
		s.logger.Error("failed to store document", zap.String("key", doc.FilePath), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upload document")
	}
	if written > s.config.MaxFileSizeBytes {
		s.removeObject(doc.FilePath)
		return nil, s.tooLarge()
	}
	doc.SizeBytes = written

	if err := s.repo.Create(ctx, doc); err != nil {
		s.removeObject(doc.FilePath)
		s.logger.Error("failed to record document", zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upload document")
	}
	return doc, nil
}

// List returns the documents of userID, newest first.
func (s *DocumentService) List(ctx context.Context, userID string) ([]models.Document, error) {
	docs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list documents", zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	return docs, nil
}

// SignedURL returns a time limited download link for a document owned by userID.
func (s *DocumentService) SignedURL(ctx context.Context, userID, documentID string) (*models.DocumentDownload, error) {
	doc, err := s.owned(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		s.logger.Error("failed to sign download", zap.String("document_id", doc.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create download link")
	}
	link := strings.Replace(s.config.DownloadURL, ":id", url.PathEscape(doc.ID), 1) + "?token=" + url.QueryEscape(token)
	return &models.DocumentDownload{DocumentID: doc.ID, URL: link, ExpiresAt: expiresAt}, nil
}

// OpenByToken resolves a signed download token. The caller closes the returned file.
func (s *DocumentService) OpenByToken(ctx context.Context, documentID, token string) (*models.Document, *os.File, error) {
	objectID, key, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	if documentID != "" && documentID != objectID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	doc, err := s.find(ctx, objectID)
	if err != nil {
		return nil, nil, err
	}
	if doc.FilePath != key {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	file, err := s.objects.Open(key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document file not found")
		}
		s.logger.Error("failed to open document", zap.String("key", key), zap.Error(err))
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	return doc, file, nil
}

// Delete removes a pending document owned by userID together with its object.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.owned(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteOwnPending(ctx, doc.ID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "only documents pending review can be deleted")
		}
		s.logger.Error("failed to delete document", zap.String("document_id", doc.ID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	s.removeObject(doc.FilePath)
	return nil
}

// ListForUser returns the documents of any user for admin review.
func (s *DocumentService) ListForUser(ctx context.Context, userID string) ([]models.Document, error) {
	return s.List(ctx, userID)
}

// Approve marks a pending document approved.
func (s *DocumentService) Approve(ctx context.Context, actorID, documentID string) (*models.Document, error) {
	return s.review(ctx, actorID, documentID, models.DocumentApproved, nil)
}

// Reject marks a pending document rejected. An empty reason becomes "Rejected".
func (s *DocumentService) Reject(ctx context.Context, actorID, documentID, reason string) (*models.Document, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultRejectReason
	}
	return s.review(ctx, actorID, documentID, models.DocumentRejected, &reason)
}

func (s *DocumentService) review(ctx context.Context, actorID, documentID string, status models.DocumentStatus, reason *string) (*models.Document, error) {
	if _, err := s.find(ctx, documentID); err != nil {
		return nil, err
	}
	if err := s.repo.Review(ctx, documentID, status, reason, actorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "document was already reviewed")
		}
		s.logger.Error("failed to review document", zap.String("document_id", documentID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review document")
	}
	values := map[string]string{"status": string(status)}
	if reason != nil {
		values["reason"] = *reason
	}
	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionDocumentReview, "document", documentID, values)
	return s.find(ctx, documentID)
}

func (s *DocumentService) find(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		s.logger.Error("failed to load document", zap.String("document_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// owned hides documents of other users behind NOT_FOUND.
func (s *DocumentService) owned(ctx context.Context, userID, id string) (*models.Document, error) {
	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return doc, nil
}

func (s *DocumentService) removeObject(key string) {
	if err := s.objects.Delete(key); err != nil {
		s.logger.Warn("failed to remove document object", zap.String("key", key), zap.Error(err))
	}
}

func (s *DocumentService) tooLarge() error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d MB limit", s.config.MaxFileSizeBytes/(1024*1024)))
}

func sanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if len(out) > maxStoredNameLength {
		out = out[len(out)-maxStoredNameLength:]
	}
	if out == "" {
		return "document"
	}
	return out
}

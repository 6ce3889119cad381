package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fos7a/institute-api/internal/models"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
	"github.com/fos7a/institute-api/pkg/storage"
)

const (
	defaultGalleryImageBytes = 12 * 1024 * 1024
	defaultGalleryVideoBytes = 200 * 1024 * 1024
)

var galleryExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"video/mp4":  "mp4",
	"video/webm": "webm",
}

type galleryStore interface {
	List(ctx context.Context, filter models.GalleryFilter) ([]models.GalleryItem, error)
	FindByID(ctx context.Context, id string) (*models.GalleryItem, error)
	Create(ctx context.Context, item *models.GalleryItem) error
	Update(ctx context.Context, item *models.GalleryItem) error
	Delete(ctx context.Context, id string) error
}

// GalleryConfig bounds gallery uploads and builds public media links.
type GalleryConfig struct {
	MaxImageBytes int64
	MaxVideoBytes int64
	// MediaURL is the public media route; ":id" is replaced by the item id.
	MediaURL string
}

// GalleryUpload is one media file submitted by an admin.
type GalleryUpload struct {
	FileName string
	Size     int64
	Content  io.Reader
}

// GalleryService manages the public photo and video gallery.
type GalleryService struct {
	repo    galleryStore
	objects objectStore
	audit   auditRecorder
	logger  *zap.Logger
	config  GalleryConfig
}

// NewGalleryService constructs the service.
func NewGalleryService(repo galleryStore, objects objectStore, audit auditRecorder, logger *zap.Logger, cfg GalleryConfig) *GalleryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = defaultGalleryImageBytes
	}
	if cfg.MaxVideoBytes <= 0 {
		cfg.MaxVideoBytes = defaultGalleryVideoBytes
	}
	return &GalleryService{repo: repo, objects: objects, audit: audit, logger: logger, config: cfg}
}

// ListPublic returns the published items localized for locale. Items without
// reachable media are skipped.
func (s *GalleryService) ListPublic(ctx context.Context, locale models.Locale) ([]models.PublicGalleryItem, error) {
	published := true
	items, err := s.List(ctx, models.GalleryFilter{Published: &published})
	if err != nil {
		return nil, err
	}
	out := make([]models.PublicGalleryItem, 0, len(items))
	for i := range items {
		item := &items[i]
		link := s.mediaURL(item)
		if link == "" {
			continue
		}
		out = append(out, models.PublicGalleryItem{
			ID:              item.ID,
			Kind:            item.Kind,
			URL:             link,
			ThumbURL:        item.ThumbURL,
			ContentType:     item.ContentType,
			Width:           item.Width,
			Height:          item.Height,
			DurationSeconds: item.DurationSeconds,
			Caption:         item.Caption(locale),
			Alt:             item.Alt(locale),
		})
	}
	return out, nil
}

// List returns items for the admin view, optionally narrowed by publication.
func (s *GalleryService) List(ctx context.Context, filter models.GalleryFilter) ([]models.GalleryItem, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list gallery items", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load gallery")
	}
	return items, nil
}

// Upload stores an image or video under the gallery prefix. The returned key is
// attached to an item with Create or Update.
func (s *GalleryService) Upload(ctx context.Context, actorID string, upload GalleryUpload) (*models.GalleryUploadResult, error) {
	if upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
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
	ext, ok := galleryExtensions[mime]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only JPEG, PNG, WebP, MP4 or WebM files are accepted")
	}
	limit := s.config.MaxImageBytes
	if strings.HasPrefix(mime, "video/") {
		limit = s.config.MaxVideoBytes
	}
	if upload.Size > limit {
		return nil, tooLargeFor(limit)
	}

	name := "file"
	if base := strings.TrimSpace(strings.TrimSuffix(upload.FileName, path.Ext(upload.FileName))); base != "" {
		name = sanitizeFileName(base)
	}
	key := fmt.Sprintf("%s%s/%s.%s", models.GalleryKeyPrefix, uuid.NewString(), name, ext)

	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), upload.Content), limit+1)
	written, err := s.objects.SaveStream(key, body)
	if err != nil {
		s.logger.Error("failed to store gallery media", zap.String("key", key), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upload media")
	}
	if written > limit {
		s.removeObject(key)
		return nil, tooLargeFor(limit)
	}
	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionGalleryUpload, "gallery", key, map[string]string{"contentType": mime})
	return &models.GalleryUploadResult{Key: key, ContentType: mime, SizeBytes: written}, nil
}

// Create adds an item. Photos and videos need a stored gallery key, external
// videos a public URL.
func (s *GalleryService) Create(ctx context.Context, actorID string, req models.GalleryItemRequest) (*models.GalleryItem, error) {
	item := &models.GalleryItem{
		ID:              uuid.NewString(),
		Kind:            req.Kind,
		StorageKey:      trimmedOrNil(req.StorageKey),
		PublicURL:       trimmedOrNil(req.PublicURL),
		ThumbURL:        trimmedOrNil(req.ThumbURL),
		ContentType:     trimmedOrNil(req.ContentType),
		SizeBytes:       req.SizeBytes,
		Width:           req.Width,
		Height:          req.Height,
		DurationSeconds: req.DurationSeconds,
		CaptionAR:       req.CaptionAR,
		CaptionEN:       req.CaptionEN,
		CaptionID:       req.CaptionID,
		AltAR:           req.AltAR,
		AltEN:           req.AltEN,
		AltID:           req.AltID,
		SortOrder:       req.SortOrder,
		Published:       req.Published,
	}
	if err := validateGalleryItem(item); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, item); err != nil {
		s.logger.Error("failed to create gallery item", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create gallery item")
	}
	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionGalleryCreate, "gallery", item.ID, map[string]interface{}{"kind": item.Kind, "published": item.Published})
	return item, nil
}

// Update applies patch to an item. With DeleteOld a replaced object is removed
// on a best-effort basis.
func (s *GalleryService) Update(ctx context.Context, actorID, id string, patch models.GalleryItemPatch) (*models.GalleryItem, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	oldKey := derefString(item.StorageKey)
	patch.Apply(item)
	item.StorageKey = trimmedOrNil(item.StorageKey)
	if err := validateGalleryItem(item); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "gallery item not found")
		}
		s.logger.Error("failed to update gallery item", zap.String("gallery_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update gallery item")
	}
	if patch.DeleteOld && oldKey != "" && oldKey != derefString(item.StorageKey) && models.IsGalleryKey(oldKey) {
		s.removeObject(oldKey)
	}
	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionGalleryUpdate, "gallery", id, patch)
	return item, nil
}

// Delete removes an item and, when deleteFile is set, its stored object.
func (s *GalleryService) Delete(ctx context.Context, actorID, id string, deleteFile bool) error {
	item, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "gallery item not found")
		}
		s.logger.Error("failed to delete gallery item", zap.String("gallery_id", id), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete gallery item")
	}
	if key := derefString(item.StorageKey); deleteFile && models.IsGalleryKey(key) {
		s.removeObject(key)
	}
	recordAudit(ctx, s.audit, s.logger, actorID, models.AuditActionGalleryDelete, "gallery", id, map[string]bool{"deleteFile": deleteFile})
	return nil
}

// OpenMedia opens the stored media of a published item. The caller closes the file.
func (s *GalleryService) OpenMedia(ctx context.Context, id string) (*models.GalleryItem, *os.File, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	key := derefString(item.StorageKey)
	if !item.Published || !item.Kind.Stored() || key == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "gallery item not found")
	}
	file, err := s.objects.Open(key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "gallery media not found")
		}
		s.logger.Error("failed to open gallery media", zap.String("key", key), zap.Error(err))
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open media")
	}
	return item, file, nil
}

func (s *GalleryService) find(ctx context.Context, id string) (*models.GalleryItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "gallery item not found")
		}
		s.logger.Error("failed to load gallery item", zap.String("gallery_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load gallery item")
	}
	return item, nil
}

func (s *GalleryService) mediaURL(item *models.GalleryItem) string {
	if link := derefString(item.PublicURL); link != "" {
		return link
	}
	if item.Kind.Stored() && item.StorageKey != nil {
		return strings.Replace(s.config.MediaURL, ":id", item.ID, 1)
	}
	return ""
}

func (s *GalleryService) removeObject(key string) {
	if err := s.objects.Delete(key); err != nil {
		s.logger.Warn("failed to remove gallery object", zap.String("key", key), zap.Error(err))
	}
}

func validateGalleryItem(item *models.GalleryItem) error {
	if !item.Kind.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "kind must be photo, video or external_video")
	}
	key := derefString(item.StorageKey)
	if key != "" && !models.IsGalleryKey(key) {
		return appErrors.Clone(appErrors.ErrValidation, `storageKey must start with "gallery/"`)
	}
	if item.Kind.Stored() && key == "" {
		return appErrors.Clone(appErrors.ErrValidation, "storageKey is required for photos and videos")
	}
	if item.Kind == models.GalleryExternalVideo && derefString(item.PublicURL) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "publicUrl is required for external videos")
	}
	return nil
}

func tooLargeFor(limit int64) error {
	return appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds the %d MB limit", limit/(1024*1024)))
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

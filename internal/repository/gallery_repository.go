package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fos7a/institute-api/internal/models"
)

const galleryColumns = `id, kind, storage_key, public_url, thumb_url, content_type, size_bytes, width, height, duration_seconds,
	caption_ar, caption_en, caption_id, alt_ar, alt_en, alt_id, sort_order, is_published, created_at, updated_at`

// GalleryRepository stores gallery item metadata. Media bytes live in storage.
type GalleryRepository struct {
	db *sqlx.DB
}

// NewGalleryRepository constructs the repository.
func NewGalleryRepository(db *sqlx.DB) *GalleryRepository {
	return &GalleryRepository{db: db}
}

// List returns gallery items in display order: sort_order ascending, newest first within a slot.
func (r *GalleryRepository) List(ctx context.Context, filter models.GalleryFilter) ([]models.GalleryItem, error) {
	query := `SELECT ` + galleryColumns + ` FROM gallery_items`
	args := []interface{}{}
	if filter.Published != nil {
		query += ` WHERE is_published = $1`
		args = append(args, *filter.Published)
	}
	query += ` ORDER BY sort_order ASC, created_at DESC`

	items := []models.GalleryItem{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list gallery items: %w", err)
	}
	return items, nil
}

// FindByID returns one item.
func (r *GalleryRepository) FindByID(ctx context.Context, id string) (*models.GalleryItem, error) {
	query := `SELECT ` + galleryColumns + ` FROM gallery_items WHERE id = $1`
	var item models.GalleryItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find gallery item: %w", err)
	}
	return &item, nil
}

// Create inserts item, filling its timestamps.
func (r *GalleryRepository) Create(ctx context.Context, item *models.GalleryItem) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	const query = `INSERT INTO gallery_items (id, kind, storage_key, public_url, thumb_url, content_type, size_bytes, width, height,
		duration_seconds, caption_ar, caption_en, caption_id, alt_ar, alt_en, alt_id, sort_order, is_published, created_at, updated_at)
	VALUES (:id, :kind, :storage_key, :public_url, :thumb_url, :content_type, :size_bytes, :width, :height,
		:duration_seconds, :caption_ar, :caption_en, :caption_id, :alt_ar, :alt_en, :alt_id, :sort_order, :is_published, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create gallery item: %w", err)
	}
	return nil
}

// Update writes every mutable column of item. A missing row yields sql.ErrNoRows.
func (r *GalleryRepository) Update(ctx context.Context, item *models.GalleryItem) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE gallery_items SET storage_key = :storage_key, public_url = :public_url, thumb_url = :thumb_url,
		content_type = :content_type, size_bytes = :size_bytes, width = :width, height = :height, duration_seconds = :duration_seconds,
		caption_ar = :caption_ar, caption_en = :caption_en, caption_id = :caption_id, alt_ar = :alt_ar, alt_en = :alt_en, alt_id = :alt_id,
		sort_order = :sort_order, is_published = :is_published, updated_at = :updated_at
	WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update gallery item: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the row of id.
func (r *GalleryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM gallery_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete gallery item: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

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

const documentColumns = `id, user_id, type, name, file_path, mime_type, size_bytes, status, rejection_reason, uploaded_at, reviewed_at, reviewed_by`

// DocumentRepository stores identity document metadata. Object bytes live in storage.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a pending document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentPending
	}
	const query = `INSERT INTO documents (id, user_id, type, name, file_path, mime_type, size_bytes, status, uploaded_at)
	VALUES (:id, :user_id, :type, :name, :file_path, :mime_type, :size_bytes, :status, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// ListByUser returns the documents of a user, newest first.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 ORDER BY uploaded_at DESC`
	docs := []models.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, userID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// FindByID returns one document.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

// DeleteOwnPending removes a document still pending review that belongs to userID.
func (r *DocumentRepository) DeleteOwnPending(ctx context.Context, id, userID string) error {
	const query = `DELETE FROM documents WHERE id = $1 AND user_id = $2 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Review settles a pending document. Reviewed documents are never reopened.
func (r *DocumentRepository) Review(ctx context.Context, id string, status models.DocumentStatus, reason *string, reviewerID string) error {
	const query = `UPDATE documents SET status = $2, rejection_reason = $3, reviewed_by = $4, reviewed_at = $5
	WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, status, reason, reviewerID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("review document: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

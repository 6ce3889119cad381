package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fos7a/institute-api/internal/models"
)

var documentRowColumns = []string{"id", "user_id", "type", "name", "file_path", "mime_type", "size_bytes", "status", "rejection_reason", "uploaded_at", "reviewed_at", "reviewed_by"}

func TestDocumentCreateDefaultsPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs("d1", "u1", "passport", "passport.pdf", "students/u1/d1-passport.pdf", "application/pdf", int64(1024), "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.Document{ID: "d1", UserID: "u1", Type: models.DocumentPassport, Name: "passport.pdf", FilePath: "students/u1/d1-passport.pdf", MimeType: "application/pdf", SizeBytes: 1024}
	require.NoError(t, repo.Create(context.Background(), doc))
	assert.Equal(t, models.DocumentPending, doc.Status)
	assert.False(t, doc.UploadedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentListByUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(documentRowColumns).
		AddRow("d2", "u1", "id_card", "id.png", "students/u1/d2-id.png", "image/png", 10, "approved", nil, now, now, "admin").
		AddRow("d1", "u1", "passport", "p.pdf", "students/u1/d1-p.pdf", "application/pdf", 20, "pending", nil, now, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE user_id = $1 ORDER BY uploaded_at DESC")).
		WithArgs("u1").
		WillReturnRows(rows)

	docs, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.True(t, models.HasApprovedDocument(docs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentDeleteOnlyPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1 AND user_id = $2 AND status = 'pending'")).
		WithArgs("d1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteOwnPending(context.Background(), "d1", "u1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentReview(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	reason := "Rejected"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET status = $2")).
		WithArgs("d1", "rejected", reason, "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Review(context.Background(), "d1", models.DocumentRejected, &reason, "admin"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

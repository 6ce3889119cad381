package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fos7a/institute-api/internal/models"
)

const applicationColumns = `id, public_id, user_id, status, data, payment_link, payment_link_sent_at, payment_paid_at, rejection_reason, submitted_at, reviewed_by, created_at, updated_at`

// ApplicationRepository persists admission applications. Every state change is a
// conditional write: when the guard does not match, sql.ErrNoRows is returned and
// nothing changes.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// FindByUserID returns the single application owned by userID.
func (r *ApplicationRepository) FindByUserID(ctx context.Context, userID string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE user_id = $1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find application by user: %w", err)
	}
	return &app, nil
}

// FindByID returns an application by identifier.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return &app, nil
}

// ListForInbox returns every non-draft application with its owner's email and name, newest first.
func (r *ApplicationRepository) ListForInbox(ctx context.Context) ([]models.ApplicationWithProfile, error) {
	const query = `SELECT a.id, a.public_id, a.user_id, a.status, a.data, a.payment_link, a.payment_link_sent_at, a.payment_paid_at,
	a.rejection_reason, a.submitted_at, a.reviewed_by, a.created_at, a.updated_at,
	u.email AS profile_email, u.full_name AS profile_full_name
	FROM applications a
	JOIN users u ON u.id = a.user_id
	WHERE a.status <> 'draft'
	ORDER BY a.created_at DESC`
	var apps []models.ApplicationWithProfile
	if err := r.db.SelectContext(ctx, &apps, query); err != nil {
		return nil, fmt.Errorf("list inbox applications: %w", err)
	}
	return apps, nil
}

// Upsert writes the application keyed by user_id with the given status. An existing
// row is only overwritten while it is still a draft; otherwise sql.ErrNoRows is
// returned. Concurrent submissions therefore promote exactly once.
func (r *ApplicationRepository) Upsert(ctx context.Context, app *models.Application) error {
	now := time.Now().UTC()
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.PublicID == "" {
		app.PublicID = newPublicID(now)
	}
	if app.Status == models.ApplicationSubmitted && app.SubmittedAt == nil {
		app.SubmittedAt = &now
	}

	query := `INSERT INTO applications (id, public_id, user_id, status, data, submitted_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	ON CONFLICT (user_id) DO UPDATE SET status = EXCLUDED.status, data = EXCLUDED.data,
		submitted_at = EXCLUDED.submitted_at, updated_at = EXCLUDED.updated_at
	WHERE applications.status = 'draft'
	RETURNING ` + applicationColumns
	if err := r.db.GetContext(ctx, app, query, app.ID, app.PublicID, app.UserID, app.Status, app.Data, app.SubmittedAt, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("upsert application: %w", err)
	}
	return nil
}

// StartReview moves a submitted application under review.
func (r *ApplicationRepository) StartReview(ctx context.Context, id, reviewerID string) error {
	const query = `UPDATE applications SET status = 'under_review', reviewed_by = $2, updated_at = $3 WHERE id = $1 AND status = 'submitted'`
	return r.execGuarded(ctx, "start review", query, id, reviewerID, time.Now().UTC())
}

// Approve approves a submitted or under review application and reserves its seat:
// the owner becomes payment_pending in courseID. ErrCapacityReached and ErrSeatTaken
// (a confirmed seat in another course) leave everything untouched.
func (r *ApplicationRepository) Approve(ctx context.Context, id, reviewerID, courseID string, capacity int) error {
	now := time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	var userID string
	const approve = `UPDATE applications SET status = 'approved', reviewed_by = $2, rejection_reason = NULL, updated_at = $3
	WHERE id = $1 AND status IN ('submitted', 'under_review') RETURNING user_id`
	if err := tx.GetContext(ctx, &userID, approve, id, reviewerID, now); err != nil {
		tx.Rollback() //nolint:errcheck
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("approve application: %w", err)
	}

	if err := reserveSeatTx(ctx, tx, userID, courseID, capacity); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	const seat = `UPDATE users SET enrolled_course_id = $2,
		enrollment_status = CASE WHEN enrollment_status IN ('enrolled', 'visa_issued') THEN enrollment_status ELSE $3 END,
		updated_at = $4
	WHERE id = $1 AND (enrollment_status NOT IN ('enrolled', 'visa_issued') OR enrolled_course_id = $2)`
	res, err := tx.ExecContext(ctx, seat, userID, courseID, models.EnrollmentPaymentPending, now)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("reserve applicant seat: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil || affected == 0 {
		tx.Rollback() //nolint:errcheck
		if err != nil {
			return fmt.Errorf("reserve applicant seat: %w", err)
		}
		return ErrSeatTaken
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approval: %w", err)
	}
	return nil
}

// Reject rejects a submitted or under review application. No seat is held before
// approval, so the owner's profile is left alone.
func (r *ApplicationRepository) Reject(ctx context.Context, id, reviewerID, reason string) error {
	const query = `UPDATE applications SET status = 'rejected', rejection_reason = $2, reviewed_by = $3, updated_at = $4
	WHERE id = $1 AND status IN ('submitted', 'under_review')`
	return r.execGuarded(ctx, "reject application", query, id, reason, reviewerID, time.Now().UTC())
}

// SetPaymentLink stores the payment link of an approved, unpaid application. Resending overwrites it.
func (r *ApplicationRepository) SetPaymentLink(ctx context.Context, id, link string) error {
	const query = `UPDATE applications SET payment_link = $2, payment_link_sent_at = $3, updated_at = $3
	WHERE id = $1 AND status = 'approved' AND payment_paid_at IS NULL`
	return r.execGuarded(ctx, "set payment link", query, id, link, time.Now().UTC())
}

// MarkPaid records payment of an approved application whose link was sent and marks
// the owner enrolled and paid.
func (r *ApplicationRepository) MarkPaid(ctx context.Context, id string) error {
	now := time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	var userID string
	const paid = `UPDATE applications SET payment_paid_at = $2, updated_at = $2
	WHERE id = $1 AND status = 'approved' AND payment_paid_at IS NULL AND btrim(coalesce(payment_link, '')) <> ''
	RETURNING user_id`
	if err := tx.GetContext(ctx, &userID, paid, id, now); err != nil {
		tx.Rollback() //nolint:errcheck
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("mark application paid: %w", err)
	}

	const enroll = `UPDATE users SET payment_status = $2,
		enrollment_status = CASE WHEN enrollment_status = 'visa_issued' THEN enrollment_status ELSE $3 END,
		updated_at = $4
	WHERE id = $1`
	if _, err := tx.ExecContext(ctx, enroll, userID, models.PaymentPaid, models.EnrollmentEnrolled, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("mark applicant paid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment: %w", err)
	}
	return nil
}

// SetPlanDays stores the normalized plan of a non-draft, non-rejected application.
func (r *ApplicationRepository) SetPlanDays(ctx context.Context, id, planDays string) error {
	const query = `UPDATE applications SET data = jsonb_set(coalesce(data, '{}'::jsonb), '{planDays}', to_jsonb($2::text)), updated_at = $3
	WHERE id = $1 AND status IN ('submitted', 'under_review', 'approved')`
	return r.execGuarded(ctx, "set plan days", query, id, planDays, time.Now().UTC())
}

func (r *ApplicationRepository) execGuarded(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func newPublicID(now time.Time) string {
	raw := uuid.New()
	return fmt.Sprintf("APP-%02d-%X", now.Year()%100, raw[:3])
}

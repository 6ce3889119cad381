package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fos7a/institute-api/internal/models"
)

// seatStatuses mirrors models.SeatStatuses as a Postgres array parameter.
func seatStatuses() pq.StringArray {
	out := make(pq.StringArray, len(models.SeatStatuses))
	for i, s := range models.SeatStatuses {
		out[i] = string(s)
	}
	return out
}

// CapacityRepository reads seat counts and stores admin capacity overrides.
type CapacityRepository struct {
	db *sqlx.DB
}

// NewCapacityRepository constructs the repository.
func NewCapacityRepository(db *sqlx.DB) *CapacityRepository {
	return &CapacityRepository{db: db}
}

// GetOverride returns the admin capacity for a course. sql.ErrNoRows when none is set.
func (r *CapacityRepository) GetOverride(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT capacity FROM course_capacity_overrides WHERE course_id = $1`
	var capacity int
	if err := r.db.GetContext(ctx, &capacity, query, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("get capacity override: %w", err)
	}
	return capacity, nil
}

// ListOverrides returns all overrides keyed by course id.
func (r *CapacityRepository) ListOverrides(ctx context.Context) (map[string]int, error) {
	const query = `SELECT course_id, capacity, updated_by FROM course_capacity_overrides`
	var rows []models.CapacityOverride
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list capacity overrides: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.CourseID] = row.Capacity
	}
	return out, nil
}

// UpsertOverride sets the capacity of a course.
func (r *CapacityRepository) UpsertOverride(ctx context.Context, override models.CapacityOverride) error {
	const query = `INSERT INTO course_capacity_overrides (course_id, capacity, updated_by, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (course_id) DO UPDATE SET capacity = EXCLUDED.capacity, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, override.CourseID, override.Capacity, override.UpdatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert capacity override: %w", err)
	}
	return nil
}

// CountSeats counts identities occupying a seat in courseID.
func (r *CapacityRepository) CountSeats(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE enrolled_course_id = $1 AND enrollment_status = ANY($2)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID, seatStatuses()); err != nil {
		return 0, fmt.Errorf("count seats: %w", err)
	}
	return count, nil
}

type seatCount struct {
	CourseID string `db:"course_id"`
	Count    int    `db:"count"`
}

// CountAllSeats returns seat counts for every course with at least one seat taken.
func (r *CapacityRepository) CountAllSeats(ctx context.Context) (map[string]int, error) {
	const query = `SELECT enrolled_course_id AS course_id, COUNT(*) AS count FROM users
	WHERE enrolled_course_id IS NOT NULL AND enrollment_status = ANY($1)
	GROUP BY enrolled_course_id`
	var rows []seatCount
	if err := r.db.SelectContext(ctx, &rows, query, seatStatuses()); err != nil {
		return nil, fmt.Errorf("count all seats: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.CourseID] = row.Count
	}
	return out, nil
}

// Enroll moves an identity straight into a course seat (cart checkout). The seat is
// only granted while the course has room.
func (r *CapacityRepository) Enroll(ctx context.Context, userID, courseID string, capacity int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := reserveSeatTx(ctx, tx, userID, courseID, capacity); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	const update = `UPDATE users SET enrolled_course_id = $2, enrollment_status = $3, updated_at = $4 WHERE id = $1`
	res, err := tx.ExecContext(ctx, update, userID, courseID, models.EnrollmentEnrolled, time.Now().UTC())
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("enroll user: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// reserveSeatTx serializes seat-taking writes per course with a transaction scoped
// advisory lock, then refuses when the course is full. A user already holding a seat
// in the same course does not need another one.
func reserveSeatTx(ctx context.Context, tx *sqlx.Tx, userID, courseID string, capacity int) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, courseID); err != nil {
		return fmt.Errorf("lock course seats: %w", err)
	}
	const query = `SELECT COUNT(*) FROM users WHERE enrolled_course_id = $1 AND enrollment_status = ANY($2) AND id <> $3`
	var taken int
	if err := tx.GetContext(ctx, &taken, query, courseID, seatStatuses(), userID); err != nil {
		return fmt.Errorf("count seats: %w", err)
	}
	if taken >= capacity {
		return ErrCapacityReached
	}
	return nil
}

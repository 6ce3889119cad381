package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrCapacityReached is returned when a seat reservation finds the course full.
	ErrCapacityReached = errors.New("course capacity reached")
	// ErrSeatTaken is returned when the applicant already holds a confirmed seat.
	ErrSeatTaken = errors.New("applicant already holds a seat")
	// ErrEmailTaken is returned when an identity with the same email exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrStudentIDTaken is returned when a generated student id collides.
	ErrStudentIDTaken = errors.New("student id already assigned")
)

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

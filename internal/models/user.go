package models

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleStudent UserRole = "student"
)

// EnrollmentStatus is the seat projection kept on the identity.
type EnrollmentStatus string

const (
	EnrollmentPending        EnrollmentStatus = "pending"
	EnrollmentPaymentPending EnrollmentStatus = "payment_pending"
	EnrollmentEnrolled       EnrollmentStatus = "enrolled"
	EnrollmentVisaIssued     EnrollmentStatus = "visa_issued"
)

// SeatStatuses lists the enrollment statuses that occupy a course seat.
var SeatStatuses = []EnrollmentStatus{EnrollmentPaymentPending, EnrollmentEnrolled, EnrollmentVisaIssued}

// HoldsSeat reports whether the status occupies a seat.
func (s EnrollmentStatus) HoldsSeat() bool {
	for _, seat := range SeatStatuses {
		if s == seat {
			return true
		}
	}
	return false
}

// Confirmed reports whether enrollment is confirmed for visa purposes.
func (s EnrollmentStatus) Confirmed() bool {
	return s == EnrollmentEnrolled || s == EnrollmentVisaIssued
}

// PaymentStatus tracks whether the applicant paid.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// User represents an identity (auth account plus profile) stored in the users table.
type User struct {
	ID               string           `db:"id" json:"id"`
	Email            string           `db:"email" json:"email"`
	PasswordHash     string           `db:"password_hash" json:"-"`
	FullName         string           `db:"full_name" json:"fullName"`
	StudentID        string           `db:"student_id" json:"studentId"`
	Role             UserRole         `db:"role" json:"role"`
	EnrollmentStatus EnrollmentStatus `db:"enrollment_status" json:"status"`
	PaymentStatus    PaymentStatus    `db:"payment_status" json:"paymentStatus"`
	EnrolledCourseID *string          `db:"enrolled_course_id" json:"enrolledCourseId,omitempty"`
	Active           bool             `db:"active" json:"active"`
	LastLogin        *time.Time       `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the identity carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// CourseID returns the enrolled course or an empty string.
func (u *User) CourseID() string {
	if u == nil || u.EnrolledCourseID == nil {
		return ""
	}
	return *u.EnrolledCourseID
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewStudentID returns an id of the form FTI-<YY>-<NNNN>.
func NewStudentID(now time.Time, rng *rand.Rand) string {
	n := 1000 + rng.Intn(9000)
	return fmt.Sprintf("FTI-%02d-%d", now.Year()%100, n)
}

package models

import "time"

// StudentStatus tracks the post-admission state of a student row.
type StudentStatus string

const (
	StudentActive     StudentStatus = "active"
	StudentVisaIssued StudentStatus = "visa_issued"
	StudentCompleted  StudentStatus = "completed"
	StudentWithdrawn  StudentStatus = "withdrawn"
)

// Valid reports whether s is a known status.
func (s StudentStatus) Valid() bool {
	switch s {
	case StudentActive, StudentVisaIssued, StudentCompleted, StudentWithdrawn:
		return true
	}
	return false
}

// Student is the enrollment record created once an admission is finalized.
type Student struct {
	ID         string        `db:"id" json:"id"`
	UserID     string        `db:"user_id" json:"userId"`
	StudentID  string        `db:"student_id" json:"studentId"`
	CourseID   *string       `db:"course_id" json:"courseId,omitempty"`
	Status     StudentStatus `db:"status" json:"status"`
	EnrolledAt time.Time     `db:"enrolled_at" json:"enrolledAt"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updatedAt"`
}

// StudentDetail is a student row joined with its identity, for admin listing.
type StudentDetail struct {
	Student
	FullName string `db:"full_name" json:"fullName"`
	Email    string `db:"email" json:"email"`
}

// StudentFilter narrows the admin student listing.
type StudentFilter struct {
	Search string
	Status StudentStatus
}

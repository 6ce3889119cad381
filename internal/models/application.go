package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ApplicationStatus is the canonical admission lifecycle state.
type ApplicationStatus string

const (
	ApplicationDraft       ApplicationStatus = "draft"
	ApplicationSubmitted   ApplicationStatus = "submitted"
	ApplicationUnderReview ApplicationStatus = "under_review"
	ApplicationApproved    ApplicationStatus = "approved"
	ApplicationRejected    ApplicationStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationDraft, ApplicationSubmitted, ApplicationUnderReview, ApplicationApproved, ApplicationRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	switch s {
	case ApplicationDraft:
		return next == ApplicationSubmitted
	case ApplicationSubmitted:
		return next == ApplicationUnderReview || next == ApplicationApproved || next == ApplicationRejected
	case ApplicationUnderReview:
		return next == ApplicationApproved || next == ApplicationRejected
	default:
		return false
	}
}

// Reviewable reports whether an admin decision (approve or reject) can still be taken.
func (s ApplicationStatus) Reviewable() bool {
	return s == ApplicationSubmitted || s == ApplicationUnderReview
}

// ApplicationData holds the applicant supplied form fields. It is stored as JSONB.
type ApplicationData struct {
	FullName                  string `json:"fullName,omitempty"`
	Phone                     string `json:"phone,omitempty"`
	Address                   string `json:"address,omitempty"`
	DateOfBirth               string `json:"dob,omitempty"`
	Nationality               string `json:"nationality,omitempty"`
	PassportNumber            string `json:"passportNumber,omitempty"`
	PassportExpiry            string `json:"passportExpiry,omitempty"`
	CourseID                  string `json:"courseId,omitempty"`
	PlanDays                  string `json:"planDays,omitempty"`
	AccommodationType         string `json:"accommodationType,omitempty" validate:"omitempty,oneof=shared private"`
	VisaRequired              bool   `json:"visaRequired,omitempty"`
	DesiredLevel              string `json:"desiredLevel,omitempty"`
	Notes                     string `json:"notes,omitempty" validate:"max=2000"`
	SubmissionDate            string `json:"submissionDate,omitempty"`
	ConsentTerms              bool   `json:"consentTerms"`
	ConsentPrivacy            bool   `json:"consentPrivacy"`
	ConsentDocumentCollection bool   `json:"consentDocumentCollection"`
	ConsentGDPR               bool   `json:"consentGDPR"`
}

// HasRequiredConsents reports whether the three consents gating submission are granted.
func (d ApplicationData) HasRequiredConsents() bool {
	return d.ConsentTerms && d.ConsentPrivacy && d.ConsentDocumentCollection
}

// Value implements driver.Valuer.
func (d ApplicationData) Value() (driver.Value, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (d *ApplicationData) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = ApplicationData{}
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("unsupported application data type %T", src)
	}
}

// Application is one admission request per user.
type Application struct {
	ID                string            `db:"id" json:"id"`
	PublicID          string            `db:"public_id" json:"publicId"`
	UserID            string            `db:"user_id" json:"userId"`
	Status            ApplicationStatus `db:"status" json:"status"`
	Data              ApplicationData   `db:"data" json:"data"`
	PaymentLink       *string           `db:"payment_link" json:"paymentLink,omitempty"`
	PaymentLinkSentAt *time.Time        `db:"payment_link_sent_at" json:"paymentLinkSentAt,omitempty"`
	PaymentPaidAt     *time.Time        `db:"payment_paid_at" json:"paymentPaidAt,omitempty"`
	RejectionReason   *string           `db:"rejection_reason" json:"rejectionReason,omitempty"`
	SubmittedAt       *time.Time        `db:"submitted_at" json:"submittedAt,omitempty"`
	ReviewedBy        *string           `db:"reviewed_by" json:"reviewedBy,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updatedAt"`
}

// HasPaymentLink reports whether a non-blank payment link was sent.
func (a *Application) HasPaymentLink() bool {
	return a.PaymentLink != nil && strings.TrimSpace(*a.PaymentLink) != ""
}

// IsPaid reports whether payment was recorded.
func (a *Application) IsPaid() bool {
	return a.PaymentPaidAt != nil
}

// ApplicationWithProfile is an application joined with its owner's identity.
type ApplicationWithProfile struct {
	Application
	ProfileEmail    string `db:"profile_email" json:"-"`
	ProfileFullName string `db:"profile_full_name" json:"-"`
}

// AdminStatus is the derived status shown in the admin inbox.
type AdminStatus string

const (
	AdminStatusNew             AdminStatus = "new"
	AdminStatusApproved        AdminStatus = "approved"
	AdminStatusPaymentLinkSent AdminStatus = "payment_link_sent"
	AdminStatusPaid            AdminStatus = "paid"
	AdminStatusRejected        AdminStatus = "rejected"
	AdminStatusAll             AdminStatus = "all"
)

// DeriveAdminStatus applies the precedence rejected > paid > payment link sent > approved > new.
func DeriveAdminStatus(a *Application) AdminStatus {
	switch {
	case a.Status == ApplicationRejected:
		return AdminStatusRejected
	case a.IsPaid():
		return AdminStatusPaid
	case a.HasPaymentLink():
		return AdminStatusPaymentLinkSent
	case a.Status == ApplicationApproved:
		return AdminStatusApproved
	default:
		return AdminStatusNew
	}
}

// RejectPreset is a fixed rejection reason.
type RejectPreset string

const (
	RejectMissingInfo      RejectPreset = "missing_info"
	RejectInvalidDocuments RejectPreset = "invalid_documents"
	RejectCourseFull       RejectPreset = "course_full"
	RejectNotEligible      RejectPreset = "not_eligible"
	RejectOther            RejectPreset = "other"
)

var rejectPresetLabels = map[RejectPreset]string{
	RejectMissingInfo:      "Missing information",
	RejectInvalidDocuments: "Invalid or unclear documents",
	RejectCourseFull:       "Course is full",
	RejectNotEligible:      "Applicant not eligible",
	RejectOther:            "Other",
}

// Label returns the human readable reason, or "" for unknown presets.
func (p RejectPreset) Label() string {
	return rejectPresetLabels[p]
}

// ErrUnknownRejectPreset is returned by BuildRejectionReason for presets outside the vocabulary.
var ErrUnknownRejectPreset = errors.New("unknown rejection reason")

// BuildRejectionReason joins the preset label with optional trimmed details.
func BuildRejectionReason(preset RejectPreset, details string) (string, error) {
	if preset == "" {
		preset = RejectMissingInfo
	}
	label := preset.Label()
	if label == "" {
		return "", ErrUnknownRejectPreset
	}
	details = strings.TrimSpace(details)
	if details == "" {
		return label, nil
	}
	return label + " - " + details, nil
}

// NormalizePaymentLink trims the link and requires an https scheme.
func NormalizePaymentLink(raw string) (string, bool) {
	link := strings.TrimSpace(raw)
	if !strings.HasPrefix(strings.ToLower(link), "https://") || len(link) <= len("https://") {
		return "", false
	}
	return link, true
}

// NormalizePlanDays accepts "30"/"60" strings or the numbers 30/60.
func NormalizePlanDays(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "30" || trimmed == "60" {
			return trimmed, true
		}
	case int:
		return NormalizePlanDays(fmt.Sprint(v))
	case int64:
		return NormalizePlanDays(fmt.Sprint(v))
	case float64:
		if v == 30 || v == 60 {
			return fmt.Sprint(int(v)), true
		}
	case json.Number:
		return NormalizePlanDays(v.String())
	}
	return "", false
}

// AdminAction names an inbox mutation. Used for pending-action keys and metrics.
type AdminAction string

const (
	ActionStartReview     AdminAction = "review"
	ActionApprove         AdminAction = "approve"
	ActionReject          AdminAction = "reject"
	ActionSendPaymentLink AdminAction = "payment_link"
	ActionMarkPaid        AdminAction = "mark_paid"
	ActionAssignPlan      AdminAction = "plan"
)

// PendingActionKey identifies an in-flight action on one application.
func PendingActionKey(applicationID string, action AdminAction) string {
	return applicationID + ":" + string(action)
}

// ErrInvalidPlanDays is returned when a plan is neither 30 nor 60 days.
var ErrInvalidPlanDays = errors.New("plan must be 30 or 60 days")

// ApplicationRequest is the student form payload. planDays may arrive as a string or a number.
type ApplicationRequest struct {
	ApplicationData
	PlanDays interface{} `json:"planDays,omitempty"`
}

// ToData normalizes the request into stored form data.
func (r ApplicationRequest) ToData() (ApplicationData, error) {
	data := r.ApplicationData
	data.CourseID = strings.TrimSpace(data.CourseID)
	data.PlanDays = ""
	if r.PlanDays == nil {
		return data, nil
	}
	if s, ok := r.PlanDays.(string); ok && strings.TrimSpace(s) == "" {
		return data, nil
	}
	plan, ok := NormalizePlanDays(r.PlanDays)
	if !ok {
		return data, ErrInvalidPlanDays
	}
	data.PlanDays = plan
	return data, nil
}

// AssignPlanRequest sets the plan of an application from the admin inbox.
type AssignPlanRequest struct {
	PlanDays interface{} `json:"planDays"`
}

// RejectApplicationRequest carries the rejection preset and optional notes.
type RejectApplicationRequest struct {
	Reason  RejectPreset `json:"reason"`
	Details string       `json:"details" validate:"max=1000"`
}

// PaymentLinkRequest carries the payment URL sent to an applicant.
type PaymentLinkRequest struct {
	PaymentLink string `json:"paymentLink" validate:"required"`
}

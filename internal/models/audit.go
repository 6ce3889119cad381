package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionSignup              = "SIGNUP"
	AuditActionLogin               = "LOGIN"
	AuditActionLogout              = "LOGOUT"
	AuditActionPasswordChange      = "PASSWORD_CHANGE"
	AuditActionPasswordReset       = "PASSWORD_RESET"
	AuditActionApplicationSubmit   = "APPLICATION_SUBMIT"
	AuditActionApplicationReview   = "APPLICATION_REVIEW"
	AuditActionApplicationApprove  = "APPLICATION_APPROVE"
	AuditActionApplicationReject   = "APPLICATION_REJECT"
	AuditActionPaymentLinkSent     = "PAYMENT_LINK_SENT"
	AuditActionPaymentMarkedPaid   = "PAYMENT_MARKED_PAID"
	AuditActionPlanAssigned        = "PLAN_ASSIGNED"
	AuditActionDocumentReview      = "DOCUMENT_REVIEW"
	AuditActionStudentCreate       = "STUDENT_CREATE"
	AuditActionStudentStatusUpdate = "STUDENT_STATUS_UPDATE"
	AuditActionCapacityOverride    = "CAPACITY_OVERRIDE"
	AuditActionCartCheckout        = "CART_CHECKOUT"
	AuditActionDocumentDownload    = "DOCUMENT_DOWNLOAD"
	AuditActionVisaLetterDownload  = "VISA_LETTER_DOWNLOAD"
	AuditActionGalleryUpload       = "GALLERY_UPLOAD"
	AuditActionGalleryCreate       = "GALLERY_CREATE"
	AuditActionGalleryUpdate       = "GALLERY_UPDATE"
	AuditActionGalleryDelete       = "GALLERY_DELETE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

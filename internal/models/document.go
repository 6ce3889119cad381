package models

import "time"

// DocumentType enumerates accepted identity documents.
type DocumentType string

const (
	DocumentPassport DocumentType = "passport"
	DocumentIDCard   DocumentType = "id_card"
)

// Valid reports whether t is accepted.
func (t DocumentType) Valid() bool {
	return t == DocumentPassport || t == DocumentIDCard
}

// DocumentStatus is the admin review state of a document.
type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentApproved DocumentStatus = "approved"
	DocumentRejected DocumentStatus = "rejected"
)

// Document is an uploaded identity document.
type Document struct {
	ID              string         `db:"id" json:"id"`
	UserID          string         `db:"user_id" json:"userId"`
	Type            DocumentType   `db:"type" json:"type"`
	Name            string         `db:"name" json:"name"`
	FilePath        string         `db:"file_path" json:"-"`
	MimeType        string         `db:"mime_type" json:"mimeType"`
	SizeBytes       int64          `db:"size_bytes" json:"sizeBytes"`
	Status          DocumentStatus `db:"status" json:"status"`
	RejectionReason *string        `db:"rejection_reason" json:"rejectionReason,omitempty"`
	UploadedAt      time.Time      `db:"uploaded_at" json:"uploadDate"`
	ReviewedAt      *time.Time     `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewedBy      *string        `db:"reviewed_by" json:"reviewedBy,omitempty"`
}

// HasApprovedDocument reports whether any document was approved.
func HasApprovedDocument(docs []Document) bool {
	for i := range docs {
		if docs[i].Status == DocumentApproved {
			return true
		}
	}
	return false
}

// DocumentDownload is a time limited link to a document.
type DocumentDownload struct {
	DocumentID string    `json:"documentId"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

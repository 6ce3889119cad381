package dto

import "github.com/fos7a/institute-api/internal/models"

// AddToCartRequest places a course in the cart.
type AddToCartRequest struct {
	CourseID string `json:"courseId" binding:"required"`
}

// SetCapacityRequest overrides the capacity of a course.
type SetCapacityRequest struct {
	Capacity *int `json:"capacity" binding:"required"`
}

// LogoutRequest revokes a refresh token.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// UploadDocumentRequest contains metadata submitted alongside a document upload.
type UploadDocumentRequest struct {
	Type models.DocumentType `form:"type" binding:"required"`
}

// RejectDocumentRequest carries the optional rejection reason of a document.
type RejectDocumentRequest struct {
	Reason string `json:"reason"`
}

// CourseDetail is a catalog course with its live availability.
type CourseDetail struct {
	models.Course
	Stats *models.CourseStats `json:"stats,omitempty"`
}

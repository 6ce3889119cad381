package models

import (
	"strings"
	"time"
)

// InboxContact is the applicant contact block.
type InboxContact struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Nationality string `json:"nationality"`
}

// InboxCourse describes the requested course and plan.
type InboxCourse struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	PlanDays    string       `json:"planDays,omitempty"`
	Plans       []CoursePlan `json:"plans,omitempty"`
	NeedsOption bool         `json:"needsOption"`
}

// InboxItem is an application enriched for the admin inbox.
type InboxItem struct {
	ID                string            `json:"id"`
	PublicID          string            `json:"publicId"`
	UserID            string            `json:"userId"`
	Status            ApplicationStatus `json:"status"`
	AdminStatus       AdminStatus       `json:"adminStatus"`
	Contact           InboxContact      `json:"contact"`
	Course            InboxCourse       `json:"course"`
	PaymentLink       *string           `json:"paymentLink,omitempty"`
	PaymentLinkSentAt *time.Time        `json:"paymentLinkSentAt,omitempty"`
	PaymentPaidAt     *time.Time        `json:"paymentPaidAt,omitempty"`
	RejectionReason   *string           `json:"rejectionReason,omitempty"`
	SubmittedAt       *time.Time        `json:"submittedAt,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// InboxFilter narrows the inbox listing.
type InboxFilter struct {
	Search string      `form:"search"`
	Status AdminStatus `form:"status"`
}

func (i *InboxItem) haystack() string {
	return strings.ToLower(strings.Join([]string{
		i.PublicID,
		i.Contact.FullName,
		i.Contact.Email,
		i.Contact.Phone,
		i.Course.Title,
	}, " "))
}

// Matches applies the search text (case-insensitive substring) and the exact admin status filter.
func (f InboxFilter) Matches(item *InboxItem) bool {
	if f.Status != "" && f.Status != AdminStatusAll && item.AdminStatus != f.Status {
		return false
	}
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	if needle == "" {
		return true
	}
	return strings.Contains(item.haystack(), needle)
}

// FilterInbox returns the items matching f, preserving order.
func FilterInbox(items []InboxItem, f InboxFilter) []InboxItem {
	out := make([]InboxItem, 0, len(items))
	for i := range items {
		if f.Matches(&items[i]) {
			out = append(out, items[i])
		}
	}
	return out
}

// NewInboxItem enriches an application with its derived admin status, contact block
// and course info. course may be nil when the id is not in the catalog.
func NewInboxItem(app *ApplicationWithProfile, course *Course) InboxItem {
	data := app.Data
	fullName := strings.TrimSpace(data.FullName)
	if fullName == "" {
		fullName = strings.TrimSpace(app.ProfileFullName)
	}
	if fullName == "" {
		fullName = app.PublicID
	}
	email := strings.TrimSpace(app.ProfileEmail)

	item := InboxItem{
		ID:                app.ID,
		PublicID:          app.PublicID,
		UserID:            app.UserID,
		Status:            app.Status,
		AdminStatus:       DeriveAdminStatus(&app.Application),
		Contact:           InboxContact{FullName: fullName, Email: email, Phone: data.Phone, Nationality: data.Nationality},
		PaymentLink:       app.PaymentLink,
		PaymentLinkSentAt: app.PaymentLinkSentAt,
		PaymentPaidAt:     app.PaymentPaidAt,
		RejectionReason:   app.RejectionReason,
		SubmittedAt:       app.SubmittedAt,
		CreatedAt:         app.CreatedAt,
	}

	planDays, validPlan := NormalizePlanDays(data.PlanDays)
	item.Course = InboxCourse{ID: data.CourseID, Title: data.CourseID}
	if validPlan {
		item.Course.PlanDays = planDays
	}
	if course != nil {
		item.Course.Title = course.Title
		item.Course.Plans = course.Plans
		if course.HasPlans() {
			_, known := course.Plan(planDays)
			item.Course.NeedsOption = !validPlan || !known
		}
	}
	return item
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterInbox(t *testing.T) {
	items := []InboxItem{
		{PublicID: "APP-26-AAA111", AdminStatus: AdminStatusNew, Contact: InboxContact{FullName: "Amina Yusuf", Email: "amina@example.com", Phone: "+62 811"}, Course: InboxCourse{Title: "Al-Ta'sees (Foundation)"}},
		{PublicID: "APP-26-BBB222", AdminStatus: AdminStatusPaid, Contact: InboxContact{FullName: "Omar Ali", Email: "omar@example.com"}, Course: InboxCourse{Title: "At-Tijarah (Business)"}},
		{PublicID: "APP-26-CCC333", AdminStatus: AdminStatusNew, Contact: InboxContact{FullName: "Sara", Email: "sara@example.com"}, Course: InboxCourse{Title: "At-Tijarah (Business)"}},
	}

	assert.Len(t, FilterInbox(items, InboxFilter{}), 3)
	assert.Len(t, FilterInbox(items, InboxFilter{Status: AdminStatusAll}), 3)
	assert.Len(t, FilterInbox(items, InboxFilter{Status: AdminStatusNew}), 2)
	assert.Len(t, FilterInbox(items, InboxFilter{Search: "BUSINESS"}), 2)
	assert.Len(t, FilterInbox(items, InboxFilter{Search: "business", Status: AdminStatusNew}), 1)
	assert.Len(t, FilterInbox(items, InboxFilter{Search: "bbb222"}), 1)
	assert.Len(t, FilterInbox(items, InboxFilter{Search: "+62"}), 1)
	assert.Empty(t, FilterInbox(items, InboxFilter{Search: "nobody"}))

	filtered := FilterInbox(items, InboxFilter{Status: AdminStatusNew})
	assert.Equal(t, "APP-26-AAA111", filtered[0].PublicID)
}

func TestNewInboxItemEnrichment(t *testing.T) {
	link := "https://pay.example/1"
	app := &ApplicationWithProfile{
		Application: Application{
			ID: "a1", PublicID: "APP-26-ABCDEF", Status: ApplicationApproved,
			Data:        ApplicationData{Phone: "+62 811", CourseID: "beginner", PlanDays: " 60 "},
			PaymentLink: &link,
		},
		ProfileEmail:    "amina@example.com",
		ProfileFullName: "Amina Profile",
	}
	course := &Course{ID: "beginner", Title: "Beginner Arabic", Plans: []CoursePlan{{ID: "30"}, {ID: "60"}}}

	item := NewInboxItem(app, course)
	assert.Equal(t, AdminStatusPaymentLinkSent, item.AdminStatus)
	assert.Equal(t, "Amina Profile", item.Contact.FullName)
	assert.Equal(t, "amina@example.com", item.Contact.Email)
	assert.Equal(t, "Beginner Arabic", item.Course.Title)
	assert.Equal(t, "60", item.Course.PlanDays)
	assert.False(t, item.Course.NeedsOption)

	app.Data.PlanDays = ""
	app.ProfileFullName = ""
	item = NewInboxItem(app, course)
	assert.True(t, item.Course.NeedsOption)
	assert.Equal(t, "APP-26-ABCDEF", item.Contact.FullName)

	item = NewInboxItem(app, nil)
	assert.Equal(t, "beginner", item.Course.Title)
	assert.False(t, item.Course.NeedsOption)
}

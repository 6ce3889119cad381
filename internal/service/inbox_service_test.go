package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fos7a/institute-api/internal/models"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
)

type inboxFixture struct {
	svc      *InboxService
	apps     *memoryApplications
	seats    *seatStore
	audit    *auditStub
	notifier *recordingNotifier
	metrics  *MetricsService
}

func newInboxFixture(t *testing.T, users ...*models.User) *inboxFixture {
	t.Helper()
	seats := newSeatStore(users...)
	apps := newMemoryApplications(seats)
	audit := &auditStub{}
	notifier := &recordingNotifier{}
	metrics := NewMetricsService()
	cat := testCatalog(t)
	capacity := NewCapacityService(seats, cat, audit, nil, nil)
	svc := NewInboxService(apps, seats, capacity, cat, audit, notifier, metrics, nil)
	return &inboxFixture{svc: svc, apps: apps, seats: seats, audit: audit, notifier: notifier, metrics: metrics}
}

func submitted(userID, courseID, plan string) models.Application {
	now := time.Now()
	return models.Application{
		UserID:      userID,
		Status:      models.ApplicationSubmitted,
		Data:        models.ApplicationData{FullName: "Applicant " + userID, CourseID: courseID, PlanDays: plan, Phone: "+966500000" + userID},
		SubmittedAt: &now,
	}
}

func codeOf(err error) string {
	return appErrors.FromError(err).Code
}

func TestInboxListEnrichesAndFilters(t *testing.T) {
	f := newInboxFixture(t, freshUser("u1"), freshUser("u2"), freshUser("u3"))
	f.apps.put(submitted("u1", "business", ""))
	link := "https://pay.example/abc"
	approved := submitted("u2", "beginner", "")
	approved.Status = models.ApplicationApproved
	approved.PaymentLink = &link
	f.apps.put(approved)
	f.apps.put(models.Application{UserID: "u3", Status: models.ApplicationDraft})

	items, err := f.svc.List(context.Background(), models.InboxFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "u2", items[0].UserID)
	assert.Equal(t, models.AdminStatusPaymentLinkSent, items[0].AdminStatus)
	assert.True(t, items[0].Course.NeedsOption)
	assert.Equal(t, "u2@example.com", items[0].Contact.Email)
	assert.Equal(t, models.AdminStatusNew, items[1].AdminStatus)
	assert.False(t, items[1].Course.NeedsOption)

	items, err = f.svc.List(context.Background(), models.InboxFilter{Status: models.AdminStatusNew})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "u1", items[0].UserID)

	items, err = f.svc.List(context.Background(), models.InboxFilter{Search: "U2@EXAMPLE"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "u2", items[0].UserID)
}

func TestInboxApproveRequiresPlan(t *testing.T) {
	f := newInboxFixture(t, freshUser("u1"))
	app := f.apps.put(submitted("u1", "beginner", ""))
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, "admin", app.ID)
	assert.Equal(t, appErrors.ErrPlanRequired.Code, codeOf(err))
	assert.Equal(t, models.ApplicationSubmitted, f.apps.get(app.ID).Status)
	assert.Empty(t, f.audit.actions())

	_, err = f.svc.AssignPlan(ctx, "admin", app.ID, float64(60))
	require.NoError(t, err)

	items, err := f.svc.Approve(ctx, "admin", app.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.AdminStatusApproved, items[0].AdminStatus)
	assert.Equal(t, "60", items[0].Course.PlanDays)

	user, err := f.seats.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentPaymentPending, user.EnrollmentStatus)
	assert.Equal(t, "beginner", user.CourseID())

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, NotifyApplicationApproved, f.notifier.sent[0].Kind)
	assert.Equal(t, "u1@example.com", f.notifier.sent[0].Email)
	assert.Equal(t, []string{models.AuditActionPlanAssigned, models.AuditActionApplicationApprove}, f.audit.actions())

	_, err = f.svc.Approve(ctx, "admin", app.ID)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, codeOf(err))
}

func TestInboxApproveCourseFull(t *testing.T) {
	f := newInboxFixture(t, freshUser("u1"), seatedUser("u9", "business", models.EnrollmentEnrolled))
	f.seats.overrides["business"] = 1
	app := f.apps.put(submitted("u1", "business", ""))

	_, err := f.svc.Approve(context.Background(), "admin", app.ID)
	assert.Equal(t, appErrors.ErrCourseFull.Code, codeOf(err))
	assert.Equal(t, models.ApplicationSubmitted, f.apps.get(app.ID).Status)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().AdmissionFailures)
}

func TestInboxPaymentFlow(t *testing.T) {
	f := newInboxFixture(t, freshUser("u1"))
	app := f.apps.put(submitted("u1", "business", ""))
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, "admin", app.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(ctx, "admin", app.ID)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, codeOf(err))

	_, err = f.svc.SendPaymentLink(ctx, "admin", app.ID, "http://pay.example/x")
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))
	assert.Nil(t, f.apps.get(app.ID).PaymentLink)

	items, err := f.svc.SendPaymentLink(ctx, "admin", app.ID, "  HTTPS://pay.example/x ")
	require.NoError(t, err)
	assert.Equal(t, models.AdminStatusPaymentLinkSent, items[0].AdminStatus)
	assert.Equal(t, "HTTPS://pay.example/x", *items[0].PaymentLink)

	items, err = f.svc.MarkPaid(ctx, "admin", app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AdminStatusPaid, items[0].AdminStatus)

	user, err := f.seats.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentEnrolled, user.EnrollmentStatus)
	assert.Equal(t, models.PaymentPaid, user.PaymentStatus)

	_, err = f.svc.SendPaymentLink(ctx, "admin", app.ID, "https://pay.example/y")
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, codeOf(err))

	kinds := []NotificationKind{}
	for _, n := range f.notifier.sent {
		kinds = append(kinds, n.Kind)
	}
	assert.Equal(t, []NotificationKind{NotifyApplicationApproved, NotifyPaymentLink}, kinds)
}

func TestInboxRejectBeforeApproval(t *testing.T) {
	f := newInboxFixture(t, freshUser("u1"))
	app := f.apps.put(submitted("u1", "business", ""))
	ctx := context.Background()

	_, err := f.svc.Reject(ctx, "admin", app.ID, models.RejectApplicationRequest{Reason: "bogus"})
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	_, err = f.svc.StartReview(ctx, "admin", app.ID)
	require.NoError(t, err)

	items, err := f.svc.Reject(ctx, "admin", app.ID, models.RejectApplicationRequest{Reason: models.RejectInvalidDocuments, Details: "  passport blurry "})
	require.NoError(t, err)
	assert.Equal(t, models.AdminStatusRejected, items[0].AdminStatus)
	assert.Equal(t, "Invalid or unclear documents - passport blurry", *items[0].RejectionReason)

	user, err := f.seats.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentPending, user.EnrollmentStatus)
	assert.Empty(t, user.CourseID())

	last := f.notifier.sent[len(f.notifier.sent)-1]
	assert.Equal(t, NotifyApplicationRejected, last.Kind)
	assert.Equal(t, "Invalid or unclear documents - passport blurry", last.Reason)

	_, err = f.svc.Reject(ctx, "admin", app.ID, models.RejectApplicationRequest{})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, codeOf(err))
}

func TestInboxRejectAfterPaymentIsRefused(t *testing.T) {
	f := newInboxFixture(t, freshUser("u1"))
	app := f.apps.put(submitted("u1", "business", ""))
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, "admin", app.ID)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, "admin", app.ID, models.RejectApplicationRequest{Reason: models.RejectMissingInfo})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, codeOf(err))

	_, err = f.svc.SendPaymentLink(ctx, "admin", app.ID, "https://pay.example/x")
	require.NoError(t, err)
	_, err = f.svc.MarkPaid(ctx, "admin", app.ID)
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, "admin", app.ID, models.RejectApplicationRequest{Reason: models.RejectMissingInfo})
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, codeOf(err))

	stored := f.apps.get(app.ID)
	assert.Equal(t, models.ApplicationApproved, stored.Status)
	assert.True(t, stored.IsPaid())
	user, err := f.seats.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentEnrolled, user.EnrollmentStatus)
	assert.Equal(t, models.PaymentPaid, user.PaymentStatus)
	assert.Equal(t, "business", user.CourseID())
}

func TestInboxApproveRefusesApplicantSeatedElsewhere(t *testing.T) {
	f := newInboxFixture(t, seatedUser("u1", "immersion", models.EnrollmentEnrolled))
	app := f.apps.put(submitted("u1", "business", ""))
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, "admin", app.ID)
	assert.Equal(t, appErrors.ErrConflict.Code, codeOf(err))
	assert.Equal(t, models.ApplicationSubmitted, f.apps.get(app.ID).Status)

	user, err := f.seats.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "immersion", user.CourseID())
	assert.Equal(t, models.EnrollmentEnrolled, user.EnrollmentStatus)
	assert.Empty(t, f.notifier.sent)
}

func TestInboxGuardsRunBeforeStore(t *testing.T) {
	f := newInboxFixture(t, freshUser("u1"))
	app := f.apps.put(submitted("u1", "business", ""))
	ctx := context.Background()

	_, err := f.svc.SendPaymentLink(ctx, "admin", app.ID, "https://pay.example/x")
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, codeOf(err))
	_, err = f.svc.MarkPaid(ctx, "admin", app.ID)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, codeOf(err))
	assert.Nil(t, f.apps.get(app.ID).PaymentLink)

	_, err = f.svc.MarkPaid(ctx, "admin", "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, codeOf(err))
	assert.Empty(t, f.audit.actions())
}

func TestInboxAssignPlan(t *testing.T) {
	f := newInboxFixture(t, freshUser("u1"), freshUser("u2"))
	beginner := f.apps.put(submitted("u1", "beginner", ""))
	business := f.apps.put(submitted("u2", "business", ""))
	ctx := context.Background()

	_, err := f.svc.AssignPlan(ctx, "admin", beginner.ID, "45")
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	for i := 0; i < 2; i++ {
		_, err = f.svc.AssignPlan(ctx, "admin", beginner.ID, "30")
		require.NoError(t, err)
	}
	assert.Equal(t, "30", f.apps.get(beginner.ID).Data.PlanDays)
	assert.Equal(t, []string{models.AuditActionPlanAssigned}, f.audit.actions())

	_, err = f.svc.AssignPlan(ctx, "admin", business.ID, 30)
	assert.Equal(t, appErrors.ErrValidation.Code, codeOf(err))

	_, err = f.svc.AssignPlan(ctx, "admin", "missing", "30")
	assert.Equal(t, appErrors.ErrNotFound.Code, codeOf(err))
}

func TestInboxBackendFailureIsGeneric(t *testing.T) {
	f := newInboxFixture(t, freshUser("u1"))
	app := f.apps.put(submitted("u1", "business", ""))
	f.apps.err = errors.New("connection reset")

	_, err := f.svc.Approve(context.Background(), "admin", app.ID)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	assert.Equal(t, "failed to approve application", appErr.Message)

	_, err = f.svc.List(context.Background(), models.InboxFilter{})
	assert.Equal(t, "failed to load applications", appErrors.FromError(err).Message)
}

type blockingInbox struct {
	*memoryApplications
	calls   int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingInbox) MarkPaid(ctx context.Context, id string) error {
	if atomic.AddInt32(&b.calls, 1) == 1 {
		close(b.entered)
	}
	<-b.release
	return b.memoryApplications.MarkPaid(ctx, id)
}

func TestInboxCollapsesRepeatedAction(t *testing.T) {
	seats := newSeatStore(freshUser("u1"))
	store := &blockingInbox{memoryApplications: newMemoryApplications(seats), entered: make(chan struct{}), release: make(chan struct{})}
	link := "https://pay.example/x"
	app := submitted("u1", "business", "")
	app.Status = models.ApplicationApproved
	app.PaymentLink = &link
	stored := store.put(app)

	cat := testCatalog(t)
	svc := NewInboxService(store, seats, NewCapacityService(seats, cat, nil, nil, nil), cat, nil, nil, nil, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.MarkPaid(context.Background(), "admin", stored.ID)
	}()
	<-store.entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = svc.MarkPaid(context.Background(), "admin", stored.ID)
	}()
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.calls))
}

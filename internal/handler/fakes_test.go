package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fos7a/institute-api/internal/catalog"
	"github.com/fos7a/institute-api/internal/middleware"
	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/internal/service"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// withUser returns a context whose claims identify userID with role.
func withUser(rec *httptest.ResponseRecorder, method, target string, body io.Reader, userID string, role models.UserRole) *gin.Context {
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, body)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
	}
	return c
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return cat
}

type staticTokens map[string]*models.JWTClaims

func (s staticTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

type fakeAuth struct {
	forgotCalls int
	forgotErr   error
	login       *models.LoginResponse
	loginErr    error
	me          *models.UserInfo
}

func (f *fakeAuth) Signup(context.Context, models.SignupRequest, models.LoginRequest) (*models.LoginResponse, error) {
	return f.login, f.loginErr
}

func (f *fakeAuth) Login(context.Context, models.LoginRequest) (*models.LoginResponse, error) {
	return f.login, f.loginErr
}

func (f *fakeAuth) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{}, nil
}

func (f *fakeAuth) Logout(context.Context, string, string, models.LoginRequest) error { return nil }

func (f *fakeAuth) Me(_ context.Context, userID string) (*models.UserInfo, error) {
	if f.me == nil {
		return nil, appErrors.ErrNotFound
	}
	return f.me, nil
}

func (f *fakeAuth) ChangePassword(context.Context, string, models.ChangePasswordRequest) error {
	return nil
}

func (f *fakeAuth) ForgotPassword(context.Context, models.ForgotPasswordRequest) error {
	f.forgotCalls++
	return f.forgotErr
}

func (f *fakeAuth) ResetPassword(context.Context, models.ResetPasswordRequest) error { return nil }

type fakeCart struct {
	cart models.Cart
	err  error
}

func (f *fakeCart) Get(_ context.Context, userID string) (models.Cart, error) {
	f.cart.UserID = userID
	return f.cart, f.err
}

func (f *fakeCart) Add(_ context.Context, userID, courseID string) (models.Cart, error) {
	if f.err != nil {
		return f.cart, f.err
	}
	f.cart = models.Cart{UserID: userID, CourseID: &courseID}
	return f.cart, nil
}

func (f *fakeCart) Remove(context.Context, string) error {
	f.cart.CourseID = nil
	return f.err
}

func (f *fakeCart) Checkout(context.Context, string) (*models.UserInfo, error) {
	return &models.UserInfo{}, f.err
}

type fakeCapacity struct{}

func (fakeCapacity) StatsForCourse(_ context.Context, courseID string) (models.CourseStats, error) {
	return models.CourseStats{CourseID: courseID}, nil
}

func (fakeCapacity) ListCourseStats(context.Context) ([]models.CourseStats, error) {
	return []models.CourseStats{}, nil
}

func (fakeCapacity) SetCapacity(_ context.Context, _, courseID string, _ int) (models.CourseStats, error) {
	return models.CourseStats{CourseID: courseID}, nil
}

type fakeApplications struct{}

func (fakeApplications) GetMine(context.Context, string) (*models.Application, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no application yet")
}

func (fakeApplications) SaveDraft(context.Context, string, models.ApplicationRequest) (*models.Application, error) {
	return &models.Application{Status: models.ApplicationDraft}, nil
}

func (fakeApplications) Submit(context.Context, string, models.ApplicationRequest) (*models.Application, error) {
	return &models.Application{Status: models.ApplicationSubmitted}, nil
}

type fakeInbox struct {
	items      []models.InboxItem
	err        error
	lastReject models.RejectApplicationRequest
	lastActor  string
}

func (f *fakeInbox) result(actorID string) ([]models.InboxItem, error) {
	f.lastActor = actorID
	return f.items, f.err
}

func (f *fakeInbox) List(context.Context, models.InboxFilter) ([]models.InboxItem, error) {
	return f.items, f.err
}

func (f *fakeInbox) StartReview(_ context.Context, actorID, _ string) ([]models.InboxItem, error) {
	return f.result(actorID)
}

func (f *fakeInbox) Approve(_ context.Context, actorID, _ string) ([]models.InboxItem, error) {
	return f.result(actorID)
}

func (f *fakeInbox) Reject(_ context.Context, actorID, _ string, req models.RejectApplicationRequest) ([]models.InboxItem, error) {
	f.lastReject = req
	return f.result(actorID)
}

func (f *fakeInbox) SendPaymentLink(_ context.Context, actorID, _, _ string) ([]models.InboxItem, error) {
	return f.result(actorID)
}

func (f *fakeInbox) MarkPaid(_ context.Context, actorID, _ string) ([]models.InboxItem, error) {
	return f.result(actorID)
}

func (f *fakeInbox) AssignPlan(_ context.Context, actorID, _ string, _ interface{}) ([]models.InboxItem, error) {
	return f.result(actorID)
}

type fakePortal struct {
	pdf  []byte
	reqs models.VisaRequirements
	err  error
}

func (f *fakePortal) GetPortal(_ context.Context, userID string, _ models.Locale) *models.Portal {
	if userID == "" {
		return &models.Portal{View: models.PortalSignIn}
	}
	return &models.Portal{View: models.PortalApplicationForm}
}

func (f *fakePortal) VisaLetter(context.Context, string, models.Locale) ([]byte, models.VisaRequirements, error) {
	return f.pdf, f.reqs, f.err
}

type fakeStudentRecords struct{}

func (fakeStudentRecords) GetMine(context.Context, string) (*models.Student, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no student record yet")
}

func (fakeStudentRecords) List(context.Context, models.StudentFilter) ([]models.StudentDetail, error) {
	return []models.StudentDetail{}, nil
}

func (fakeStudentRecords) Create(_ context.Context, _ string, req service.CreateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: "s1", UserID: req.UserID, Status: models.StudentActive}, nil
}

func (fakeStudentRecords) UpdateStatus(_ context.Context, _, id string, req service.UpdateStudentStatusRequest) (*models.Student, error) {
	return &models.Student{ID: id, Status: req.Status}, nil
}

type fakeDocuments struct {
	path       string
	doc        *models.Document
	lastUpload service.DocumentUpload
	openErr    error
}

func (f *fakeDocuments) Upload(_ context.Context, userID string, upload service.DocumentUpload) (*models.Document, error) {
	f.lastUpload = upload
	return &models.Document{ID: "d1", UserID: userID, Type: upload.Type, Name: upload.FileName, Status: models.DocumentPending}, nil
}

func (f *fakeDocuments) List(context.Context, string) ([]models.Document, error) {
	return []models.Document{}, nil
}

func (f *fakeDocuments) SignedURL(_ context.Context, _, documentID string) (*models.DocumentDownload, error) {
	return &models.DocumentDownload{DocumentID: documentID, URL: "/api/v1/documents/" + documentID + "/download?token=t"}, nil
}

func (f *fakeDocuments) OpenByToken(_ context.Context, _, token string) (*models.Document, *os.File, error) {
	if f.openErr != nil || token != "valid" {
		if f.openErr != nil {
			return nil, nil, f.openErr
		}
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired link")
	}
	file, err := os.Open(f.path)
	if err != nil {
		return nil, nil, err
	}
	return f.doc, file, nil
}

func (f *fakeDocuments) Delete(context.Context, string, string) error { return nil }

func (f *fakeDocuments) ListForUser(context.Context, string) ([]models.Document, error) {
	return []models.Document{}, nil
}

func (f *fakeDocuments) Approve(_ context.Context, _, documentID string) (*models.Document, error) {
	return &models.Document{ID: documentID, Status: models.DocumentApproved}, nil
}

func (f *fakeDocuments) Reject(_ context.Context, _, documentID, reason string) (*models.Document, error) {
	return &models.Document{ID: documentID, Status: models.DocumentRejected, RejectionReason: &reason}, nil
}

type fakeMetrics struct{}

func (fakeMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
}

func (fakeMetrics) Snapshot() models.SystemMetrics { return models.SystemMetrics{} }

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type fakeGallery struct {
	mu         sync.Mutex
	locale     models.Locale
	filter     models.GalleryFilter
	lastCreate models.GalleryItemRequest
	lastPatch  models.GalleryItemPatch
	deleteFile bool
	uploaded   []byte
	mediaPath  string
	err        error
}

func (f *fakeGallery) ListPublic(_ context.Context, locale models.Locale) ([]models.PublicGalleryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locale = locale
	return []models.PublicGalleryItem{{ID: "g1", Kind: models.GalleryPhoto, URL: "/api/v1/gallery/g1/media"}}, f.err
}

func (f *fakeGallery) List(_ context.Context, filter models.GalleryFilter) ([]models.GalleryItem, error) {
	f.filter = filter
	return []models.GalleryItem{}, f.err
}

func (f *fakeGallery) Upload(_ context.Context, _ string, upload service.GalleryUpload) (*models.GalleryUploadResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(upload.Content)
	if err != nil {
		return nil, err
	}
	f.uploaded = raw
	return &models.GalleryUploadResult{Key: "gallery/x/" + upload.FileName, ContentType: "image/png", SizeBytes: int64(len(raw))}, nil
}

func (f *fakeGallery) Create(_ context.Context, _ string, req models.GalleryItemRequest) (*models.GalleryItem, error) {
	f.lastCreate = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.GalleryItem{ID: "g1", Kind: req.Kind, StorageKey: req.StorageKey}, nil
}

func (f *fakeGallery) Update(_ context.Context, _, id string, patch models.GalleryItemPatch) (*models.GalleryItem, error) {
	f.lastPatch = patch
	if f.err != nil {
		return nil, f.err
	}
	return &models.GalleryItem{ID: id, Kind: models.GalleryPhoto}, nil
}

func (f *fakeGallery) Delete(_ context.Context, _, _ string, deleteFile bool) error {
	f.deleteFile = deleteFile
	return f.err
}

func (f *fakeGallery) OpenMedia(_ context.Context, id string) (*models.GalleryItem, *os.File, error) {
	if f.mediaPath == "" || id != "g1" {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "gallery item not found")
	}
	file, err := os.Open(f.mediaPath)
	if err != nil {
		return nil, nil, err
	}
	contentType := "image/png"
	return &models.GalleryItem{ID: id, Kind: models.GalleryPhoto, ContentType: &contentType, Published: true}, file, nil
}

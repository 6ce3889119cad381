package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/pkg/config"
)

var routerTokens = staticTokens{
	"student": {UserID: "u1", Role: models.RoleStudent},
	"admin":   {UserID: "a1", Role: models.RoleAdmin},
}

type routerFixture struct {
	router  *gin.Engine
	audit   *recordingAudit
	docs    *fakeDocuments
	inbox   *fakeInbox
	gallery *fakeGallery
}

func newRouterFixture(t *testing.T, env string, ready error) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cat := testCatalog(t)

	path := filepath.Join(t.TempDir(), "passport.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o600))
	docs := &fakeDocuments{path: path, doc: &models.Document{ID: "d1", Name: "passport.pdf", MimeType: "application/pdf", SizeBytes: 13}}
	inbox := &fakeInbox{items: []models.InboxItem{{ID: "app-1", AdminStatus: models.AdminStatusNew}}}
	audit := &recordingAudit{}
	media := filepath.Join(t.TempDir(), "class.png")
	require.NoError(t, os.WriteFile(media, []byte("\x89PNG\r\n\x1a\n"), 0o600))
	gallery := &fakeGallery{mediaPath: media}

	router := NewRouter(RouterDeps{
		Config: &config.Config{Env: env, APIPrefix: "/api/v1"},
		Tokens: routerTokens,
		Audit:  audit,
	}, Handlers{
		Auth:        NewAuthHandler(&fakeAuth{me: &models.UserInfo{ID: "u1"}}),
		Course:      NewCourseHandler(cat, fakeCapacity{}),
		Cart:        NewCartHandler(&fakeCart{}),
		Application: NewApplicationHandler(fakeApplications{}),
		Inbox:       NewInboxHandler(inbox),
		Portal:      NewPortalHandler(&fakePortal{pdf: []byte("%PDF")}, fakeStudentRecords{}, cat),
		Document:    NewDocumentHandler(docs),
		Student:     NewStudentHandler(fakeStudentRecords{}),
		Gallery:     NewGalleryHandler(gallery, cat),
		Metrics:     NewMetricsHandler(fakeMetrics{}, map[string]Pinger{"postgres": fakePinger{err: ready}}),
	})
	return &routerFixture{router: router, audit: audit, docs: docs, inbox: inbox, gallery: gallery}
}

func (f *routerFixture) do(method, path, token string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRouterAuthGates(t *testing.T) {
	f := newRouterFixture(t, config.EnvDevelopment, nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/courses", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/cart", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/auth/me", "bogus").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/auth/me", "student").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/api/v1/admin/applications", "student").Code)

	rec := f.do(http.MethodPost, "/api/v1/admin/applications/app-1/approve", "admin")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a1", f.inbox.lastActor)
}

func TestRouterPortalIsOptionallyAuthenticated(t *testing.T) {
	f := newRouterFixture(t, config.EnvDevelopment, nil)

	rec := f.do(http.MethodGet, "/api/v1/me/portal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(models.PortalSignIn))

	rec = f.do(http.MethodGet, "/api/v1/me/portal", "student")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(models.PortalApplicationForm))
}

func TestRouterAuditsDownloads(t *testing.T) {
	f := newRouterFixture(t, config.EnvDevelopment, nil)

	rec := f.do(http.MethodGet, "/api/v1/documents/d1/download?token=forged", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.audit.actions())

	rec = f.do(http.MethodGet, "/api/v1/documents/d1/download?token=valid", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 test", rec.Body.String())

	rec = f.do(http.MethodGet, "/api/v1/me/visa-letter", "student")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{models.AuditActionDocumentDownload, models.AuditActionVisaLetterDownload}, f.audit.actions())
}

func TestRouterOperationalEndpoints(t *testing.T) {
	f := newRouterFixture(t, config.EnvProduction, errors.New("connection refused"))

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/docs/index.html", "").Code)

	rec := f.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/admin/metrics", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/admin/metrics", "admin").Code)
}

func TestRouterGalleryIsPublicButManagedByAdmins(t *testing.T) {
	f := newRouterFixture(t, config.EnvDevelopment, nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/gallery", "").Code)

	rec := f.do(http.MethodGet, "/api/v1/gallery/g1/media", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/gallery/g2/media", "").Code)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/admin/gallery", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodDelete, "/api/v1/admin/gallery/g1", "student").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/admin/gallery?published=true", "admin").Code)
	require.NotNil(t, f.gallery.filter.Published)
	assert.True(t, *f.gallery.filter.Published)
}

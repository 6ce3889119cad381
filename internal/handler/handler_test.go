package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fos7a/institute-api/internal/models"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
)

func TestCartHandlerAddWhileOccupied(t *testing.T) {
	gin.SetMode(gin.TestMode)
	held := "business"
	svc := &fakeCart{cart: models.Cart{UserID: "u1", CourseID: &held}, err: appErrors.Clone(appErrors.ErrCartOccupied, "")}
	handler := NewCartHandler(svc)

	rec := httptest.NewRecorder()
	c := withUser(rec, http.MethodPost, "/cart", jsonBody(t, map[string]string{"courseId": "private"}), "u1", models.RoleStudent)
	handler.Add(c)

	require.Equal(t, http.StatusConflict, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrCartOccupied.Code, env.Error.Code)
	cart, ok := env.Meta["cart"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "business", cart["courseId"])
}

func TestCartHandlerRequiresCourseAndSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCartHandler(&fakeCart{})

	rec := httptest.NewRecorder()
	handler.Add(withUser(rec, http.MethodPost, "/cart", jsonBody(t, map[string]string{}), "u1", models.RoleStudent))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.Get(withUser(rec, http.MethodGet, "/cart", nil, "", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	c := withUser(rec, http.MethodDelete, "/cart", nil, "u1", models.RoleStudent)
	handler.Remove(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInboxHandlerRejectFiltersRefetchedList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeInbox{items: []models.InboxItem{
		{ID: "a", AdminStatus: models.AdminStatusRejected},
		{ID: "b", AdminStatus: models.AdminStatusNew},
	}}
	handler := NewInboxHandler(svc)

	rec := httptest.NewRecorder()
	body := jsonBody(t, models.RejectApplicationRequest{Reason: models.RejectMissingInfo, Details: "passport scan"})
	c := withUser(rec, http.MethodPost, "/admin/applications/a/reject?status=rejected", body, "admin", models.RoleAdmin)
	c.Params = gin.Params{{Key: "id", Value: "a"}}
	handler.Reject(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RejectMissingInfo, svc.lastReject.Reason)
	assert.Equal(t, "passport scan", svc.lastReject.Details)

	env := decode(t, rec)
	var items []models.InboxItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
	assert.EqualValues(t, 1, env.Meta["total"])
}

func TestInboxHandlerSurfacesServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewInboxHandler(&fakeInbox{err: appErrors.Clone(appErrors.ErrCourseFull, "")})

	rec := httptest.NewRecorder()
	c := withUser(rec, http.MethodPost, "/admin/applications/a/approve", nil, "admin", models.RoleAdmin)
	handler.Approve(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, appErrors.ErrCourseFull.Code, decode(t, rec).Error.Code)
}

func TestPortalHandlerVisaLetterLocked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	portal := &fakePortal{
		reqs: models.VisaRequirements{EnrollmentConfirmed: true},
		err:  appErrors.Clone(appErrors.ErrPreconditionFailed, "visa letter is locked: payment"),
	}
	handler := NewPortalHandler(portal, fakeStudentRecords{}, testCatalog(t))

	rec := httptest.NewRecorder()
	handler.VisaLetter(withUser(rec, http.MethodGet, "/me/visa-letter", nil, "u1", models.RoleStudent))

	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
	reqs, ok := decode(t, rec).Meta["requirements"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, reqs["enrollmentConfirmed"])
	assert.Equal(t, false, reqs["paid"])
}

func TestPortalHandlerVisaLetterPDF(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPortalHandler(&fakePortal{pdf: []byte("%PDF-1.3")}, fakeStudentRecords{}, testCatalog(t))

	rec := httptest.NewRecorder()
	handler.VisaLetter(withUser(rec, http.MethodGet, "/me/visa-letter", nil, "u1", models.RoleStudent))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "visa-letter-u1.pdf")
}

func TestAuthHandlerForgotPasswordIsAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeAuth{}
	handler := NewAuthHandler(svc)

	rec := httptest.NewRecorder()
	handler.ForgotPassword(withUser(rec, http.MethodPost, "/auth/forgot-password", jsonBody(t, models.ForgotPasswordRequest{Email: "nobody@example.com"}), "", ""))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, svc.forgotCalls)
}

func TestAuthHandlerRejectsMalformedLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuth{})

	rec := httptest.NewRecorder()
	handler.Login(withUser(rec, http.MethodPost, "/auth/login", strings.NewReader("{"), "", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decode(t, rec).Error.Code)
}

func TestAuthHandlerLoginPassesInvalidCredentialsThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuth{loginErr: appErrors.ErrInvalidCredentials})

	rec := httptest.NewRecorder()
	handler.Login(withUser(rec, http.MethodPost, "/auth/login", jsonBody(t, models.LoginRequest{Email: "a@b.co", Password: "x"}), "", ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDocumentHandlerUploadReadsMultipart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeDocuments{}
	handler := NewDocumentHandler(svc)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("type", string(models.DocumentPassport)))
	part, err := form.CreateFormFile("file", "passport.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 scan"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	rec := httptest.NewRecorder()
	c := withUser(rec, http.MethodPost, "/me/documents", nil, "u1", models.RoleStudent)
	c.Request = httptest.NewRequest(http.MethodPost, "/me/documents", &buf)
	c.Request.Header.Set("Content-Type", form.FormDataContentType())
	handler.Upload(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.DocumentPassport, svc.lastUpload.Type)
	assert.Equal(t, "passport.pdf", svc.lastUpload.FileName)
	assert.EqualValues(t, len("%PDF-1.4 scan"), svc.lastUpload.Size)
}

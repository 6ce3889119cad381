package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/fos7a/institute-api/internal/middleware"
	"github.com/fos7a/institute-api/internal/models"
	appErrors "github.com/fos7a/institute-api/pkg/errors"
	"github.com/fos7a/institute-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// currentUserID writes a 401 and returns false for anonymous requests.
func currentUserID(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.UserID, true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

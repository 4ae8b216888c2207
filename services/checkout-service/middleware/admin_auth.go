package middleware

import (
	"errors"
	"net/http"

	"github.com/ahambrahmasmi/storefront/services/common/auth"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/ahambrahmasmi/storefront/services/common/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	RoleAdmin = "admin"
	UserKey   = "userID"
)

// RequireAdmin accepts only access tokens whose role claim is admin.
func RequireAdmin(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abort(c, apperrors.ErrUnauthorized)
			return
		}

		claims, err := verifier.RequireRole(token, RoleAdmin)
		switch {
		case errors.Is(err, auth.ErrSecretNotConfigured):
			abort(c, apperrors.Configuration("admin authentication"))
			return
		case errors.Is(err, auth.ErrForbiddenRole):
			logger.Warn(c, "Non-admin token on admin route")
			abort(c, apperrors.New(http.StatusForbidden, apperrors.KindUnauthorized, "Forbidden", err))
			return
		case err != nil:
			abort(c, apperrors.ErrUnauthorized)
			return
		}

		if sub, ok := claims["sub"].(string); ok {
			c.Set(UserKey, sub)
			logger.Info(c, "Admin request", zap.String("user_id", sub), zap.String("path", c.FullPath()))
		}
		c.Next()
	}
}

// GetUserID returns the authenticated subject, if any.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserKey)
}

func abort(c *gin.Context, err error) {
	status, body := apperrors.Response(err)
	c.AbortWithStatusJSON(status, body)
}

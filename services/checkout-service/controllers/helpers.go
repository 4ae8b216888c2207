package controllers

import (
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/ahambrahmasmi/storefront/services/common/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError renders err once and records it for the access log.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := apperrors.Response(err)
	c.AbortWithStatusJSON(status, body)
}

// logFailure logs 5xx-class failures with the request id.
func logFailure(c *gin.Context, msg string, err error, fields ...zap.Field) {
	status, _ := apperrors.Response(err)
	if status >= 500 {
		logger.Error(c, msg, err, fields...)
		return
	}
	logger.Warn(c, msg, append(fields, zap.Error(err))...)
}

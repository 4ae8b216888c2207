package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	awspkg "github.com/ahambrahmasmi/storefront/pkg/aws"
	"github.com/ahambrahmasmi/storefront/services/checkout-service/ratelimit"
	apperrors "github.com/ahambrahmasmi/storefront/services/common/errors"
	"github.com/ahambrahmasmi/storefront/services/common/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit allows limiter.Max() requests per window per client IP. The
// bucket is named so checkout and design requests are counted separately.
func RateLimit(limiter *ratelimit.Limiter, bucket string, metrics *awspkg.MetricsClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := bucket + ":" + c.ClientIP()
		d, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn(c, "Rate limit store unavailable, allowing request", zap.String("bucket", bucket), zap.Error(err))
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limiter.Max(), 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))

		if !d.Allowed {
			retry := d.RetryAfter(time.Now())
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			logger.Warn(c, "Rate limit exceeded", zap.String("bucket", bucket), zap.String("client_ip", c.ClientIP()))
			if metrics.IsEnabled() {
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = metrics.RecordCount(ctx, awspkg.MetricRateLimited, map[string]string{"Bucket": bucket})
				}()
			}
			status, body := apperrors.Response(apperrors.ErrRateLimitExceeded)
			c.AbortWithStatusJSON(status, body)
			return
		}
		c.Next()
	}
}

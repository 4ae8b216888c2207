package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SecurityHeaders adds security-related headers to all responses
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		// Payment responses must never be cached by intermediaries.
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// ParseOrigins splits a comma separated ALLOWED_ORIGINS value.
func ParseOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(o), "/"))
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// TrustProxies limits which peers may set X-Forwarded-For. An empty list
// trusts none, so ClientIP is always the socket address.
func TrustProxies(r *gin.Engine, raw string) error {
	proxies := ParseOrigins(raw)
	if len(proxies) == 0 {
		return r.SetTrustedProxies(nil)
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		_ = r.SetTrustedProxies(nil)
		return err
	}
	return nil
}

// CORSMiddleware allows browser calls from the allowlist only. A single "*"
// entry allows every origin; an empty list allows none.
func CORSMiddleware(allowed []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	switch {
	case len(allowed) == 1 && allowed[0] == "*":
		cfg.AllowAllOrigins = true
	case len(allowed) == 0:
		cfg.AllowOriginFunc = func(string) bool { return false }
	default:
		cfg.AllowOrigins = allowed
	}
	return cors.New(cfg)
}

// Timeout bounds the request context for downstream calls.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

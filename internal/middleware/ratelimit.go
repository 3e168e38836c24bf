package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoPolymarket/hypergate/internal/service"
)

// RateLimitMiddleware applies the per-account token bucket. Must run after AuthMiddleware.
func RateLimitMiddleware(am *service.AccountManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		acct, ok := AccountFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		limiter := am.Limiter(acct.ID)
		if limiter == nil {
			c.Next()
			return
		}

		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

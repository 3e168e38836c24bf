package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
)

// ReadOnlyMiddleware blocks mutating requests when the server runs read-only
// or the calling account is read-only. Cancels stay allowed so open orders
// can always be pulled.
func ReadOnlyMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if c.Request.Method == http.MethodDelete && c.FullPath() == "/v1/orders" {
			c.Next()
			return
		}

		acctReadOnly := false
		if acct, ok := AccountFrom(c); ok {
			acctReadOnly = acct.ReadOnly
		}
		if enabled || acctReadOnly {
			c.Error(apperrors.New(apperrors.ErrReadOnly, "read-only mode enabled", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

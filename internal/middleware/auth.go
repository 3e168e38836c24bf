package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/GoPolymarket/hypergate/internal/model"
	"github.com/GoPolymarket/hypergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hypergate/internal/service"
)

const (
	HeaderGatewayKey  = "X-Gateway-Key"
	ContextAccountKey = "account"
)

// AuthMiddleware resolves X-Gateway-Key to an account. Without a key the
// default operator is used unless requireKey is set.
func AuthMiddleware(requireKey bool, am *service.AccountManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderGatewayKey)
		if apiKey == "" {
			if !requireKey {
				if acct := am.Default(); acct != nil {
					c.Set(ContextAccountKey, acct)
					c.Next()
					return
				}
			}
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "missing API key", nil))
			c.Abort()
			return
		}

		acct, ok := am.ByAPIKey(apiKey)
		if !ok || subtle.ConstantTimeCompare([]byte(acct.APIKey), []byte(apiKey)) != 1 {
			c.Error(apperrors.New(apperrors.ErrAuthFailed, "invalid API key", nil))
			c.Abort()
			return
		}

		c.Set(ContextAccountKey, acct)
		c.Next()
	}
}

// AccountFrom returns the account AuthMiddleware stored on the context.
func AccountFrom(c *gin.Context) (*model.Account, bool) {
	val, ok := c.Get(ContextAccountKey)
	if !ok {
		return nil, false
	}
	acct, ok := val.(*model.Account)
	return acct, ok && acct != nil
}

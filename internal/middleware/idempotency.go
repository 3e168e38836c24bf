package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GoPolymarket/hypergate/internal/manager"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

// IdempotencyMiddleware replays the stored response for a repeated
// X-Idempotency-Key and rejects concurrent duplicates. Keys are scoped per account.
func IdempotencyMiddleware(store manager.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		idemKey := c.GetHeader(HeaderIdempotencyKey)
		if idemKey == "" {
			c.Next()
			return
		}

		acct, ok := AccountFrom(c)
		if !ok {
			c.Next()
			return
		}
		fullKey := "http:" + acct.ID + ":" + idemKey
		ctx := c.Request.Context()

		record, hit := store.GetOrLock(ctx, fullKey)
		if hit {
			if record.Processing {
				c.JSON(http.StatusConflict, gin.H{"error": "request in progress"})
				c.Abort()
				return
			}
			c.Header("X-Idempotent-Replay", "true")
			c.Data(record.Status, "application/json; charset=utf-8", record.Body)
			c.Abort()
			return
		}

		w := &responseBodyWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// Errors are rendered later by ErrorHandler, and 5xx leaves the
		// outcome unknown, so neither is replayed.
		if len(c.Errors) > 0 || c.Writer.Status() >= 500 {
			store.Unlock(ctx, fullKey)
			return
		}
		store.Save(ctx, fullKey, c.Writer.Status(), w.body)
	}
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body []byte
}

func (w *responseBodyWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GoPolymarket/hypergate/internal/pkg/metrics"
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Route template, so /v1/assets/:coin stays one series.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.LatencyBucket.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}

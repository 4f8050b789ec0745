package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/signalsfoundry/rocketflight/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger ensures a request_id is present on the request context,
// sourcing it from the X-Request-ID header if provided, and attaches a
// per-request logger annotated with request_id, method and route. The id is
// echoed back on the response.
func RequestLogger(base logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, reqLog := logging.RequestScope(c.Request.Context(), base, c.GetHeader(requestIDHeader),
			logging.String("method", c.Request.Method),
			logging.String("route", c.FullPath()),
		)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, logging.RequestID(ctx))

		start := time.Now()
		c.Next()

		reqLog.Debug(ctx, "request handled",
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}

// Recovery turns handler panics into a 500 with the usual error body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		ctx := c.Request.Context()
		logging.FromContext(ctx).Error(ctx, "handler panicked", logging.Any("panic", recovered))
		c.AbortWithStatusJSON(500, gin.H{"detail": "Internal server error"})
	})
}

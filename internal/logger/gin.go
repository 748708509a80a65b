package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id in and out of the gateway
const RequestIDHeader = "X-Request-ID"

// GinLogMiddleware logs one line per request and turns panics into 500s.
// Bodies are not logged since they may carry API tokens.
func GinLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		defer func() {
			if r := recover(); r != nil {
				GetLogger().Error("panic while handling request",
					zap.String("request_id", requestID),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}

			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("query", c.Request.URL.RawQuery),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("duration", time.Since(start)),
			}
			if len(c.Errors) > 0 {
				fields = append(fields, zap.String("errors", c.Errors.String()))
			}

			switch status := c.Writer.Status(); {
			case status >= http.StatusInternalServerError:
				GetLogger().Error("request", fields...)
			case status >= http.StatusBadRequest:
				GetLogger().Warn("request", fields...)
			default:
				GetLogger().Info("request", fields...)
			}
		}()

		c.Next()
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

// RequestID attaches a correlation identifier to every request. An
// incoming X-Request-Id is honoured so callers can trace retries;
// otherwise one is minted.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set("X-Request-Id", requestID)
		c.Next()
	}
}

// GetRequestID returns the correlation identifier for the request
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

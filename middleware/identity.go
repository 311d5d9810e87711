package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ticketdrop/backend/internal/message"
)

const userIDKey = "user_id"

// Identity extracts the caller's opaque identity from the X-User-Id
// header. Authentication itself lives with an external collaborator;
// this service only requires that an identity is present.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   message.KindValidationError,
				"message": "X-User-Id header is required",
			})
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the identity set by the Identity middleware
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

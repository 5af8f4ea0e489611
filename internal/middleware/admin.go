package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminKey guards management endpoints with a static X-API-Key header.
func AdminKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "admin API key is not configured",
			})
			c.Abort()
			return
		}
		provided := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

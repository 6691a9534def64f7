package middleware

import (
	"net/http"

	"main/utils"

	"github.com/gin-gonic/gin"
)

// RequestSizeLimiter caps request bodies. Auth payloads are tiny, so anything
// oversized is noise or abuse.
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		var w http.ResponseWriter = c.Writer
		c.Request.Body = http.MaxBytesReader(w, c.Request.Body, maxSize)

		if c.Request.ContentLength > maxSize {
			utils.TrackError("http", "request_too_large")
			c.AbortWithStatus(http.StatusRequestEntityTooLarge)
			return
		}

		c.Next()
	}
}

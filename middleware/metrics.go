package middleware

import (
	"time"

	"main/utils"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware handles basic HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		utils.ActiveRequests.Inc()
		defer utils.ActiveRequests.Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		responseSize := float64(c.Writer.Size())

		utils.HTTPRequestsTotal.WithLabelValues(
			method,
			path,
			utils.StatusLabel(c.Writer.Status()),
		).Inc()

		utils.HTTPRequestDuration.WithLabelValues(
			method,
			path,
		).Observe(duration)

		utils.HTTPResponseSize.WithLabelValues(
			method,
			path,
		).Observe(responseSize)
	}
}

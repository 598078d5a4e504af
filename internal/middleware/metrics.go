package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/formhub/formhub-api/internal/service"
)

// Metrics records duration and status per route. Labels use the route
// template, never the raw URL, so share tokens and probe paths cannot
// explode label cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

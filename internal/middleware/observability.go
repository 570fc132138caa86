package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/credilinq/sme-healthcheck/pkg/logger"
	"github.com/credilinq/sme-healthcheck/pkg/metrics"
)

// personalQueryParams hold applicant details and are dropped from request logs
var personalQueryParams = map[string]bool{
	"companyuen": true, "fullname": true, "email": true,
	"reemail": true, "phonenumber": true,
}

// ObservabilityMiddleware records request metrics by route template and logs
// every request. Form bodies are never logged.
func ObservabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		metrics.ActiveRequests.WithLabelValues(method).Inc()
		defer metrics.ActiveRequests.WithLabelValues(method).Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		duration := metrics.MeasureDuration(start)
		status := c.Writer.Status()
		statusStr := strconv.Itoa(status)

		metrics.HTTPRequestDuration.WithLabelValues(method, route, statusStr).Observe(duration)
		metrics.HTTPRequestTotal.WithLabelValues(method, route, statusStr).Inc()

		fields := []zap.Field{
			zap.String("route", route),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("response_size", c.Writer.Size()),
		}
		if status >= 400 {
			if query := safeQuery(c); len(query) > 0 {
				fields = append(fields, zap.Any("query_params", query))
			}
			if len(c.Errors) > 0 {
				fields = append(fields, zap.String("error", c.Errors.String()))
			}
		}

		logger.LogHTTPRequest(method, c.Request.URL.Path, status, duration, fields...)
	}
}

func safeQuery(c *gin.Context) map[string]string {
	query := c.Request.URL.Query()
	out := make(map[string]string, len(query))
	for k, v := range query {
		if !personalQueryParams[strings.ToLower(k)] && len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clinic-chat-go/pkg/log"
	"clinic-chat-go/pkg/metrics"
)

// RequestLogger 记录每个请求的状态码、耗时与来源。
// 请求体与响应体包含病历和密码，不写入日志。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(statusCode)).Inc()

		log.Infow("HTTP Request Log",
			"statusCode", statusCode,
			"latency", latency.String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"errors", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

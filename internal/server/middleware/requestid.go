package middleware

import (
	"github.com/gin-gonic/gin"

	"fable/internal/pkg/id"
)

// RequestID 请求ID中间件
// 透传上游的 X-Request-ID，缺失时生成；写入 gin context 供日志中间件读取，
// 并回写响应头方便排查。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = id.New()
		}

		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()
	}
}

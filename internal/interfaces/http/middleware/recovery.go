package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"finsaathi-ai-api/internal/interfaces/http/dto"
	apperrors "finsaathi-ai-api/pkg/errors"
	"finsaathi-ai-api/pkg/logger"
	"finsaathi-ai-api/pkg/metrics"
)

// Recovery 捕获 handler panic，按统一错误结构返回 500，响应中不带 panic 内容
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			route := routeLabel(c)
			metrics.HTTPPanicsTotal.WithLabelValues(route).Inc()
			logger.Error(c.Request.Context(), "handler panic recovered",
				fmt.Errorf("panic: %v", rec),
				"route", route,
				"method", c.Request.Method,
				"owner_role", c.GetString(ownerRoleKey),
				"stack", string(debug.Stack()),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			dto.AppError(c, apperrors.ErrInternalError)
		}()

		c.Next()
	}
}

// routeLabel 使用路由模板而非原始路径，避免把线程 ID 写进日志与指标
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unknown"
}

// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"finsaathi-ai-api/internal/interfaces/http/dto"
	apperrors "finsaathi-ai-api/pkg/errors"
	"finsaathi-ai-api/pkg/logger"
)

// respondError AppError 按其状态码返回，其余一律 500
func respondError(c *gin.Context, err error, msg string) {
	ctx := c.Request.Context()
	if errors.Is(err, context.Canceled) {
		// 客户端已断开
		c.Abort()
		return
	}
	if apperrors.IsAppError(err) {
		appErr := apperrors.AsAppError(err)
		if appErr.HTTPStatus >= 500 {
			logger.Error(ctx, msg, err)
		}
		dto.AppError(c, appErr)
		return
	}
	logger.Error(ctx, msg, err)
	dto.InternalError(c, msg)
}

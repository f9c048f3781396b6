package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"finsaathi-ai-api/internal/interfaces/http/dto"
	"finsaathi-ai-api/pkg/logger"
)

// 调用方身份由上游网关完成认证后透传
const (
	OwnerIDHeader   = "X-Owner-ID"
	OwnerRoleHeader = "X-Owner-Role"
)

// Role 调用方角色
type Role string

const (
	RoleUser    Role = "user"
	RoleAdvisor Role = "advisor"
)

const (
	ownerIDKey   = "owner_id"
	ownerRoleKey = "owner_role"
	maxOwnerLen  = 64
)

// Owner 读取调用方身份，缺失时 401
func Owner() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := strings.TrimSpace(c.GetHeader(OwnerIDHeader))
		if ownerID == "" || len(ownerID) > maxOwnerLen {
			dto.Unauthorized(c, "missing caller identity")
			return
		}

		role := Role(strings.ToLower(strings.TrimSpace(c.GetHeader(OwnerRoleHeader))))
		switch role {
		case "":
			role = RoleUser
		case RoleUser, RoleAdvisor:
		default:
			dto.Forbidden(c, "unknown caller role")
			return
		}

		c.Set(ownerIDKey, ownerID)
		c.Set(ownerRoleKey, string(role))
		ctx := logger.WithContext(c.Request.Context(), logger.OwnerIDKey, ownerID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireRole 限定角色
func RequireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != role {
			dto.Forbidden(c, "insufficient role")
			return
		}
		c.Next()
	}
}

// GetOwnerID 调用方 ID
func GetOwnerID(c *gin.Context) string {
	return c.GetString(ownerIDKey)
}

// GetRole 调用方角色
func GetRole(c *gin.Context) Role {
	return Role(c.GetString(ownerRoleKey))
}

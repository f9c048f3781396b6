package router

import (
	"finsaathi-ai-api/internal/interfaces/http/handler"
	"finsaathi-ai-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由；对话入口按调用方限流
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	limit gin.HandlerFunc,
	chatHandler *handler.ChatHandler,
	knowledgeHandler *handler.KnowledgeHandler,
) {
	if chatHandler != nil {
		v1.POST("/threads", chatHandler.CreateThread)

		// 终端用户助手
		v1.POST("/assistant/threads/:tid/turns", limit, chatHandler.AssistantTurn)

		// 顾问 co-pilot
		copilot := v1.Group("/copilot", middleware.RequireRole(middleware.RoleAdvisor))
		{
			copilot.POST("/threads/:tid/turns", limit, chatHandler.CopilotTurn)
		}

		// 人格克隆，由客户发起
		v1.POST("/clone/threads/:tid/turns", limit, chatHandler.CloneTurn)
	}

	if knowledgeHandler != nil {
		knowledge := v1.Group("/knowledge")
		{
			knowledge.POST("/index", knowledgeHandler.Index)
			knowledge.DELETE("/:space/sources/:sid", knowledgeHandler.Delete)
		}
	}
}

package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"finsaathi-ai-api/internal/application/chat"
	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/internal/interfaces/http/dto"
	"finsaathi-ai-api/internal/interfaces/http/middleware"
	"finsaathi-ai-api/pkg/logger"
)

// TurnHandler 对话编排入口
type TurnHandler interface {
	HandleTurn(ctx context.Context, in chat.TurnInput) (*chat.TurnOutput, error)
}

// ThreadCreator 线程创建
type ThreadCreator interface {
	CreateThread(ctx context.Context, thread *entity.ChatThread) error
}

// ChatHandler 三个对话入口
type ChatHandler struct {
	turns   TurnHandler
	threads ThreadCreator
}

// NewChatHandler 创建对话处理器
func NewChatHandler(turns TurnHandler, threads ThreadCreator) *ChatHandler {
	return &ChatHandler{turns: turns, threads: threads}
}

// CreateThread 创建对话线程
// @Summary 创建对话线程
// @Tags Chat
// @Accept json
// @Produce json
// @Param body body dto.CreateThreadRequest true "线程入口"
// @Success 201 {object} dto.Response[dto.ThreadResponse]
// @Router /v1/threads [post]
func (h *ChatHandler) CreateThread(c *gin.Context) {
	var req dto.CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}

	surface := entity.Surface(req.Surface)
	if surface == entity.SurfaceCopilot && middleware.GetRole(c) != middleware.RoleAdvisor {
		dto.Forbidden(c, "co-pilot threads belong to advisors")
		return
	}

	thread := &entity.ChatThread{
		OwnerID: middleware.GetOwnerID(c),
		Surface: surface,
	}
	if err := h.threads.CreateThread(c.Request.Context(), thread); err != nil {
		respondError(c, err, "failed to create thread")
		return
	}
	dto.Created(c, dto.ToThreadResponse(thread))
}

// AssistantTurn 终端用户助手
// @Summary 助手对话
// @Tags Chat
// @Accept json
// @Produce json
// @Param tid path string true "线程 ID"
// @Param body body dto.TurnRequest true "消息"
// @Success 200 {object} dto.Response[dto.TurnResponse]
// @Router /v1/assistant/threads/{tid}/turns [post]
func (h *ChatHandler) AssistantTurn(c *gin.Context) {
	h.turn(c, entity.SurfaceAssistant)
}

// CopilotTurn 顾问 co-pilot
// @Router /v1/copilot/threads/{tid}/turns [post]
func (h *ChatHandler) CopilotTurn(c *gin.Context) {
	h.turn(c, entity.SurfaceCopilot)
}

// CloneTurn 顾问人格克隆，advisor_id 必填
// @Router /v1/clone/threads/{tid}/turns [post]
func (h *ChatHandler) CloneTurn(c *gin.Context) {
	h.turn(c, entity.SurfaceClone)
}

func (h *ChatHandler) turn(c *gin.Context, surface entity.Surface) {
	var req dto.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}

	threadID := c.Param("tid")
	ctx := logger.WithContext(c.Request.Context(), logger.ThreadIDKey, threadID)
	ctx = logger.WithContext(ctx, logger.SurfaceKey, string(surface))

	in := chat.TurnInput{
		ThreadID:     threadID,
		OwnerID:      middleware.GetOwnerID(c),
		Message:      req.Message,
		LanguageHint: req.LanguageHint,
		Surface:      surface,
	}
	if surface == entity.SurfaceClone {
		in.AdvisorID = req.AdvisorID
	}

	out, err := h.turns.HandleTurn(ctx, in)
	if err != nil {
		respondError(c, err, "failed to handle chat turn")
		return
	}
	dto.Success(c, dto.ToTurnResponse(threadID, out))
}

package dto

import (
	"time"

	"finsaathi-ai-api/internal/application/chat"
	"finsaathi-ai-api/internal/domain/entity"
)

// CreateThreadRequest 创建对话线程
type CreateThreadRequest struct {
	Surface string `json:"surface" binding:"required,oneof=assistant copilot clone"`
}

// ThreadResponse 对话线程
type ThreadResponse struct {
	ID        string `json:"id"`
	Surface   string `json:"surface"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// ToThreadResponse 实体转响应
func ToThreadResponse(t *entity.ChatThread) *ThreadResponse {
	return &ThreadResponse{
		ID:        t.ID,
		Surface:   string(t.Surface),
		Title:     t.Title,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}

// TurnRequest 一轮对话
type TurnRequest struct {
	Message      string `json:"message" binding:"required,max=16000"`
	LanguageHint string `json:"language_hint,omitempty" binding:"omitempty,max=8"`
	// AdvisorID 仅 clone 入口使用
	AdvisorID string `json:"advisor_id,omitempty" binding:"omitempty,max=64"`
}

// TurnResponse 一轮对话结果
type TurnResponse struct {
	ThreadID         string   `json:"thread_id"`
	ReplyText        string   `json:"reply_text"`
	ToolsUsed        []string `json:"tools_used"`
	DetectedLanguage string   `json:"detected_language"`
}

// ToTurnResponse 转换编排输出
func ToTurnResponse(threadID string, out *chat.TurnOutput) *TurnResponse {
	toolsUsed := out.ToolsUsed
	if toolsUsed == nil {
		toolsUsed = []string{}
	}
	return &TurnResponse{
		ThreadID:         threadID,
		ReplyText:        out.ReplyText,
		ToolsUsed:        toolsUsed,
		DetectedLanguage: out.DetectedLanguage,
	}
}

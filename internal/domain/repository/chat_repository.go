package repository

import (
	"context"

	"finsaathi-ai-api/internal/domain/entity"
)

// ChatRepository 对话持久化接口
type ChatRepository interface {
	GetThread(ctx context.Context, threadID string) (*entity.ChatThread, error)
	// LastTurns 返回最近 n 轮，按时间正序
	LastTurns(ctx context.Context, threadID string, n int) ([]*entity.ChatTurn, error)
	// AppendPair 原子写入用户消息与助手回复
	AppendPair(ctx context.Context, threadID string, user, assistant *entity.ChatTurn) error
	// SetTitleIfEmpty 仅在标题为空时写入
	SetTitleIfEmpty(ctx context.Context, threadID, title string) error
}

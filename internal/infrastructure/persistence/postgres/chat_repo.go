package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/internal/domain/repository"
)

// ChatRepository 对话线程与轮次
type ChatRepository struct {
	client *Client
	tx     repository.Transactor
}

func NewChatRepository(client *Client, tx repository.Transactor) *ChatRepository {
	return &ChatRepository{client: client, tx: tx}
}

// CreateThread 创建空线程，ID 为空时生成
func (r *ChatRepository) CreateThread(ctx context.Context, thread *entity.ChatThread) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.CreateThread")
	defer span.End()

	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	if err := getDB(ctx, r.client.db).Create(thread).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat thread: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetThread(ctx context.Context, threadID string) (*entity.ChatThread, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.GetThread")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var thread entity.ChatThread
	if err := db.First(&thread, "id = ?", threadID).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chat thread: %w", err)
	}
	return &thread, nil
}

// LastTurns 取最近 n 条后按时间正序返回
func (r *ChatRepository) LastTurns(ctx context.Context, threadID string, n int) ([]*entity.ChatTurn, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.LastTurns")
	defer span.End()

	if n <= 0 {
		return []*entity.ChatTurn{}, nil
	}

	db := getDB(ctx, r.client.db)
	var turns []*entity.ChatTurn
	if err := db.Where("thread_id = ?", threadID).
		Order("created_at DESC").
		Limit(n).
		Find(&turns).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat turns: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// AppendPair 同一事务内写入问答两条记录并刷新线程更新时间
func (r *ChatRepository) AppendPair(ctx context.Context, threadID string, user, assistant *entity.ChatTurn) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.AppendPair")
	defer span.End()

	for _, t := range []*entity.ChatTurn{user, assistant} {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.ThreadID = threadID
	}

	err := r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		tx := getDB(txCtx, r.client.db)
		if err := tx.Create([]*entity.ChatTurn{user, assistant}).Error; err != nil {
			return err
		}
		return tx.Model(&entity.ChatThread{}).
			Where("id = ?", threadID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to append chat turns: %w", err)
	}
	return nil
}

func (r *ChatRepository) SetTitleIfEmpty(ctx context.Context, threadID, title string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.SetTitleIfEmpty")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.ChatThread{}).
		Where("id = ? AND (title IS NULL OR title = '')", threadID).
		Update("title", title).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set chat thread title: %w", err)
	}
	return nil
}

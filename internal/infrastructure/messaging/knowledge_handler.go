package messaging

import (
	"context"
	"fmt"

	"finsaathi-ai-api/internal/application/knowledge"
	"finsaathi-ai-api/pkg/logger"
)

// JobHandler 知识库任务执行端
type JobHandler interface {
	Handle(ctx context.Context, job *knowledge.Job) error
}

// RegisterKnowledgeHandlers 将索引/删除两类消息交给同一个执行端
func RegisterKnowledgeHandlers(c *Consumer, h JobHandler) {
	handle := func(ctx context.Context, msg *Message) error {
		var job knowledge.Job
		if err := msg.UnmarshalPayload(&job); err != nil {
			// 载荷损坏时重试没有意义
			logger.Error(ctx, "invalid knowledge job payload", err, "message_id", msg.ID)
			return nil
		}
		if job.ID == "" {
			job.ID = msg.ID
		}
		if err := h.Handle(ctx, &job); err != nil {
			return fmt.Errorf("knowledge job %s: %w", job.ID, err)
		}
		return nil
	}
	c.RegisterHandler(knowledge.OpIndex.MessageType(), handle)
	c.RegisterHandler(knowledge.OpDelete.MessageType(), handle)
}

// Package knowledge 管理知识库写入：同步删除、异步索引
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"finsaathi-ai-api/internal/application/retrieval"
	"finsaathi-ai-api/internal/domain/entity"
	apperrors "finsaathi-ai-api/pkg/errors"
	"finsaathi-ai-api/pkg/logger"
)

// Op 任务类型
type Op string

const (
	OpIndex  Op = "index"
	OpDelete Op = "delete"
)

// MessageType 队列中的消息类型
func (o Op) MessageType() string {
	return "knowledge_" + string(o)
}

// Job 知识库任务
type Job struct {
	ID         string                `json:"id"`
	Op         Op                    `json:"op"`
	Space      entity.KnowledgeSpace `json:"space"`
	OwnerID    string                `json:"owner_id"`
	SourceID   string                `json:"source_id"`
	Text       string                `json:"text,omitempty"`
	Class      entity.ContentClass   `json:"class,omitempty"`
	Category   string                `json:"category,omitempty"`
	SubjectRef string                `json:"subject_ref,omitempty"`
}

func (j *Job) indexRequest() retrieval.IndexRequest {
	return retrieval.IndexRequest{
		Space:      j.Space,
		OwnerID:    j.OwnerID,
		SourceID:   j.SourceID,
		Text:       j.Text,
		Class:      j.Class,
		Category:   j.Category,
		SubjectRef: j.SubjectRef,
	}
}

// JobQueue 异步任务队列
type JobQueue interface {
	Enqueue(ctx context.Context, job *Job) (string, error)
}

// Indexer 知识库写入端
type Indexer interface {
	Index(ctx context.Context, req retrieval.IndexRequest) int
	IndexStrict(ctx context.Context, req retrieval.IndexRequest) (int, error)
	DeleteBySource(ctx context.Context, space entity.KnowledgeSpace, ownerID, sourceID string) (int, error)
}

// Submission 提交结果；异步时 Chunks 为 0。
// 同步索引失败不算请求失败，Indexed 为 false
type Submission struct {
	JobID   string `json:"job_id"`
	Queued  bool   `json:"queued"`
	Chunks  int    `json:"chunks"`
	Indexed bool   `json:"indexed"`
}

// Service 知识库服务
type Service struct {
	indexer Indexer
	queue   JobQueue
}

// NewService queue 为 nil 时同步索引
func NewService(indexer Indexer, queue JobQueue) *Service {
	return &Service{indexer: indexer, queue: queue}
}

// SubmitIndex 校验后入队；无队列时在请求内索引，存储故障降级为 0 片段
func (s *Service) SubmitIndex(ctx context.Context, job Job) (*Submission, error) {
	job.Op = OpIndex
	if err := validate(&job); err != nil {
		return nil, err
	}
	if strings.TrimSpace(job.Text) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("text is required")
	}
	if job.Class == "" {
		job.Class = entity.ContentClassDocument
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	if s.queue != nil {
		if _, err := s.queue.Enqueue(ctx, &job); err != nil {
			logger.Error(ctx, "enqueue knowledge job failed", err, "job_id", job.ID, "source_id", job.SourceID)
			return nil, apperrors.Wrap(err, apperrors.CodeIndexFailed, "failed to queue indexing job")
		}
		return &Submission{JobID: job.ID, Queued: true}, nil
	}

	n := s.indexer.Index(ctx, job.indexRequest())
	return &Submission{JobID: job.ID, Chunks: n, Indexed: n > 0}, nil
}

// Delete 同步删除来源的全部片段，不存在时返回 0
func (s *Service) Delete(ctx context.Context, space entity.KnowledgeSpace, ownerID, sourceID string) (int, error) {
	job := Job{Op: OpDelete, Space: space, OwnerID: ownerID, SourceID: sourceID}
	if err := validate(&job); err != nil {
		return 0, err
	}
	n, err := s.indexer.DeleteBySource(ctx, job.Space, job.OwnerID, job.SourceID)
	if err != nil {
		return 0, mapIndexError(err)
	}
	return n, nil
}

// Handle 由队列消费者调用。返回错误表示可重试；参数错误只记录不重试
func (s *Service) Handle(ctx context.Context, job *Job) error {
	var err error
	switch job.Op {
	case OpIndex:
		var n int
		n, err = s.indexer.IndexStrict(ctx, job.indexRequest())
		if err == nil {
			logger.Info(ctx, "knowledge job done", "job_id", job.ID, "op", string(job.Op), "chunks", n)
		}
	case OpDelete:
		var n int
		n, err = s.indexer.DeleteBySource(ctx, job.Space, job.OwnerID, job.SourceID)
		if err == nil {
			logger.Info(ctx, "knowledge job done", "job_id", job.ID, "op", string(job.Op), "deleted", n)
		}
	default:
		logger.Warn(ctx, "unknown knowledge job op", "job_id", job.ID, "op", string(job.Op))
		return nil
	}

	if errors.Is(err, retrieval.ErrInvalidRequest) {
		logger.Warn(ctx, "knowledge job rejected", "job_id", job.ID, "error", err.Error())
		return nil
	}
	return err
}

func validate(job *Job) error {
	job.OwnerID = strings.TrimSpace(job.OwnerID)
	job.SourceID = strings.TrimSpace(job.SourceID)
	switch {
	case !job.Space.Valid():
		return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown space %q", job.Space))
	case job.OwnerID == "":
		return apperrors.ErrInvalidParam.WithDetail("owner_id is required")
	case job.SourceID == "":
		return apperrors.ErrInvalidParam.WithDetail("source_id is required")
	}
	return nil
}

func mapIndexError(err error) error {
	switch {
	case errors.Is(err, retrieval.ErrInvalidRequest):
		return apperrors.ErrInvalidParam.WithDetail(err.Error())
	case errors.Is(err, retrieval.ErrVectorDisabled):
		return apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "knowledge store is not configured")
	default:
		return apperrors.Wrap(err, apperrors.CodeIndexFailed, "knowledge operation failed")
	}
}

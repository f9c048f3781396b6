package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/pkg/logger"
	"finsaathi-ai-api/pkg/metrics"
)

const defaultIndexTimeout = 60 * time.Second

// IndexerConfig 索引器参数
type IndexerConfig struct {
	Windows       map[entity.ContentClass]Window
	MinChunkRunes int
	Timeout       time.Duration
	MaxOwnerRunes int
}

// Indexer 负责切分、写入与按来源删除
type Indexer struct {
	store   VectorStore
	chunker *Chunker

	timeout       time.Duration
	maxOwnerRunes int
}

func NewIndexer(store VectorStore, cfg IndexerConfig) *Indexer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultIndexTimeout
	}
	return &Indexer{
		store:         store,
		chunker:       NewChunker(cfg.Windows, cfg.MinChunkRunes),
		timeout:       timeout,
		maxOwnerRunes: cfg.MaxOwnerRunes,
	}
}

func (i *Indexer) Enabled() bool {
	return i != nil && i.store != nil
}

// Index 写入来源文本并返回写入的片段数。
// 存储不可用等失败只记录日志并返回 0，不影响调用方主流程。
func (i *Indexer) Index(ctx context.Context, req IndexRequest) int {
	n, err := i.index(ctx, req)
	if err != nil {
		logger.Error(ctx, "knowledge index failed", err,
			"space", string(req.Space),
			"owner_id", req.OwnerID,
			"source_id", req.SourceID,
			"text_runes", len([]rune(req.Text)),
		)
		return 0
	}
	return n
}

// IndexStrict 与 Index 相同，但返回错误，供异步任务决定是否重试。
func (i *Indexer) IndexStrict(ctx context.Context, req IndexRequest) (int, error) {
	return i.index(ctx, req)
}

func (i *Indexer) index(ctx context.Context, req IndexRequest) (int, error) {
	if err := validateOwner(req.Space, req.OwnerID); err != nil {
		return 0, err
	}
	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		return 0, fmt.Errorf("%w: source_id is required", ErrInvalidRequest)
	}
	if !i.Enabled() {
		return 0, ErrVectorDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	collection := CollectionName(req.Space, req.OwnerID, i.maxOwnerRunes)
	if err := i.store.GetOrCreateCollection(ctx, collection); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}

	// 先删旧片段，重复索引同一来源是幂等的
	if _, err := i.store.DeleteByFilter(ctx, collection, Filter{OwnerID: req.OwnerID, SourceID: sourceID}); err != nil {
		return 0, fmt.Errorf("delete previous chunks: %w", err)
	}

	texts := i.chunker.Split(req.Class, req.Text)
	if len(texts) == 0 {
		return 0, nil
	}

	chunks := make([]*entity.KnowledgeChunk, 0, len(texts))
	for idx, text := range texts {
		chunks = append(chunks, &entity.KnowledgeChunk{
			ID:          uuid.NewString(),
			OwnerID:     req.OwnerID,
			SourceID:    sourceID,
			Text:        text,
			ChunkIndex:  idx,
			TotalChunks: len(texts),
			Category:    strings.TrimSpace(req.Category),
			SubjectRef:  strings.TrimSpace(req.SubjectRef),
		})
	}

	if err := i.store.AddDocuments(ctx, collection, chunks); err != nil {
		return 0, fmt.Errorf("add documents: %w", err)
	}

	metrics.KnowledgeChunksIndexed.WithLabelValues(string(req.Space)).Add(float64(len(chunks)))
	logger.Info(ctx, "knowledge indexed",
		"space", string(req.Space),
		"owner_id", req.OwnerID,
		"source_id", sourceID,
		"chunks", len(chunks),
	)
	return len(chunks), nil
}

// DeleteBySource 删除来源的全部片段；不存在时为 no-op。
func (i *Indexer) DeleteBySource(ctx context.Context, space entity.KnowledgeSpace, ownerID, sourceID string) (int, error) {
	if err := validateOwner(space, ownerID); err != nil {
		return 0, err
	}
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return 0, fmt.Errorf("%w: source_id is required", ErrInvalidRequest)
	}
	if !i.Enabled() {
		return 0, ErrVectorDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	collection := CollectionName(space, ownerID, i.maxOwnerRunes)
	n, err := i.store.DeleteByFilter(ctx, collection, Filter{OwnerID: ownerID, SourceID: sourceID})
	if err != nil {
		return 0, fmt.Errorf("delete by source: %w", err)
	}
	return n, nil
}

func validateOwner(space entity.KnowledgeSpace, ownerID string) error {
	if !space.Valid() {
		return fmt.Errorf("%w: unknown space %q", ErrInvalidRequest, space)
	}
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner_id is required", ErrInvalidRequest)
	}
	return nil
}

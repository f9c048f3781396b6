package retrieval

import (
	"context"

	"finsaathi-ai-api/internal/domain/entity"
)

// VectorStore 定义应用层对“向量存储/检索”的最小依赖（port）。
// 向量化由实现方负责，应用层只传文本。
type VectorStore interface {
	// GetOrCreateCollection 幂等创建集合
	GetOrCreateCollection(ctx context.Context, collection string) error
	AddDocuments(ctx context.Context, collection string, chunks []*entity.KnowledgeChunk) error
	// Query 在集合内按过滤条件返回 topK 近邻，Distance 为余弦距离
	Query(ctx context.Context, collection string, filter Filter, text string, topK int) ([]VectorHit, error)
	// DeleteByFilter 集合不存在时返回 0
	DeleteByFilter(ctx context.Context, collection string, filter Filter) (int, error)
}

// Filter 等值过滤条件，空字段不参与过滤
type Filter struct {
	OwnerID  string
	SourceID string
}

// VectorHit 近邻结果
type VectorHit struct {
	Chunk    entity.KnowledgeChunk
	Distance float64
}

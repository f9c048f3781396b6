package retrieval

import "errors"

var (
	// ErrVectorDisabled 表示向量存储未配置（Milvus 或 Embedder 不可用）。
	ErrVectorDisabled = errors.New("vector retrieval is disabled")
	// ErrInvalidRequest 表示 owner/source/space 缺失或非法。
	ErrInvalidRequest = errors.New("invalid retrieval request")
)

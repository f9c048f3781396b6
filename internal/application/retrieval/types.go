package retrieval

import "finsaathi-ai-api/internal/domain/entity"

// IndexRequest 索引输入。
type IndexRequest struct {
	Space    entity.KnowledgeSpace
	OwnerID  string
	SourceID string
	Text     string

	// Class 决定切分窗口；为空按 document 处理。
	Class      entity.ContentClass
	Category   string
	SubjectRef string
}

// QueryRequest 检索输入。
type QueryRequest struct {
	Space   entity.KnowledgeSpace
	OwnerID string
	Text    string
	TopK    int
}

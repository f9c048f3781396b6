package entity

// KnowledgeSpace 知识空间，决定集合名前缀
type KnowledgeSpace string

const (
	// SpaceUserDocs 用户文档空间
	SpaceUserDocs KnowledgeSpace = "user_docs"
	// SpaceAdvisorPersona 顾问人格空间（笔记、历史回答）
	SpaceAdvisorPersona KnowledgeSpace = "advisor_persona"
)

// Valid 是否为已知空间
func (s KnowledgeSpace) Valid() bool {
	return s == SpaceUserDocs || s == SpaceAdvisorPersona
}

// ContentClass 内容类别，决定切分窗口
type ContentClass string

const (
	ContentClassDocument    ContentClass = "document"
	ContentClassAdvisorNote ContentClass = "advisor_note"
	ContentClassPastAnswer  ContentClass = "past_answer"
)

// KnowledgeChunk 知识片段，写入后不可变
type KnowledgeChunk struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	SourceID    string `json:"source_id"`
	Text        string `json:"text"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Category    string `json:"category,omitempty"`
	SubjectRef  string `json:"subject_ref,omitempty"`
}

// RetrievalResult 检索结果，score = 1 - 余弦距离
type RetrievalResult struct {
	Text      string  `json:"text"`
	SourceTag string  `json:"source_tag"`
	Score     float64 `json:"score"`
}

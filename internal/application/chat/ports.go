package chat

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"finsaathi-ai-api/internal/application/llmgateway"
	"finsaathi-ai-api/internal/application/retrieval"
	"finsaathi-ai-api/internal/application/tools"
	"finsaathi-ai-api/internal/domain/entity"
)

// Gateway 语言模型网关
type Gateway interface {
	CompleteChat(ctx context.Context, systemPrompt string, turns []*schema.Message) string
	CompleteWithTools(ctx context.Context, systemPrompt string, turns []*schema.Message, catalog []*schema.ToolInfo) llmgateway.Decision
	EnrichPrompt(systemPrompt string, results []tools.Result) string
	GenerateTitle(ctx context.Context, firstMessage string) string
}

// Translator 多语言管线
type Translator interface {
	WorkingLanguage() string
	DetectWithHint(text, hint string) string
	ToWorkingLanguage(ctx context.Context, text, srcLang string) string
	FromWorkingLanguage(ctx context.Context, text, tgtLang string) string
}

// ToolExecutor 工具批量执行
type ToolExecutor interface {
	ExecuteAll(ctx context.Context, calls []tools.Call, scope tools.Scope) []tools.Result
}

// ExampleSearcher 人格示例检索
type ExampleSearcher interface {
	Query(ctx context.Context, req retrieval.QueryRequest) []entity.RetrievalResult
}

// CohortSummarizer 客户群聚合
type CohortSummarizer interface {
	Summarize(ctx context.Context, advisorID string) (*entity.CohortSummary, error)
}

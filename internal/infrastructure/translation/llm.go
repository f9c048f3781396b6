package translation

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"finsaathi-ai-api/internal/application/prompt"
	"finsaathi-ai-api/internal/domain/service"
)

const opTranslate = "translate"

// ModelSource 获取 ChatModel
type ModelSource interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// LLMTranslator 用对话模型翻译，作为 HTTP 服务的备用
type LLMTranslator struct {
	models   ModelSource
	prompts  *prompt.Registry
	provider string
}

func NewLLMTranslator(models ModelSource, prompts *prompt.Registry, provider string) *LLMTranslator {
	if prompts == nil {
		prompts = prompt.Default()
	}
	return &LLMTranslator{models: models, prompts: prompts, provider: provider}
}

func (t *LLMTranslator) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	ctx, span := tracer.Start(ctx, "translation.llm.Translate")
	defer span.End()

	if t.models == nil {
		return "", fmt.Errorf("translation model is not configured")
	}
	m, err := t.models.Get(ctx, t.provider)
	if err != nil {
		return "", err
	}
	tpl, err := t.prompts.ChatTemplate(prompt.PromptTransV1)
	if err != nil {
		return "", err
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"source": src,
		"target": tgt,
		"text":   text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format translate prompt: %w", err)
	}

	ctx = service.WithLLMCall(ctx, opTranslate, t.provider)
	reply, err := m.Generate(ctx, msgs, model.WithTemperature(0))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("llm translate failed: %w", err)
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return "", fmt.Errorf("llm translate returned empty text")
	}
	return strings.TrimSpace(reply.Content), nil
}

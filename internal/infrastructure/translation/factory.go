package translation

import (
	"fmt"

	"finsaathi-ai-api/internal/application/multilingual"
	"finsaathi-ai-api/internal/application/prompt"
	"finsaathi-ai-api/internal/config"
)

// NewTranslator 按配置组装翻译提供方：
// http 主用且失败时回落到 LLM，llm 只用模型，noop 原样返回
func NewTranslator(cfg *config.TranslationConfig, models ModelSource, prompts *prompt.Registry, llmProvider string) (multilingual.Translator, error) {
	switch cfg.Provider {
	case "", "noop":
		return multilingual.NoopTranslator{}, nil
	case "http":
		var secondary multilingual.Translator
		if models != nil {
			secondary = NewLLMTranslator(models, prompts, llmProvider)
		}
		return multilingual.FallbackTranslator{
			Primary:   NewHTTPTranslator(cfg),
			Secondary: secondary,
		}, nil
	case "llm":
		return NewLLMTranslator(models, prompts, llmProvider), nil
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", cfg.Provider)
	}
}

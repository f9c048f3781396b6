package service

import (
	"context"
	"strings"
)

const unknownLabel = "unknown"

// llmCall 一次模型调用的指标标签，由发起方写入 ctx，eino 回调读取
type llmCall struct {
	operation string
	provider  string
}

type llmCallKey struct{}

// WithLLMCall 标记本次模型调用的用途（chat/tools/enrich/title/translate/health）与提供方
func WithLLMCall(ctx context.Context, operation, provider string) context.Context {
	return context.WithValue(ctx, llmCallKey{}, llmCall{
		operation: labelOrUnknown(operation),
		provider:  labelOrUnknown(provider),
	})
}

// LLMOperation 读取调用用途，未标记时为 unknown
func LLMOperation(ctx context.Context) string {
	return callFrom(ctx).operation
}

// LLMProvider 读取调用提供方，未标记时为 unknown
func LLMProvider(ctx context.Context) string {
	return callFrom(ctx).provider
}

func callFrom(ctx context.Context) llmCall {
	if ctx != nil {
		if c, ok := ctx.Value(llmCallKey{}).(llmCall); ok {
			return c
		}
	}
	return llmCall{operation: unknownLabel, provider: unknownLabel}
}

func labelOrUnknown(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return unknownLabel
}

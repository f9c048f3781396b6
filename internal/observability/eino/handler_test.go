package eino

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"finsaathi-ai-api/internal/domain/service"
	"finsaathi-ai-api/pkg/metrics"
)

func TestChatModelHandler_RecordsSuccess(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithLLMCall(context.Background(), "chat", "test-provider")

	before := testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("chat", "test-provider", "m-1", "success"))
	tokensBefore := testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("chat", "test-provider", "m-1", "prompt"))

	ctx = h.OnStart(ctx, nil, &model.CallbackInput{
		Messages: []*schema.Message{schema.UserMessage("hi")},
		Config:   &model.Config{Model: "m-1"},
	})
	assert.Equal(t, "m-1", modelNameFromContext(ctx))
	h.OnEnd(ctx, nil, &model.CallbackOutput{
		TokenUsage: &model.TokenUsage{PromptTokens: 12, CompletionTokens: 3},
	})

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("chat", "test-provider", "m-1", "success")))
	assert.Equal(t, tokensBefore+12, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("chat", "test-provider", "m-1", "prompt")))
}

func TestChatModelHandler_RecordsError(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithLLMCall(context.Background(), "tools", "test-provider")

	before := testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("tools", "test-provider", "m-2", "error"))
	ctx = h.OnStart(ctx, nil, &model.CallbackInput{Config: &model.Config{Model: "m-2"}})
	h.OnError(ctx, nil, errors.New("connection refused"))

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("tools", "test-provider", "m-2", "error")))
	assert.Zero(t, elapsedSeconds(context.Background()))
}

func TestEmbeddingHandler_RecordsCalls(t *testing.T) {
	h := newEmbeddingCallbackHandler()

	okBefore := testutil.ToFloat64(metrics.EmbeddingCallTotal.WithLabelValues("emb-1", "success"))
	textsBefore := testutil.ToFloat64(metrics.EmbeddingTextsTotal.WithLabelValues("emb-1"))

	ctx := h.OnStart(context.Background(), nil, &embedding.CallbackInput{
		Texts:  []string{"a", "b", "c"},
		Config: &embedding.Config{Model: "emb-1"},
	})
	h.OnEnd(ctx, nil, &embedding.CallbackOutput{})

	assert.Equal(t, okBefore+1, testutil.ToFloat64(metrics.EmbeddingCallTotal.WithLabelValues("emb-1", "success")))
	assert.Equal(t, textsBefore+3, testutil.ToFloat64(metrics.EmbeddingTextsTotal.WithLabelValues("emb-1")))

	errBefore := testutil.ToFloat64(metrics.EmbeddingCallTotal.WithLabelValues("unknown", "error"))
	ctx = h.OnStart(context.Background(), nil, nil)
	h.OnError(ctx, nil, errors.New("timeout"))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(metrics.EmbeddingCallTotal.WithLabelValues("unknown", "error")))
}

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
	assert.NotNil(t, newHandler())
}

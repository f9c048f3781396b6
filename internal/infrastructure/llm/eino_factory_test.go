package llm

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsaathi-ai-api/internal/config"
)

func TestEinoFactory_UnknownProvider(t *testing.T) {
	f := NewEinoFactory(&config.Config{LLM: config.LLMConfig{DefaultProvider: "missing"}})

	_, err := f.Get(context.Background(), "")
	assert.ErrorContains(t, err, "provider missing not found")
}

func TestEinoFactory_CachesModel(t *testing.T) {
	f := NewEinoFactory(&config.Config{LLM: config.LLMConfig{
		DefaultProvider: "local",
		Providers: map[string]config.ProviderConfig{
			"local": {APIKey: "k", BaseURL: "http://127.0.0.1:1/v1", Model: "test-model", MaxTokens: 256},
		},
	}})

	m1, err := f.Get(context.Background(), "")
	require.NoError(t, err)
	m2, err := f.Get(context.Background(), "local")
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	_, ok := m1.(model.ToolCallingChatModel)
	assert.True(t, ok)
	assert.Equal(t, "local", f.DefaultProvider())
}

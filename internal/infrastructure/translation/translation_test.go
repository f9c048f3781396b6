package translation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsaathi-ai-api/internal/application/multilingual"
	"finsaathi-ai-api/internal/application/prompt"
	"finsaathi-ai-api/internal/config"
)

func TestHTTPTranslator_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		var req translateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hi", req.Source)
		assert.Equal(t, "en", req.Target)
		assert.Equal(t, "key-1", req.APIKey)
		_ = json.NewEncoder(w).Encode(translateResponse{TranslatedText: "my budget"})
	}))
	defer srv.Close()

	tr := NewHTTPTranslator(&config.TranslationConfig{Endpoint: srv.URL + "/", APIKey: "key-1"})
	out, err := tr.Translate(context.Background(), "मेरा बजट", "hi", "en")
	require.NoError(t, err)
	assert.Equal(t, "my budget", out)
}

func TestHTTPTranslator_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		},
		"provider error": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(translateResponse{Error: "unsupported language"})
		},
		"empty": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(translateResponse{})
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			_, err := NewHTTPTranslator(&config.TranslationConfig{Endpoint: srv.URL}).
				Translate(context.Background(), "x", "hi", "en")
			assert.Error(t, err)
		})
	}

	_, err := NewHTTPTranslator(&config.TranslationConfig{}).Translate(context.Background(), "x", "hi", "en")
	assert.ErrorContains(t, err, "endpoint is empty")
}

type fakeModel struct {
	reply *schema.Message
	err   error
	msgs  []*schema.Message
	temp  *float32
}

func (f *fakeModel) Generate(_ context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.msgs = msgs
	f.temp = model.GetCommonOptions(&model.Options{}, opts...).Temperature
	return f.reply, f.err
}

func (f *fakeModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

type fakeModels struct {
	m   model.BaseChatModel
	err error
}

func (f fakeModels) Get(context.Context, string) (model.BaseChatModel, error) {
	return f.m, f.err
}

func TestLLMTranslator(t *testing.T) {
	m := &fakeModel{reply: schema.AssistantMessage("  my budget\n", nil)}
	tr := NewLLMTranslator(fakeModels{m: m}, prompt.NewRegistry(), "default")

	out, err := tr.Translate(context.Background(), "मेरा बजट", "hi", "en")
	require.NoError(t, err)
	assert.Equal(t, "my budget", out)
	require.Len(t, m.msgs, 2)
	assert.Contains(t, m.msgs[0].Content, `"hi"`)
	assert.Equal(t, "मेरा बजट", m.msgs[1].Content)
	require.NotNil(t, m.temp)
	assert.Zero(t, *m.temp)

	m.reply = schema.AssistantMessage("   ", nil)
	_, err = tr.Translate(context.Background(), "x", "hi", "en")
	assert.Error(t, err)

	_, err = NewLLMTranslator(fakeModels{err: errors.New("no provider")}, nil, "").Translate(context.Background(), "x", "hi", "en")
	assert.ErrorContains(t, err, "no provider")
}

func TestNewTranslator(t *testing.T) {
	tr, err := NewTranslator(&config.TranslationConfig{Provider: "noop"}, nil, nil, "")
	require.NoError(t, err)
	assert.IsType(t, multilingual.NoopTranslator{}, tr)

	m := &fakeModel{reply: schema.AssistantMessage("from llm", nil)}
	tr, err = NewTranslator(&config.TranslationConfig{Provider: "http"}, fakeModels{m: m}, nil, "")
	require.NoError(t, err)
	// HTTP 未配置 endpoint，回落到 LLM
	out, err := tr.Translate(context.Background(), "x", "hi", "en")
	require.NoError(t, err)
	assert.Equal(t, "from llm", out)

	tr, err = NewTranslator(&config.TranslationConfig{Provider: "llm"}, fakeModels{m: m}, nil, "")
	require.NoError(t, err)
	assert.IsType(t, &LLMTranslator{}, tr)

	_, err = NewTranslator(&config.TranslationConfig{Provider: "bogus"}, nil, nil, "")
	assert.Error(t, err)
}

// Package translation 提供翻译服务的具体实现
package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"finsaathi-ai-api/internal/config"
)

var tracer = otel.Tracer("translation")

// HTTPTranslator LibreTranslate 兼容接口（POST /translate）
type HTTPTranslator struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

func NewHTTPTranslator(cfg *config.TranslationConfig) *HTTPTranslator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTranslator{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Translate 失败时返回错误，由调用方决定降级
func (t *HTTPTranslator) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	ctx, span := tracer.Start(ctx, "translation.http.Translate",
		trace.WithAttributes(
			attribute.String("translation.source", src),
			attribute.String("translation.target", tgt),
			attribute.Int("translation.runes", len([]rune(text))),
		))
	defer span.End()

	if t.endpoint == "" {
		return "", fmt.Errorf("translation endpoint is empty")
	}

	body, err := json.Marshal(&translateRequest{
		Q:      text,
		Source: src,
		Target: tgt,
		Format: "text",
		APIKey: t.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal translate request: %w", err)
	}

	url := t.endpoint
	if !strings.HasSuffix(url, "/translate") {
		url += "/translate"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("translate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("translate request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(msg)))
		span.RecordError(err)
		return "", err
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode translate response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("translate provider error: %s", out.Error)
	}
	if out.TranslatedText == "" {
		return "", fmt.Errorf("translate provider returned empty text")
	}
	return out.TranslatedText, nil
}

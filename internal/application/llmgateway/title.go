package llmgateway

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"finsaathi-ai-api/internal/application/prompt"
)

const titleEllipsis = "..."

// GenerateTitle 尽力生成会话标题；失败时截断首条消息
func (g *Gateway) GenerateTitle(ctx context.Context, firstMessage string) string {
	fallback := FallbackTitle(firstMessage, g.cfg.TitleMaxRunes)
	if strings.TrimSpace(firstMessage) == "" {
		return fallback
	}

	callCtx, cancel := g.callCtx(ctx, OpTitle, g.cfg.TitleTimeout)
	defer cancel()

	msgs, err := g.titleMessages(callCtx, firstMessage)
	if err != nil {
		g.degrade(ctx, OpTitle, err)
		return fallback
	}
	reply, err := g.generate(callCtx, msgs, model.WithTemperature(g.cfg.ToolTemperature), model.WithMaxTokens(24))
	if err != nil {
		g.degrade(ctx, OpTitle, err)
		return fallback
	}

	title := cleanTitle(reply.Content)
	if title == "" {
		return fallback
	}
	if utf8.RuneCountInString(title) > g.cfg.TitleMaxRunes {
		return FallbackTitle(title, g.cfg.TitleMaxRunes)
	}
	return title
}

func (g *Gateway) titleMessages(ctx context.Context, message string) ([]*schema.Message, error) {
	tpl, err := g.prompts.ChatTemplate(prompt.PromptTitleV1)
	if err != nil {
		return nil, err
	}
	return tpl.Format(ctx, map[string]any{"message": message})
}

// FallbackTitle 折叠空白后按 rune 截断，超长追加省略号
func FallbackTitle(message string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = defaultTitleRunes
	}
	s := strings.Join(strings.Fields(message), " ")
	if s == "" {
		return "New conversation"
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:maxRunes])) + titleEllipsis
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'`“”‘’ ")
	s = strings.TrimPrefix(s, "Title:")
	s = strings.TrimRight(strings.TrimSpace(s), ".!。")
	return strings.Join(strings.Fields(s), " ")
}

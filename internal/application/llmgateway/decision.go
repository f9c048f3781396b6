package llmgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"finsaathi-ai-api/internal/application/prompt"
	"finsaathi-ai-api/internal/application/tools"
	"finsaathi-ai-api/pkg/logger"
)

// Decision 工具决策结果：要么直接回复，要么一组工具调用
type Decision struct {
	Reply string
	Calls []tools.Call
	// Degraded 为 true 时 Reply 是降级提示
	Degraded bool
}

// WantsTools 模型是否请求了工具调用
func (d Decision) WantsTools() bool {
	return len(d.Calls) > 0
}

// CompleteWithTools 以较低温度让模型决定是否调用工具。
// 传输失败时降级为携带重试提示的直接回复。
func (g *Gateway) CompleteWithTools(ctx context.Context, systemPrompt string, turns []*schema.Message, catalog []*schema.ToolInfo) Decision {
	callCtx, cancel := g.callCtx(ctx, OpTools, g.cfg.ToolTimeout)
	defer cancel()

	m, err := g.chatModel(callCtx)
	if err != nil {
		g.degrade(ctx, OpTools, err)
		return Decision{Reply: RetryReply, Degraded: true}
	}
	if len(catalog) > 0 {
		tcm, ok := m.(model.ToolCallingChatModel)
		if !ok {
			logger.Warn(ctx, "chat model does not support tool calling", "provider", g.cfg.Provider)
		} else {
			bound, bErr := tcm.WithTools(catalog)
			if bErr != nil {
				logger.Warn(ctx, "bind tools failed", "provider", g.cfg.Provider, "error", bErr.Error())
			} else {
				m = bound
			}
		}
	}

	resp, err := m.Generate(callCtx, buildMessages(systemPrompt, turns), model.WithTemperature(g.cfg.ToolTemperature))
	if err != nil {
		g.degrade(ctx, OpTools, err)
		return Decision{Reply: RetryReply, Degraded: true}
	}
	if resp == nil {
		g.degrade(ctx, OpTools, ErrEmptyReply)
		return Decision{Reply: RetryReply, Degraded: true}
	}

	if len(resp.ToolCalls) > 0 {
		return Decision{Calls: toCalls(ctx, resp.ToolCalls)}
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		g.degrade(ctx, OpTools, ErrEmptyReply)
		return Decision{Reply: RetryReply, Degraded: true}
	}
	return Decision{Reply: content}
}

// toCalls 转换模型的工具调用；参数不是合法 JSON 对象时替换为 {}
func toCalls(ctx context.Context, raw []schema.ToolCall) []tools.Call {
	calls := make([]tools.Call, 0, len(raw))
	for i, tc := range raw {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		args := strings.TrimSpace(tc.Function.Arguments)
		if !isJSONObject(args) {
			if args != "" {
				logger.Warn(ctx, "malformed tool arguments replaced",
					"tool", tc.Function.Name,
					"args_len", len(args),
				)
			}
			args = "{}"
		}
		calls = append(calls, tools.Call{
			ID:        id,
			Name:      strings.TrimSpace(tc.Function.Name),
			Arguments: args,
		})
	}
	return calls
}

func isJSONObject(s string) bool {
	if s == "" || !json.Valid([]byte(s)) {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}

// EnrichPrompt 把工具结果折叠进系统提示，供第二次补全使用
func (g *Gateway) EnrichPrompt(systemPrompt string, results []tools.Result) string {
	if len(results) == 0 {
		return systemPrompt
	}
	header, err := g.prompts.Text(prompt.PromptEnrichV1)
	if err != nil {
		header = "Tool results (authoritative figures, one JSON object per line):"
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(systemPrompt))
	b.WriteString("\n\n")
	b.WriteString(header)
	b.WriteString("\n")
	for _, r := range results {
		line, mErr := json.Marshal(r)
		if mErr != nil {
			continue
		}
		b.WriteString("- ")
		b.Write(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Package llmgateway 封装对话模型调用：自由对话、工具决策、标题生成与可达性探测。
// 所有操作在失败时返回降级值，不向调用方抛出错误。
package llmgateway

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"finsaathi-ai-api/internal/application/prompt"
	"finsaathi-ai-api/internal/domain/service"
	"finsaathi-ai-api/pkg/logger"
	"finsaathi-ai-api/pkg/metrics"
)

const (
	defaultChatTimeout   = 30 * time.Second
	defaultToolTimeout   = 20 * time.Second
	defaultTitleTimeout  = 8 * time.Second
	defaultHealthTimeout = 5 * time.Second
	defaultTitleRunes    = 40
)

// 调用场景，写入 context 供 eino 回调打标签
const (
	OpChat   = "chat"
	OpTools  = "tool_decision"
	OpTitle  = "title"
	OpHealth = "health"
)

// ModelFactory 按提供商名称获取 ChatModel
type ModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// Config 网关参数
type Config struct {
	Provider        string
	ChatTemperature float32
	ToolTemperature float32
	ChatTimeout     time.Duration
	ToolTimeout     time.Duration
	TitleTimeout    time.Duration
	HealthTimeout   time.Duration
	TitleMaxRunes   int
}

// Gateway 无状态，可并发使用
type Gateway struct {
	factory ModelFactory
	prompts *prompt.Registry
	cfg     Config
}

func New(factory ModelFactory, prompts *prompt.Registry, cfg Config) *Gateway {
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = defaultChatTimeout
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = defaultToolTimeout
	}
	if cfg.TitleTimeout <= 0 {
		cfg.TitleTimeout = defaultTitleTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = defaultHealthTimeout
	}
	if cfg.TitleMaxRunes <= 0 {
		cfg.TitleMaxRunes = defaultTitleRunes
	}
	if cfg.ToolTemperature <= 0 || cfg.ToolTemperature > cfg.ChatTemperature {
		cfg.ToolTemperature = cfg.ChatTemperature / 4
	}
	if prompts == nil {
		prompts = prompt.Default()
	}
	return &Gateway{factory: factory, prompts: prompts, cfg: cfg}
}

func (g *Gateway) chatModel(ctx context.Context) (model.BaseChatModel, error) {
	if g == nil || g.factory == nil {
		return nil, ErrNoModel
	}
	m, err := g.factory.Get(ctx, g.cfg.Provider)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNoModel
	}
	return m, nil
}

// callCtx 附加超时与回调标签，并挂上全局 callbacks，直接调用组件时指标同样生效
func (g *Gateway) callCtx(ctx context.Context, op string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx = service.WithLLMCall(ctx, op, g.cfg.Provider)
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      op,
		Type:      g.cfg.Provider,
		Component: components.ComponentOfChatModel,
	})
	return context.WithTimeout(ctx, timeout)
}

// CompleteChat 自由对话。连接失败返回离线提示，其他失败返回重试提示，从不返回空串。
func (g *Gateway) CompleteChat(ctx context.Context, systemPrompt string, turns []*schema.Message) string {
	callCtx, cancel := g.callCtx(ctx, OpChat, g.cfg.ChatTimeout)
	defer cancel()

	reply, err := g.generate(callCtx, buildMessages(systemPrompt, turns), model.WithTemperature(g.cfg.ChatTemperature))
	if err != nil {
		return g.degrade(ctx, OpChat, err)
	}
	return reply.Content
}

func (g *Gateway) generate(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m, err := g.chatModel(ctx)
	if err != nil {
		return nil, err
	}
	reply, err := m.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return nil, ErrEmptyReply
	}
	reply.Content = strings.TrimSpace(reply.Content)
	return reply, nil
}

func (g *Gateway) degrade(ctx context.Context, op string, err error) string {
	reason := degradeReason(err)
	metrics.LLMDegradedTotal.WithLabelValues(op, reason).Inc()
	logger.Warn(ctx, "llm call degraded",
		"operation", op,
		"provider", g.cfg.Provider,
		"reason", reason,
		"error", errString(err),
	)
	return degradedReply(err)
}

// HealthCheck 轻量可达性探测
func (g *Gateway) HealthCheck(ctx context.Context) bool {
	callCtx, cancel := g.callCtx(ctx, OpHealth, g.cfg.HealthTimeout)
	defer cancel()

	msgs := []*schema.Message{schema.SystemMessage("Reply with the single word: ok"), schema.UserMessage("ping")}
	if tpl, err := g.prompts.ChatTemplate(prompt.PromptHealthV1); err == nil {
		if formatted, fErr := tpl.Format(callCtx, map[string]any{}); fErr == nil {
			msgs = formatted
		}
	}

	m, err := g.chatModel(callCtx)
	if err != nil {
		logger.Warn(ctx, "llm health check failed", "provider", g.cfg.Provider, "error", err.Error())
		return false
	}
	if _, err := m.Generate(callCtx, msgs, model.WithMaxTokens(2), model.WithTemperature(0)); err != nil {
		logger.Warn(ctx, "llm health check failed", "provider", g.cfg.Provider, "error", err.Error())
		return false
	}
	return true
}

func buildMessages(systemPrompt string, turns []*schema.Message) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(turns)+1)
	if s := strings.TrimSpace(systemPrompt); s != "" {
		msgs = append(msgs, schema.SystemMessage(s))
	}
	for _, t := range turns {
		if t == nil {
			continue
		}
		msgs = append(msgs, t)
	}
	return msgs
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

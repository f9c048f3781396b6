// Package chat 串联一轮对话：检测翻译、工具决策与执行、补全、回译、持久化。
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"finsaathi-ai-api/internal/application/persona"
	"finsaathi-ai-api/internal/application/retrieval"
	"finsaathi-ai-api/internal/application/tools"
	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/internal/domain/repository"
	apperrors "finsaathi-ai-api/pkg/errors"
	"finsaathi-ai-api/pkg/logger"
	"finsaathi-ai-api/pkg/metrics"
	"finsaathi-ai-api/pkg/tracer"
)

const (
	defaultHistoryTurns   = 10
	defaultPersistTimeout = 5 * time.Second
	defaultFactTimeout    = 3 * time.Second
	defaultFewShot        = 4
	maxMessageRunes       = 4000
)

// 回复路径，用作指标标签
const (
	pathDirect   = "direct"
	pathTools    = "tools"
	pathDegraded = "degraded"
)

// TurnInput 一轮对话的输入。
// assistant: OwnerID 为用户；copilot: OwnerID 为顾问；clone: OwnerID 为客户，AdvisorID 为被模拟的顾问。
type TurnInput struct {
	ThreadID     string
	OwnerID      string
	AdvisorID    string
	Message      string
	LanguageHint string
	Surface      entity.Surface
}

// TurnOutput 一轮对话的输出
type TurnOutput struct {
	ReplyText        string   `json:"reply_text"`
	ToolsUsed        []string `json:"tools_used"`
	DetectedLanguage string   `json:"detected_language"`
}

// Config 编排参数
type Config struct {
	HistoryTurns   int
	MaxFewShot     int
	PersistTimeout time.Duration
	// FactTimeout 线程、历史、画像与客户群聚合等事实读取的单次超时
	FactTimeout time.Duration
}

// Orchestrator 三个入口共用，差异只在提示构建与工具子集
type Orchestrator struct {
	gateway    Gateway
	translator Translator
	executor   ToolExecutor
	examples   ExampleSearcher
	cohort     CohortSummarizer
	builder    *persona.Builder
	chats      repository.ChatRepository
	facts      repository.FactRepository
	cohorts    repository.CohortRepository

	historyTurns   int
	maxFewShot     int
	persistTimeout time.Duration
	factTimeout    time.Duration
}

// Deps 编排依赖
type Deps struct {
	Gateway    Gateway
	Translator Translator
	Executor   ToolExecutor
	Examples   ExampleSearcher
	Cohort     CohortSummarizer
	Builder    *persona.Builder
	Chats      repository.ChatRepository
	Facts      repository.FactRepository
	Cohorts    repository.CohortRepository
}

func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = defaultHistoryTurns
	}
	if cfg.MaxFewShot <= 0 {
		cfg.MaxFewShot = defaultFewShot
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	if cfg.FactTimeout <= 0 {
		cfg.FactTimeout = defaultFactTimeout
	}
	builder := deps.Builder
	if builder == nil {
		builder = persona.NewBuilder(nil, cfg.MaxFewShot)
	}
	return &Orchestrator{
		gateway:        deps.Gateway,
		translator:     deps.Translator,
		executor:       deps.Executor,
		examples:       deps.Examples,
		cohort:         deps.Cohort,
		builder:        builder,
		chats:          deps.Chats,
		facts:          deps.Facts,
		cohorts:        deps.Cohorts,
		historyTurns:   cfg.HistoryTurns,
		maxFewShot:     cfg.MaxFewShot,
		persistTimeout: cfg.PersistTimeout,
		factTimeout:    cfg.FactTimeout,
	}
}

// HandleTurn 处理一轮对话。依赖故障都在各阶段内降级；
// 只有调用方错误、请求取消和最终持久化失败会返回 error。
func (o *Orchestrator) HandleTurn(ctx context.Context, in TurnInput) (*TurnOutput, error) {
	start := time.Now()
	in = normalizeInput(in)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	ctx = logger.WithContext(ctx, logger.ThreadIDKey, in.ThreadID)
	ctx = logger.WithContext(ctx, logger.OwnerIDKey, in.OwnerID)
	ctx = logger.WithContext(ctx, logger.SurfaceKey, string(in.Surface))
	ctx, span := tracer.Start(ctx, "chat.HandleTurn", trace.WithAttributes(
		attribute.String("chat.surface", string(in.Surface)),
		attribute.String("chat.thread_id", in.ThreadID),
	))
	defer span.End()

	path := pathDirect
	status := "ok"
	defer func() {
		metrics.ChatTurnsTotal.WithLabelValues(string(in.Surface), path, status).Inc()
		metrics.ChatTurnDuration.WithLabelValues(string(in.Surface)).Observe(time.Since(start).Seconds())
	}()

	if err := o.authorize(ctx, in); err != nil {
		status = "rejected"
		return nil, err
	}

	// 1. 检测并翻译到工作语言
	lang := o.translator.DetectWithHint(in.Message, in.LanguageHint)
	working := o.stage(ctx, "chat.translate_in", func(ctx context.Context) string {
		return o.translator.ToWorkingLanguage(ctx, in.Message, lang)
	})

	history := o.history(ctx, in.ThreadID)
	turns := append(o.workingHistory(ctx, history), schema.UserMessage(working))
	scope := tools.Scope{Surface: in.Surface, OwnerID: in.OwnerID, AdvisorID: in.AdvisorID}
	if in.Surface == entity.SurfaceCopilot {
		scope.OwnerID = ""
	}

	// 2. 系统提示
	systemPrompt := o.systemPrompt(ctx, in, working, scope)

	// 3. 工具决策
	ctxDecide, decideSpan := tracer.Start(ctx, "chat.decide")
	decision := o.gateway.CompleteWithTools(ctxDecide, systemPrompt, turns, tools.ForSurface(in.Surface))
	decideSpan.End()

	reply := decision.Reply
	var toolsUsed []string
	switch {
	case decision.WantsTools():
		path = pathTools
		ctxExec, execSpan := tracer.Start(ctx, "chat.execute_tools", trace.WithAttributes(attribute.Int("chat.tool_calls", len(decision.Calls))))
		results := o.executor.ExecuteAll(ctxExec, decision.Calls, scope)
		execSpan.End()
		if err := ctx.Err(); err != nil {
			status = "cancelled"
			return nil, err
		}
		toolsUsed = usedTools(results)

		enriched := o.gateway.EnrichPrompt(systemPrompt, results)
		reply = o.stage(ctx, "chat.complete", func(ctx context.Context) string {
			return o.gateway.CompleteChat(ctx, enriched, turns)
		})
	case decision.Degraded:
		path = pathDegraded
	}

	// 4. 回译
	out := o.stage(ctx, "chat.translate_out", func(ctx context.Context) string {
		return o.translator.FromWorkingLanguage(ctx, reply, lang)
	})

	// 请求已取消时不落库
	if err := ctx.Err(); err != nil {
		status = "cancelled"
		return nil, err
	}

	// 5. 原子写入问答对
	if err := o.persist(ctx, in, out, toolsUsed); err != nil {
		status = "persist_failed"
		span.RecordError(err)
		return nil, err
	}
	if len(history) == 0 {
		o.maybeSetTitle(ctx, in)
	}

	if toolsUsed == nil {
		toolsUsed = []string{}
	}
	return &TurnOutput{ReplyText: out, ToolsUsed: toolsUsed, DetectedLanguage: lang}, nil
}

func (o *Orchestrator) stage(ctx context.Context, name string, fn func(ctx context.Context) string) string {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	return fn(ctx)
}

func normalizeInput(in TurnInput) TurnInput {
	in.ThreadID = strings.TrimSpace(in.ThreadID)
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.AdvisorID = strings.TrimSpace(in.AdvisorID)
	in.Message = strings.TrimSpace(in.Message)
	in.LanguageHint = strings.TrimSpace(in.LanguageHint)
	if in.Surface == entity.SurfaceCopilot && in.AdvisorID == "" {
		in.AdvisorID = in.OwnerID
	}
	return in
}

func validateInput(in TurnInput) error {
	switch {
	case !in.Surface.Valid():
		return apperrors.ErrInvalidParam.WithDetail("unknown chat surface")
	case in.ThreadID == "":
		return apperrors.ErrInvalidParam.WithDetail("thread_id is required")
	case in.OwnerID == "":
		return apperrors.ErrInvalidParam.WithDetail("owner is required")
	case in.Message == "":
		return apperrors.ErrInvalidParam.WithDetail("message is required")
	case len([]rune(in.Message)) > maxMessageRunes:
		return apperrors.ErrInvalidParam.WithDetail("message is too long")
	case in.Surface == entity.SurfaceClone && in.AdvisorID == "":
		return apperrors.ErrInvalidParam.WithDetail("advisor_id is required")
	case in.Surface == entity.SurfaceCopilot && in.AdvisorID != in.OwnerID:
		return apperrors.ErrForbidden.WithDetail("co-pilot threads belong to the advisor")
	}
	return nil
}

// authorize 线程归属与顾问-客户关系校验
func (o *Orchestrator) authorize(ctx context.Context, in TurnInput) error {
	ctx, cancel := o.factCtx(ctx)
	defer cancel()

	thread, err := o.chats.GetThread(ctx, in.ThreadID)
	if err != nil {
		logger.Error(ctx, "load chat thread failed", err)
		return apperrors.Wrap(err, apperrors.CodeChatFailed, "failed to load thread")
	}
	if thread == nil {
		return apperrors.ErrThreadNotFound
	}
	if thread.OwnerID != in.OwnerID || (thread.Surface != "" && thread.Surface != in.Surface) {
		return apperrors.ErrForbidden.WithDetail("thread does not belong to caller")
	}

	if in.Surface == entity.SurfaceClone {
		if o.cohorts == nil {
			return apperrors.ErrServiceUnavailable
		}
		ok, err := o.cohorts.IsAssigned(ctx, in.AdvisorID, in.OwnerID)
		if err != nil {
			logger.Error(ctx, "check advisor assignment failed", err)
			return apperrors.Wrap(err, apperrors.CodeChatFailed, "failed to verify advisor")
		}
		if !ok {
			return apperrors.ErrForbidden.WithDetail("advisor is not assigned to this client")
		}
	}
	return nil
}

// history 读取失败时按空历史继续
func (o *Orchestrator) history(ctx context.Context, threadID string) []*entity.ChatTurn {
	ctx, cancel := o.factCtx(ctx)
	defer cancel()

	turns, err := o.chats.LastTurns(ctx, threadID, o.historyTurns)
	if err != nil {
		logger.Warn(ctx, "load chat history failed, continuing without it", "error", err.Error())
		return nil
	}
	return turns
}

// workingHistory 历史按原文落库，送入模型前逐条转回工作语言；翻译走缓存
func (o *Orchestrator) workingHistory(ctx context.Context, turns []*entity.ChatTurn) []*schema.Message {
	msgs := toMessages(turns)
	var g errgroup.Group
	for _, m := range msgs {
		g.Go(func() error {
			lang := o.translator.DetectWithHint(m.Content, "")
			m.Content = o.translator.ToWorkingLanguage(ctx, m.Content, lang)
			return nil
		})
	}
	_ = g.Wait()
	return msgs
}

func toMessages(turns []*entity.ChatTurn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns)+1)
	for _, t := range turns {
		if t == nil || strings.TrimSpace(t.Content) == "" {
			continue
		}
		switch t.Role {
		case entity.RoleUser:
			out = append(out, schema.UserMessage(t.Content))
		case entity.RoleAssistant:
			out = append(out, schema.AssistantMessage(t.Content, nil))
		}
	}
	return out
}

func (o *Orchestrator) systemPrompt(ctx context.Context, in TurnInput, working string, scope tools.Scope) string {
	ctx, span := tracer.Start(ctx, "chat.build_prompt")
	defer span.End()

	switch in.Surface {
	case entity.SurfaceCopilot:
		var summary *entity.CohortSummary
		if o.cohort != nil {
			sctx, cancel := o.factCtx(ctx)
			s, err := o.cohort.Summarize(sctx, in.AdvisorID)
			cancel()
			if err != nil {
				logger.Warn(ctx, "cohort summary unavailable", "error", err.Error())
			} else {
				summary = s
			}
		}
		return o.builder.BuildCohortPrompt(o.displayName(ctx, in.AdvisorID), summary)

	case entity.SurfaceClone:
		var examples []entity.RetrievalResult
		if o.examples != nil {
			examples = o.examples.Query(ctx, retrieval.QueryRequest{
				Space:   entity.SpaceAdvisorPersona,
				OwnerID: in.AdvisorID,
				Text:    working,
				TopK:    o.maxFewShot * 2,
			})
		}
		subject := persona.SubjectContext{
			Name:  o.displayName(ctx, in.OwnerID),
			Facts: o.subjectFacts(ctx, scope),
		}
		return o.builder.BuildPersonaPrompt(o.displayName(ctx, in.AdvisorID), examples, subject)

	default:
		return o.builder.BuildAssistantPrompt(o.displayName(ctx, in.OwnerID))
	}
}

// subjectFacts 通过工具取客户的预聚合事实，失败的条目跳过
func (o *Orchestrator) subjectFacts(ctx context.Context, scope tools.Scope) []string {
	if o.executor == nil {
		return nil
	}
	results := o.executor.ExecuteAll(ctx, []tools.Call{
		{ID: "ctx_profile", Name: string(tools.NameUserProfile)},
		{ID: "ctx_health", Name: string(tools.NameHealthScore)},
		{ID: "ctx_goals", Name: string(tools.NameGoals)},
	}, scope)
	facts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Failed() || len(r.Data) == 0 {
			continue
		}
		facts = append(facts, r.Tool+": "+string(r.Data))
	}
	return facts
}

func (o *Orchestrator) displayName(ctx context.Context, userID string) string {
	if o.facts == nil || userID == "" {
		return ""
	}
	ctx, cancel := o.factCtx(ctx)
	defer cancel()

	p, err := o.facts.GetProfile(ctx, userID)
	if err != nil || p == nil {
		return ""
	}
	return p.Name
}

// factCtx 单次事实读取的超时，超时后各调用方按缺省值降级
func (o *Orchestrator) factCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.factTimeout)
}

// usedTools 成功执行的工具名，去重保序
func usedTools(results []tools.Result) []string {
	seen := make(map[string]struct{}, len(results))
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Failed() {
			continue
		}
		if _, ok := seen[r.Tool]; ok {
			continue
		}
		seen[r.Tool] = struct{}{}
		out = append(out, r.Tool)
	}
	return out
}

func (o *Orchestrator) persist(ctx context.Context, in TurnInput, reply string, toolsUsed []string) error {
	ctx, cancel := context.WithTimeout(ctx, o.persistTimeout)
	defer cancel()

	user := entity.NewChatTurn(in.ThreadID, entity.RoleUser, in.Message, nil)
	assistant := entity.NewChatTurn(in.ThreadID, entity.RoleAssistant, reply, toolsUsed)
	// 助手回复的时间戳不早于问题
	if !assistant.CreatedAt.After(user.CreatedAt) {
		assistant.CreatedAt = user.CreatedAt.Add(time.Microsecond)
	}
	if err := o.chats.AppendPair(ctx, in.ThreadID, user, assistant); err != nil {
		logger.Error(ctx, "persist chat turn failed", err)
		if errors.Is(err, context.Canceled) {
			return err
		}
		return apperrors.Wrap(err, apperrors.CodeChatFailed, "failed to save conversation")
	}
	return nil
}

// maybeSetTitle 首轮生成标题，失败只记日志
func (o *Orchestrator) maybeSetTitle(ctx context.Context, in TurnInput) {
	title := o.gateway.GenerateTitle(ctx, in.Message)
	if title == "" {
		return
	}
	if err := o.chats.SetTitleIfEmpty(ctx, in.ThreadID, title); err != nil {
		logger.Warn(ctx, "set thread title failed", "error", err.Error())
	}
}

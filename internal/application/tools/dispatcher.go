package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"finsaathi-ai-api/internal/application/retrieval"
	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/internal/domain/repository"
	"finsaathi-ai-api/pkg/logger"
	"finsaathi-ai-api/pkg/metrics"
)

const (
	defaultCallTimeout = 8 * time.Second
	defaultMaxCalls    = 5
)

// 错误标签，写入结果给模型看，不含内部错误文本
const (
	ErrTagUnknownTool      = "unknown_tool"
	ErrTagNotPermitted     = "tool_not_available_here"
	ErrTagInvalidArguments = "invalid_arguments"
	ErrTagDataUnavailable  = "data_unavailable"
	ErrTagTimeout          = "timeout"
	ErrTagCancelled        = "cancelled"
)

// Call 一次工具调用请求
type Call struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Result 工具结果：Data 与 Error 二选一
type Result struct {
	CallID string          `json:"-"`
	Tool   string          `json:"tool"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Failed 是否为错误结果
func (r Result) Failed() bool {
	return r.Error != ""
}

// Scope 工具执行的数据范围
type Scope struct {
	Surface entity.Surface
	// OwnerID 被查询数据的用户；copilot 入口为空
	OwnerID string
	// AdvisorID copilot/clone 入口的顾问
	AdvisorID string
}

// DocumentSearcher 文档检索依赖
type DocumentSearcher interface {
	Query(ctx context.Context, req retrieval.QueryRequest) []entity.RetrievalResult
}

// CohortSummarizer 顾问客户群聚合依赖
type CohortSummarizer interface {
	Summarize(ctx context.Context, advisorID string) (*entity.CohortSummary, error)
}

// Config 调度参数
type Config struct {
	CallTimeout time.Duration
	MaxCalls    int
}

// Dispatcher 工具调度器
type Dispatcher struct {
	facts  repository.FactRepository
	refs   repository.ReferenceRepository
	docs   DocumentSearcher
	cohort CohortSummarizer

	callTimeout time.Duration
	maxCalls    int
	now         func() time.Time
}

func NewDispatcher(facts repository.FactRepository, refs repository.ReferenceRepository, docs DocumentSearcher, cohort CohortSummarizer, cfg Config) *Dispatcher {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	maxCalls := cfg.MaxCalls
	if maxCalls <= 0 {
		maxCalls = defaultMaxCalls
	}
	return &Dispatcher{
		facts:       facts,
		refs:        refs,
		docs:        docs,
		cohort:      cohort,
		callTimeout: timeout,
		maxCalls:    maxCalls,
		now:         time.Now,
	}
}

// toolError 工具内部错误，Tag 写入结果
type toolError struct {
	Tag string
	Err error
}

func (e *toolError) Error() string {
	if e.Err != nil {
		return e.Tag + ": " + e.Err.Error()
	}
	return e.Tag
}

func (e *toolError) Unwrap() error { return e.Err }

func invalidArgs(format string, args ...any) error {
	return &toolError{Tag: ErrTagInvalidArguments, Err: fmt.Errorf(format, args...)}
}

var errNoProfile = errors.New("user profile not found")

func unavailable(err error) error {
	return &toolError{Tag: ErrTagDataUnavailable, Err: err}
}

// Execute 执行单个工具调用，从不返回 error，失败写入 Result.Error。
func (d *Dispatcher) Execute(ctx context.Context, call Call, scope Scope) Result {
	name := strings.TrimSpace(call.Name)
	res := Result{CallID: call.ID, Tool: name}

	start := time.Now()
	data, err := d.safeRun(ctx, Name(name), call.Arguments, scope)
	metrics.ToolCallDuration.WithLabelValues(metricToolLabel(name)).Observe(time.Since(start).Seconds())

	if err != nil {
		res.Error = errorTag(ctx, err)
		metrics.ToolCallTotal.WithLabelValues(metricToolLabel(name), res.Error).Inc()
		logger.Warn(ctx, "tool call failed",
			"tool", name,
			"surface", string(scope.Surface),
			"error", err.Error(),
		)
		return res
	}

	b, mErr := json.Marshal(data)
	if mErr != nil {
		res.Error = ErrTagDataUnavailable
		metrics.ToolCallTotal.WithLabelValues(metricToolLabel(name), res.Error).Inc()
		return res
	}
	res.Data = b
	metrics.ToolCallTotal.WithLabelValues(metricToolLabel(name), "ok").Inc()
	return res
}

// ExecuteAll 并发执行一批调用，结果顺序与输入一致；单个失败不影响其他调用。
// 超过上限的调用被丢弃。
func (d *Dispatcher) ExecuteAll(ctx context.Context, calls []Call, scope Scope) []Result {
	if len(calls) > d.maxCalls {
		logger.Warn(ctx, "tool calls truncated", "requested", len(calls), "max", d.maxCalls)
		calls = calls[:d.maxCalls]
	}
	results := make([]Result, len(calls))

	var g errgroup.Group
	for i := range calls {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
			defer cancel()
			results[i] = d.Execute(callCtx, calls[i], scope)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// safeRun 工具实现 panic 时转为 data_unavailable，不让并发调用拖垮进程
func (d *Dispatcher) safeRun(ctx context.Context, name Name, rawArgs string, scope Scope) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "tool call panicked", fmt.Errorf("%v", r),
				"tool", string(name),
				"stack", string(debug.Stack()),
			)
			data, err = nil, unavailable(fmt.Errorf("panic: %v", r))
		}
	}()
	return d.run(ctx, name, rawArgs, scope)
}

// run 按工具名分派；未知名称走默认分支
func (d *Dispatcher) run(ctx context.Context, name Name, rawArgs string, scope Scope) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch name {
	case NameUserProfile, NameRecentTransactions, NameBudgetStatus, NameGoals,
		NamePortfolioSuggestions, NameMarketSnapshot, NameHealthScore, NameSearchSchemes,
		NameSearchDocuments, NameSpendingInsights, NameLearningProgress, NameCohortOverview:
	default:
		return nil, &toolError{Tag: ErrTagUnknownTool}
	}
	if !Allowed(scope.Surface, name) {
		return nil, &toolError{Tag: ErrTagNotPermitted}
	}

	args, err := parseArgs(rawArgs)
	if err != nil {
		return nil, err
	}

	switch name {
	case NameUserProfile:
		return d.userProfile(ctx, scope)
	case NameRecentTransactions:
		return d.recentTransactions(ctx, scope, args)
	case NameBudgetStatus:
		return d.budgetStatus(ctx, scope, args)
	case NameGoals:
		return d.goals(ctx, scope)
	case NamePortfolioSuggestions:
		return d.portfolioSuggestions(ctx, scope, args)
	case NameMarketSnapshot:
		return d.marketSnapshot(ctx, args)
	case NameHealthScore:
		return d.healthScore(ctx, scope)
	case NameSearchSchemes:
		return d.searchSchemes(ctx, args)
	case NameSearchDocuments:
		return d.searchDocuments(ctx, scope, args)
	case NameSpendingInsights:
		return d.spendingInsights(ctx, scope)
	case NameLearningProgress:
		return d.learningProgress(ctx, scope)
	case NameCohortOverview:
		return d.cohortOverview(ctx, scope)
	default:
		return nil, &toolError{Tag: ErrTagUnknownTool}
	}
}

func errorTag(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTagTimeout
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return ErrTagCancelled
	}
	var te *toolError
	if errors.As(err, &te) {
		return te.Tag
	}
	return ErrTagDataUnavailable
}

// metricToolLabel 未知工具名统一记为 unknown，避免模型输出撑爆标签基数
func metricToolLabel(name string) string {
	for _, info := range catalog {
		if info.Name == name {
			return name
		}
	}
	return "unknown"
}

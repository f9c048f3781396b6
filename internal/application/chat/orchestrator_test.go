package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsaathi-ai-api/internal/application/llmgateway"
	"finsaathi-ai-api/internal/application/multilingual"
	"finsaathi-ai-api/internal/application/retrieval"
	"finsaathi-ai-api/internal/application/tools"
	"finsaathi-ai-api/internal/domain/entity"
	apperrors "finsaathi-ai-api/pkg/errors"
)

type fakeGateway struct {
	mu        sync.Mutex
	decision  llmgateway.Decision
	final     string
	decideSys string
	finalSys  string
	turns     []*schema.Message
	catalog   []*schema.ToolInfo
	titles    int
	onDecide  func()
}

func (g *fakeGateway) CompleteChat(_ context.Context, systemPrompt string, turns []*schema.Message) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finalSys = systemPrompt
	return g.final
}

func (g *fakeGateway) CompleteWithTools(_ context.Context, systemPrompt string, turns []*schema.Message, catalog []*schema.ToolInfo) llmgateway.Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.decideSys = systemPrompt
	g.turns = turns
	g.catalog = catalog
	if g.onDecide != nil {
		g.onDecide()
	}
	return g.decision
}

func (g *fakeGateway) EnrichPrompt(systemPrompt string, results []tools.Result) string {
	b, _ := json.Marshal(results)
	return systemPrompt + "\nRESULTS " + string(b)
}

func (g *fakeGateway) GenerateTitle(_ context.Context, firstMessage string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.titles++
	return llmgateway.FallbackTitle(firstMessage, 40)
}

type fakeExecutor struct {
	mu      sync.Mutex
	scopes  []tools.Scope
	calls   [][]tools.Call
	results func(calls []tools.Call) []tools.Result
	block   bool
}

func (e *fakeExecutor) ExecuteAll(ctx context.Context, calls []tools.Call, scope tools.Scope) []tools.Result {
	e.mu.Lock()
	e.scopes = append(e.scopes, scope)
	e.calls = append(e.calls, calls)
	e.mu.Unlock()
	if e.block {
		<-ctx.Done()
	}
	if e.results != nil {
		return e.results(calls)
	}
	out := make([]tools.Result, 0, len(calls))
	for _, c := range calls {
		out = append(out, tools.Result{CallID: c.ID, Tool: c.Name, Data: json.RawMessage(`{"ok":true}`)})
	}
	return out
}

type memChats struct {
	mu         sync.Mutex
	threads    map[string]*entity.ChatThread
	turns      map[string][]*entity.ChatTurn
	historyErr error
	appendErr  error
	// slowReads 读取阻塞到上下文结束
	slowReads bool
}

func newMemChats(threads ...*entity.ChatThread) *memChats {
	m := &memChats{threads: map[string]*entity.ChatThread{}, turns: map[string][]*entity.ChatTurn{}}
	for _, t := range threads {
		m.threads[t.ID] = t
	}
	return m
}

func (m *memChats) GetThread(_ context.Context, threadID string) (*entity.ChatThread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threads[threadID], nil
}

func (m *memChats) LastTurns(ctx context.Context, threadID string, n int) ([]*entity.ChatTurn, error) {
	if m.slowReads {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	ts := m.turns[threadID]
	if len(ts) > n {
		ts = ts[len(ts)-n:]
	}
	return ts, nil
}

func (m *memChats) AppendPair(_ context.Context, threadID string, user, assistant *entity.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.turns[threadID] = append(m.turns[threadID], user, assistant)
	return nil
}

func (m *memChats) SetTitleIfEmpty(_ context.Context, threadID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.threads[threadID]; t != nil && t.Title == "" {
		t.Title = title
	}
	return nil
}

type fakeCohorts struct {
	assigned map[string]bool
}

func (f *fakeCohorts) ListClientSnapshots(_ context.Context, _ string) ([]*entity.ClientSnapshot, error) {
	return nil, nil
}

func (f *fakeCohorts) IsAssigned(_ context.Context, advisorID, clientID string) (bool, error) {
	return f.assigned[advisorID+"/"+clientID], nil
}

type fakeExamples struct {
	reqs []retrieval.QueryRequest
	hits []entity.RetrievalResult
}

func (f *fakeExamples) Query(_ context.Context, req retrieval.QueryRequest) []entity.RetrievalResult {
	f.reqs = append(f.reqs, req)
	return f.hits
}

type fakeCohortSummarizer struct{}

func (fakeCohortSummarizer) Summarize(_ context.Context, _ string) (*entity.CohortSummary, error) {
	return &entity.CohortSummary{ClientCount: 12, AvgHealthScore: 58.5}, nil
}

// slowCohortSummarizer 阻塞到上下文结束
type slowCohortSummarizer struct{}

func (slowCohortSummarizer) Summarize(ctx context.Context, _ string) (*entity.CohortSummary, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// tagTranslator 输出带目标语言前缀，便于断言经过了翻译
type tagTranslator struct{}

func (tagTranslator) Translate(_ context.Context, text, _, tgt string) (string, error) {
	return "[" + tgt + "] " + text, nil
}

type harness struct {
	orch     *Orchestrator
	gateway  *fakeGateway
	executor *fakeExecutor
	chats    *memChats
	examples *fakeExamples
}

func newHarness(threads ...*entity.ChatThread) *harness {
	h := &harness{
		gateway:  &fakeGateway{decision: llmgateway.Decision{Reply: "Here is your answer."}, final: "You spent INR 4200 on food."},
		executor: &fakeExecutor{},
		chats:    newMemChats(threads...),
		examples: &fakeExamples{},
	}
	h.orch = NewOrchestrator(Deps{
		Gateway:    h.gateway,
		Translator: multilingual.NewPipeline(tagTranslator{}, nil, multilingual.Config{WorkingLanguage: "en"}),
		Executor:   h.executor,
		Examples:   h.examples,
		Cohort:     fakeCohortSummarizer{},
		Chats:      h.chats,
		Cohorts:    &fakeCohorts{assigned: map[string]bool{"adv-1/u-1": true}},
	}, Config{})
	return h
}

func userThread() *entity.ChatThread {
	return &entity.ChatThread{ID: "t-1", OwnerID: "u-1", Surface: entity.SurfaceAssistant}
}

func TestHandleTurn_DirectReply(t *testing.T) {
	h := newHarness(userThread())

	out, err := h.orch.HandleTurn(context.Background(), TurnInput{
		ThreadID: "t-1", OwnerID: "u-1", Message: "hello there", Surface: entity.SurfaceAssistant,
	})

	require.NoError(t, err)
	assert.Equal(t, "Here is your answer.", out.ReplyText)
	assert.Equal(t, "en", out.DetectedLanguage)
	assert.Empty(t, out.ToolsUsed)
	assert.NotNil(t, out.ToolsUsed)
	assert.Empty(t, h.executor.calls)

	turns := h.chats.turns["t-1"]
	require.Len(t, turns, 2)
	assert.Equal(t, entity.RoleUser, turns[0].Role)
	assert.Equal(t, "hello there", turns[0].Content)
	assert.Equal(t, entity.RoleAssistant, turns[1].Role)
	assert.True(t, turns[1].CreatedAt.After(turns[0].CreatedAt))
	assert.Equal(t, "hello there", h.chats.threads["t-1"].Title)
	assert.Len(t, h.gateway.catalog, len(tools.ForSurface(entity.SurfaceAssistant)))
}

func TestHandleTurn_TranslatesInAndOut(t *testing.T) {
	h := newHarness(userThread())

	out, err := h.orch.HandleTurn(context.Background(), TurnInput{
		ThreadID: "t-1", OwnerID: "u-1", Message: "मेरा बजट कितना है?", Surface: entity.SurfaceAssistant,
	})

	require.NoError(t, err)
	assert.Equal(t, "hi", out.DetectedLanguage)
	assert.Equal(t, "[hi] Here is your answer.", out.ReplyText)
	last := h.gateway.turns[len(h.gateway.turns)-1]
	assert.Equal(t, "[en] मेरा बजट कितना है?", last.Content)
	assert.Equal(t, "मेरा बजट कितना है?", h.chats.turns["t-1"][0].Content)
}

func TestHandleTurn_LanguageHintOnlyWhenDefaulted(t *testing.T) {
	h := newHarness(userThread())

	out, err := h.orch.HandleTurn(context.Background(), TurnInput{
		ThreadID: "t-1", OwnerID: "u-1", Message: "ok thanks", LanguageHint: "ta", Surface: entity.SurfaceAssistant,
	})

	require.NoError(t, err)
	assert.Equal(t, "ta", out.DetectedLanguage)
	assert.Equal(t, "[ta] Here is your answer.", out.ReplyText)
}

func TestHandleTurn_ToolPath(t *testing.T) {
	h := newHarness(userThread())
	h.gateway.decision = llmgateway.Decision{Calls: []tools.Call{
		{ID: "a", Name: "get_budget_status", Arguments: "{}"},
		{ID: "b", Name: "get_goals", Arguments: "{}"},
		{ID: "c", Name: "get_budget_status", Arguments: `{"month":"2026-02"}`},
	}}
	h.executor.results = func(calls []tools.Call) []tools.Result {
		return []tools.Result{
			{CallID: "a", Tool: "get_budget_status", Data: json.RawMessage(`{"total_spent_inr":4200}`)},
			{CallID: "b", Tool: "get_goals", Error: tools.ErrTagDataUnavailable},
			{CallID: "c", Tool: "get_budget_status", Data: json.RawMessage(`{"total_spent_inr":3900}`)},
		}
	}

	out, err := h.orch.HandleTurn(context.Background(), TurnInput{
		ThreadID: "t-1", OwnerID: "u-1", Message: "am I within budget?", Surface: entity.SurfaceAssistant,
	})

	require.NoError(t, err)
	assert.Equal(t, "You spent INR 4200 on food.", out.ReplyText)
	assert.Equal(t, []string{"get_budget_status"}, out.ToolsUsed)
	assert.Contains(t, h.gateway.finalSys, `"error":"data_unavailable"`)
	assert.Contains(t, h.gateway.finalSys, `"total_spent_inr":4200`)

	require.Len(t, h.executor.scopes, 1)
	assert.Equal(t, tools.Scope{Surface: entity.SurfaceAssistant, OwnerID: "u-1"}, h.executor.scopes[0])
	assert.Equal(t, []string{"get_budget_status"}, []string(h.chats.turns["t-1"][1].ToolsUsed))
}

func TestHandleTurn_DegradedReplyStillPersisted(t *testing.T) {
	h := newHarness(userThread())
	h.gateway.decision = llmgateway.Decision{Reply: llmgateway.RetryReply, Degraded: true}

	out, err := h.orch.HandleTurn(context.Background(), TurnInput{ThreadID: "t-1", OwnerID: "u-1", Message: "hi", Surface: entity.SurfaceAssistant})

	require.NoError(t, err)
	assert.Equal(t, llmgateway.RetryReply, out.ReplyText)
	assert.Len(t, h.chats.turns["t-1"], 2)
}

func TestHandleTurn_CancelledDuringToolsPersistsNothing(t *testing.T) {
	h := newHarness(userThread())
	h.gateway.decision = llmgateway.Decision{Calls: []tools.Call{{ID: "a", Name: "get_goals", Arguments: "{}"}}}
	ctx, cancel := context.WithCancel(context.Background())
	h.gateway.onDecide = cancel
	h.executor.block = true

	out, err := h.orch.HandleTurn(ctx, TurnInput{ThreadID: "t-1", OwnerID: "u-1", Message: "goals?", Surface: entity.SurfaceAssistant})

	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.chats.turns["t-1"])
	assert.Empty(t, h.chats.threads["t-1"].Title)
}

func TestHandleTurn_ThreadChecks(t *testing.T) {
	h := newHarness(userThread())

	_, err := h.orch.HandleTurn(context.Background(), TurnInput{ThreadID: "missing", OwnerID: "u-1", Message: "hi", Surface: entity.SurfaceAssistant})
	assert.Equal(t, apperrors.CodeThreadNotFound, apperrors.AsAppError(err).Code)

	_, err = h.orch.HandleTurn(context.Background(), TurnInput{ThreadID: "t-1", OwnerID: "u-2", Message: "hi", Surface: entity.SurfaceAssistant})
	assert.Equal(t, apperrors.CodeForbidden, apperrors.AsAppError(err).Code)

	_, err = h.orch.HandleTurn(context.Background(), TurnInput{ThreadID: "t-1", OwnerID: "u-1", Message: "   ", Surface: entity.SurfaceAssistant})
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)

	_, err = h.orch.HandleTurn(context.Background(), TurnInput{ThreadID: "t-1", OwnerID: "u-1", Message: "hi", Surface: "kiosk"})
	assert.Equal(t, apperrors.CodeInvalidParam, apperrors.AsAppError(err).Code)
	assert.Empty(t, h.chats.turns["t-1"])
}

func TestHandleTurn_SecondTurnKeepsTitleAndUsesHistory(t *testing.T) {
	h := newHarness(userThread())
	in := TurnInput{ThreadID: "t-1", OwnerID: "u-1", Message: "first question", Surface: entity.SurfaceAssistant}
	_, err := h.orch.HandleTurn(context.Background(), in)
	require.NoError(t, err)

	in.Message = "follow up"
	_, err = h.orch.HandleTurn(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, h.gateway.titles)
	assert.Equal(t, "first question", h.chats.threads["t-1"].Title)
	require.Len(t, h.gateway.turns, 3)
	assert.Equal(t, schema.User, h.gateway.turns[0].Role)
	assert.Equal(t, schema.Assistant, h.gateway.turns[1].Role)
	assert.Equal(t, "follow up", h.gateway.turns[2].Content)
}

func TestHandleTurn_HistoryFailureContinues(t *testing.T) {
	h := newHarness(userThread())
	h.chats.historyErr = errors.New("db timeout")

	out, err := h.orch.HandleTurn(context.Background(), TurnInput{ThreadID: "t-1", OwnerID: "u-1", Message: "hi", Surface: entity.SurfaceAssistant})

	require.NoError(t, err)
	assert.NotEmpty(t, out.ReplyText)
}

func TestHandleTurn_PersistFailure(t *testing.T) {
	h := newHarness(userThread())
	h.chats.appendErr = errors.New("deadlock detected")

	out, err := h.orch.HandleTurn(context.Background(), TurnInput{ThreadID: "t-1", OwnerID: "u-1", Message: "hi", Surface: entity.SurfaceAssistant})

	assert.Nil(t, out)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeChatFailed, apperrors.AsAppError(err).Code)
	assert.NotContains(t, apperrors.AsAppError(err).Message, "deadlock")
}

func TestHandleTurn_Clone(t *testing.T) {
	h := newHarness(&entity.ChatThread{ID: "t-c", OwnerID: "u-1", Surface: entity.SurfaceClone})
	h.examples.hits = []entity.RetrievalResult{{Text: "Start with an emergency fund first.", Score: 0.9}}

	_, err := h.orch.HandleTurn(context.Background(), TurnInput{
		ThreadID: "t-c", OwnerID: "u-1", AdvisorID: "adv-1", Message: "should I invest?", Surface: entity.SurfaceClone,
	})

	require.NoError(t, err)
	require.Len(t, h.examples.reqs, 1)
	assert.Equal(t, entity.SpaceAdvisorPersona, h.examples.reqs[0].Space)
	assert.Equal(t, "adv-1", h.examples.reqs[0].OwnerID)
	assert.Contains(t, h.gateway.decideSys, "Start with an emergency fund first.")
	assert.Contains(t, h.gateway.decideSys, "get_user_profile: {\"ok\":true}")
	assert.Contains(t, h.gateway.decideSys, "AI-generated reply")

	require.NotEmpty(t, h.executor.scopes)
	assert.Equal(t, tools.Scope{Surface: entity.SurfaceClone, OwnerID: "u-1", AdvisorID: "adv-1"}, h.executor.scopes[0])
}

func TestHandleTurn_CloneRequiresAssignment(t *testing.T) {
	h := newHarness(&entity.ChatThread{ID: "t-c", OwnerID: "u-9", Surface: entity.SurfaceClone})

	_, err := h.orch.HandleTurn(context.Background(), TurnInput{
		ThreadID: "t-c", OwnerID: "u-9", AdvisorID: "adv-1", Message: "hi", Surface: entity.SurfaceClone,
	})

	assert.Equal(t, apperrors.CodeForbidden, apperrors.AsAppError(err).Code)
	assert.Empty(t, h.examples.reqs)
}

func TestHandleTurn_CopilotHasNoSubjectOwner(t *testing.T) {
	h := newHarness(&entity.ChatThread{ID: "t-a", OwnerID: "adv-1", Surface: entity.SurfaceCopilot})
	h.gateway.decision = llmgateway.Decision{Calls: []tools.Call{{ID: "a", Name: "get_cohort_overview", Arguments: "{}"}}}

	_, err := h.orch.HandleTurn(context.Background(), TurnInput{
		ThreadID: "t-a", OwnerID: "adv-1", Message: "how is my book doing?", Surface: entity.SurfaceCopilot,
	})

	require.NoError(t, err)
	assert.Contains(t, h.gateway.decideSys, "- Clients: 12")
	require.Len(t, h.executor.scopes, 1)
	assert.Equal(t, tools.Scope{Surface: entity.SurfaceCopilot, AdvisorID: "adv-1"}, h.executor.scopes[0])
	for _, info := range h.gateway.catalog {
		assert.NotEqual(t, string(tools.NameUserProfile), info.Name)
	}
}

func TestHandleTurn_HistoryReachesModelInWorkingLanguage(t *testing.T) {
	h := newHarness(userThread())
	h.chats.turns["t-1"] = []*entity.ChatTurn{
		entity.NewChatTurn("t-1", entity.RoleUser, "मेरा बजट कितना है?", nil),
		entity.NewChatTurn("t-1", entity.RoleAssistant, "आपका खाने का बजट 8000 रुपये है।", nil),
	}

	out, err := h.orch.HandleTurn(context.Background(), TurnInput{
		ThreadID: "t-1", OwnerID: "u-1", Message: "और मेरे लक्ष्य?", Surface: entity.SurfaceAssistant,
	})

	require.NoError(t, err)
	assert.Equal(t, "hi", out.DetectedLanguage)
	require.Len(t, h.gateway.turns, 3)
	assert.Equal(t, "[en] मेरा बजट कितना है?", h.gateway.turns[0].Content)
	assert.Equal(t, schema.Assistant, h.gateway.turns[1].Role)
	assert.Equal(t, "[en] आपका खाने का बजट 8000 रुपये है।", h.gateway.turns[1].Content)
	assert.Equal(t, "[en] और मेरे लक्ष्य?", h.gateway.turns[2].Content)

	// 落库的仍是原文
	stored := h.chats.turns["t-1"]
	require.Len(t, stored, 4)
	assert.Equal(t, "मेरा बजट कितना है?", stored[0].Content)
	assert.Equal(t, "और मेरे लक्ष्य?", stored[2].Content)
}

func TestHandleTurn_SlowFactSourcesDegrade(t *testing.T) {
	h := newHarness(&entity.ChatThread{ID: "t-a", OwnerID: "adv-1", Surface: entity.SurfaceCopilot})
	h.chats.slowReads = true
	orch := NewOrchestrator(Deps{
		Gateway:    h.gateway,
		Translator: multilingual.NewPipeline(tagTranslator{}, nil, multilingual.Config{WorkingLanguage: "en"}),
		Executor:   h.executor,
		Cohort:     slowCohortSummarizer{},
		Chats:      h.chats,
	}, Config{FactTimeout: 20 * time.Millisecond})

	start := time.Now()
	out, err := orch.HandleTurn(context.Background(), TurnInput{
		ThreadID: "t-a", OwnerID: "adv-1", Message: "how is my book doing?", Surface: entity.SurfaceCopilot,
	})

	require.NoError(t, err)
	assert.Equal(t, "Here is your answer.", out.ReplyText)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.NotContains(t, h.gateway.decideSys, "- Clients:")
	require.Len(t, h.gateway.turns, 1)
	assert.Len(t, h.chats.turns["t-a"], 2)
}

// Package persona 组装三个对话入口的系统提示。
package persona

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"finsaathi-ai-api/internal/application/prompt"
	"finsaathi-ai-api/internal/application/retrieval"
	"finsaathi-ai-api/internal/domain/entity"
)

const (
	defaultMaxExamples = 4
	exampleExcerptRune = 600
)

// 兜底文本，模板缺失时使用
const (
	fallbackTone  = "Reply in a warm, plain-spoken and practical tone with concrete next steps."
	fallbackGuard = "Use only numbers that appear in the client context or tool results. Never invent figures. This reply is AI-generated in the style of {advisor} and has not been reviewed by them."
)

var figurePattern = regexp.MustCompile(`\d[\d,]*(\.\d+)?`)

// SubjectContext 当前被服务客户的实时事实，每行一条
type SubjectContext struct {
	Name  string
	Facts []string
}

// Builder 无状态的提示组装器
type Builder struct {
	prompts     *prompt.Registry
	maxExamples int
	now         func() time.Time
}

func NewBuilder(prompts *prompt.Registry, maxExamples int) *Builder {
	if prompts == nil {
		prompts = prompt.Default()
	}
	if maxExamples <= 0 {
		maxExamples = defaultMaxExamples
	}
	return &Builder{prompts: prompts, maxExamples: maxExamples, now: time.Now}
}

func (b *Builder) text(id prompt.PromptID, fallback string) string {
	s, err := b.prompts.Text(id)
	if err != nil || strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// BuildAssistantPrompt 终端用户助手
func (b *Builder) BuildAssistantPrompt(userName string) string {
	var sb strings.Builder
	sb.WriteString(b.text(prompt.PromptAssistV1, "You are a personal finance assistant. Amounts are in INR."))
	sb.WriteString("\n\n")
	if name := strings.TrimSpace(userName); name != "" {
		fmt.Fprintf(&sb, "You are talking to %s.\n", name)
	}
	fmt.Fprintf(&sb, "Today is %s.", b.now().Format("2006-01-02"))
	return sb.String()
}

// BuildPersonaPrompt 以顾问过往回答为 few-shot 的人格提示。
// 最多取 maxExamples 条最高分示例；没有示例时用通用语气说明。
// 末尾固定追加 AI 生成声明与禁止编造数字的规则。
func (b *Builder) BuildPersonaPrompt(personaName string, examples []entity.RetrievalResult, subject SubjectContext) string {
	name := strings.TrimSpace(personaName)
	if name == "" {
		name = "your advisor"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an AI persona of %s, a financial advisor in India, replying to one of their clients. Amounts are in INR.\n", name)
	fmt.Fprintf(&sb, "Today is %s.\n\n", b.now().Format("2006-01-02"))

	selected := selectExamples(examples, b.maxExamples)
	if len(selected) == 0 {
		sb.WriteString("## Tone\n")
		sb.WriteString(b.text(prompt.PromptToneV1, fallbackTone))
		sb.WriteString("\n\n")
	} else {
		fmt.Fprintf(&sb, "## How %s writes\n", name)
		sb.WriteString("Match the voice of these past replies. Figures in them are masked and must not be reused.\n")
		for i, ex := range selected {
			fmt.Fprintf(&sb, "Example %d:\n%s\n", i+1, maskFigures(retrieval.Excerpt(ex.Text, exampleExcerptRune)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Client context\n")
	if s := strings.TrimSpace(subject.Name); s != "" {
		fmt.Fprintf(&sb, "Client: %s\n", s)
	}
	facts := 0
	for _, f := range subject.Facts {
		if f = strings.TrimSpace(f); f != "" {
			sb.WriteString("- ")
			sb.WriteString(f)
			sb.WriteString("\n")
			facts++
		}
	}
	if facts == 0 {
		sb.WriteString("- No figures are available for this client yet. Call the tools when the question needs data.\n")
	}
	sb.WriteString("\n")

	sb.WriteString(strings.ReplaceAll(b.text(prompt.PromptGuardV1, fallbackGuard), "{advisor}", name))
	return sb.String()
}

// BuildCohortPrompt co-pilot 提示，只接受聚合后的客户群视图
func (b *Builder) BuildCohortPrompt(actorName string, summary *entity.CohortSummary) string {
	name := strings.TrimSpace(actorName)
	if name == "" {
		name = "the advisor"
	}

	var sb strings.Builder
	sb.WriteString(b.text(prompt.PromptCopilotV1, "You are a co-pilot for a financial advisor. Amounts are in INR."))
	fmt.Fprintf(&sb, "\nYou are assisting %s. Today is %s.\n\n", name, b.now().Format("2006-01-02"))
	sb.WriteString(b.text(prompt.PromptCohortV1, "Use only the aggregated cohort summary below; never discuss individual clients."))
	sb.WriteString("\n\n## Cohort summary\n")
	sb.WriteString(renderCohort(summary))
	return strings.TrimRight(sb.String(), "\n")
}

func renderCohort(s *entity.CohortSummary) string {
	if s == nil || s.ClientCount == 0 {
		return "- No clients are assigned yet.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "- Clients: %d\n", s.ClientCount)
	fmt.Fprintf(&sb, "- Average health score: %.1f / 100\n", s.AvgHealthScore)
	fmt.Fprintf(&sb, "- Median savings rate: %.1f%%\n", s.MedianSavingsRatePct)
	fmt.Fprintf(&sb, "- Average monthly income: INR %.0f\n", s.AvgMonthlyIncome)
	fmt.Fprintf(&sb, "- Goals on track: %.1f%%\n", s.GoalsOnTrackPct)
	fmt.Fprintf(&sb, "- Clients needing attention (health below 35): %d\n", s.NeedsAttention)
	if len(s.RiskMix) > 0 {
		fmt.Fprintf(&sb, "- Risk mix: %s\n", renderCounts(s.RiskMix))
	}
	if len(s.HealthBands) > 0 {
		fmt.Fprintf(&sb, "- Health bands: %s\n", renderCounts(s.HealthBands))
	}
	if len(s.CommonExpenseTop) > 0 {
		fmt.Fprintf(&sb, "- Most common top expense categories: %s\n", strings.Join(s.CommonExpenseTop, ", "))
	}
	return sb.String()
}

func renderCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

// selectExamples 按分数降序取前 n 条非空示例
func selectExamples(examples []entity.RetrievalResult, n int) []entity.RetrievalResult {
	out := make([]entity.RetrievalResult, 0, len(examples))
	for _, ex := range examples {
		if strings.TrimSpace(ex.Text) != "" {
			out = append(out, ex)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// maskFigures 示例中的数字替换为 N，避免把其他客户的数字带入回复
func maskFigures(s string) string {
	return figurePattern.ReplaceAllString(s, "N")
}

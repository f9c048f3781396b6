// Package tools 声明可供模型调用的只读数据工具，并负责执行与失败隔离。
package tools

import (
	"github.com/cloudwego/eino/schema"

	"finsaathi-ai-api/internal/domain/entity"
)

// Name 工具名，封闭集合
type Name string

const (
	NameUserProfile          Name = "get_user_profile"
	NameRecentTransactions   Name = "get_recent_transactions"
	NameBudgetStatus         Name = "get_budget_status"
	NameGoals                Name = "get_goals"
	NamePortfolioSuggestions Name = "get_portfolio_suggestions"
	NameMarketSnapshot       Name = "get_market_snapshot"
	NameHealthScore          Name = "get_health_score"
	NameSearchSchemes        Name = "search_schemes"
	NameSearchDocuments      Name = "search_documents"
	NameSpendingInsights     Name = "get_spending_insights"
	NameLearningProgress     Name = "get_learning_progress"
	NameCohortOverview       Name = "get_cohort_overview"
)

var catalog = []*schema.ToolInfo{
	{
		Name:        string(NameUserProfile),
		Desc:        "Basic profile of the user: age, city, occupation, monthly income (INR), emergency fund (INR) and risk profile.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	},
	{
		Name: string(NameRecentTransactions),
		Desc: "Income and expense totals for a recent period with top spending categories and the latest transactions. All sums are precomputed.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"days":  {Type: schema.Integer, Desc: "Look-back window in days, 1-90. Default 30."},
			"type":  {Type: schema.String, Desc: "Filter by direction.", Enum: []string{"all", "credit", "debit"}},
			"limit": {Type: schema.Integer, Desc: "How many latest transactions to list, 1-25. Default 10."},
		}),
	},
	{
		Name: string(NameBudgetStatus),
		Desc: "Budget limits versus actual spending per category for a month, with remaining amount and percent used.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"month": {Type: schema.String, Desc: "Month as YYYY-MM. Defaults to the current month."},
		}),
	},
	{
		Name:        string(NameGoals),
		Desc:        "Savings goals with target, saved amount, progress percent and the monthly amount required to finish on time.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	},
	{
		Name: string(NamePortfolioSuggestions),
		Desc: "Model asset allocation for a risk profile with rupee amounts for the given investable sum.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"risk_profile": {Type: schema.String, Desc: "Defaults to the user's own risk profile.", Enum: []string{"conservative", "moderate", "aggressive"}},
			"amount":       {Type: schema.Number, Desc: "Amount in INR to allocate. Defaults to the user's estimated monthly surplus."},
		}),
	},
	{
		Name: string(NameMarketSnapshot),
		Desc: "Latest prices and daily change for market indices, gold and listed instruments.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"symbols": {Type: schema.Array, Desc: "Symbols to fetch. Empty means the default watchlist.", ElemInfo: &schema.ParameterInfo{Type: schema.String}},
		}),
	},
	{
		Name:        string(NameHealthScore),
		Desc:        "Financial health score 0-100 with the four 0-25 components: savings rate, budget adherence, goal progress and emergency fund.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	},
	{
		Name: string(NameSearchSchemes),
		Desc: "Search government and bank savings or investment schemes by keyword.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query":    {Type: schema.String, Desc: "Keywords, e.g. 'tax saving' or 'girl child'.", Required: true},
			"category": {Type: schema.String, Desc: "Optional category such as savings, pension, insurance, tax."},
			"limit":    {Type: schema.Integer, Desc: "Maximum results, 1-10. Default 5."},
		}),
	},
	{
		Name: string(NameSearchDocuments),
		Desc: "Semantic search over documents and notes uploaded to this account. Returns short excerpts.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "What to look for.", Required: true},
			"top_k": {Type: schema.Integer, Desc: "Maximum excerpts, 1-10. Default 5."},
		}),
	},
	{
		Name:        string(NameSpendingInsights),
		Desc:        "Unusual expenses over the last 90 days and a next-month spending forecast from recent monthly totals.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	},
	{
		Name:        string(NameLearningProgress),
		Desc:        "Financial literacy lesson progress.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	},
	{
		Name:        string(NameCohortOverview),
		Desc:        "Aggregated overview of the advisor's assigned clients: counts, averages, risk mix and health bands. Contains no individual client data.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	},
}

var surfaceTools = map[entity.Surface][]Name{
	entity.SurfaceAssistant: {
		NameUserProfile, NameRecentTransactions, NameBudgetStatus, NameGoals,
		NamePortfolioSuggestions, NameMarketSnapshot, NameHealthScore, NameSearchSchemes,
		NameSearchDocuments, NameSpendingInsights, NameLearningProgress,
	},
	entity.SurfaceClone: {
		NameUserProfile, NameRecentTransactions, NameBudgetStatus, NameGoals,
		NamePortfolioSuggestions, NameMarketSnapshot, NameHealthScore, NameSearchSchemes,
	},
	entity.SurfaceCopilot: {
		NameCohortOverview, NameMarketSnapshot, NameSearchSchemes, NamePortfolioSuggestions,
		NameSearchDocuments,
	},
}

// Catalog 全量工具描述，启动后只读
func Catalog() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, len(catalog))
	copy(out, catalog)
	return out
}

// ForSurface 返回入口可用的工具子集
func ForSurface(surface entity.Surface) []*schema.ToolInfo {
	allowed := surfaceTools[surface]
	out := make([]*schema.ToolInfo, 0, len(allowed))
	for _, info := range catalog {
		if Allowed(surface, Name(info.Name)) {
			out = append(out, info)
		}
	}
	return out
}

// Allowed 工具是否对该入口开放
func Allowed(surface entity.Surface, name Name) bool {
	for _, n := range surfaceTools[surface] {
		if n == name {
			return true
		}
	}
	return false
}

package tools

import (
	"context"
	"fmt"
	"math"
	"strings"

	"finsaathi-ai-api/internal/application/retrieval"
	"finsaathi-ai-api/internal/domain/entity"
	"finsaathi-ai-api/internal/domain/service"
)

const (
	documentExcerptRunes = 300
	schemeExcerptRunes   = 200
)

var defaultWatchlist = []string{"NIFTY50", "SENSEX", "GOLD", "USDINR"}

// allocation 资产配置比例，合计 100
type allocation struct {
	AssetClass string  `json:"asset_class"`
	Pct        float64 `json:"pct"`
	Examples   string  `json:"examples"`
}

var modelAllocations = map[entity.RiskProfile][]allocation{
	entity.RiskConservative: {
		{AssetClass: "debt", Pct: 50, Examples: "PPF, fixed deposits, short-duration debt funds"},
		{AssetClass: "large_cap_equity", Pct: 20, Examples: "Nifty 50 index fund"},
		{AssetClass: "gold", Pct: 15, Examples: "sovereign gold bonds, gold ETF"},
		{AssetClass: "liquid", Pct: 15, Examples: "liquid fund, savings account"},
	},
	entity.RiskModerate: {
		{AssetClass: "large_cap_equity", Pct: 35, Examples: "Nifty 50 index fund"},
		{AssetClass: "mid_small_cap_equity", Pct: 15, Examples: "flexi-cap or mid-cap fund"},
		{AssetClass: "debt", Pct: 30, Examples: "PPF, corporate bond fund"},
		{AssetClass: "gold", Pct: 10, Examples: "sovereign gold bonds"},
		{AssetClass: "liquid", Pct: 10, Examples: "liquid fund"},
	},
	entity.RiskAggressive: {
		{AssetClass: "large_cap_equity", Pct: 40, Examples: "Nifty 50 or Nifty Next 50 index fund"},
		{AssetClass: "mid_small_cap_equity", Pct: 30, Examples: "mid-cap and small-cap funds"},
		{AssetClass: "debt", Pct: 15, Examples: "PPF, dynamic bond fund"},
		{AssetClass: "gold", Pct: 10, Examples: "gold ETF"},
		{AssetClass: "liquid", Pct: 5, Examples: "liquid fund"},
	},
}

type allocationLine struct {
	AssetClass string  `json:"asset_class"`
	Pct        float64 `json:"pct"`
	AmountINR  float64 `json:"amount_inr"`
	Examples   string  `json:"examples"`
}

type portfolioData struct {
	RiskProfile string           `json:"risk_profile"`
	AmountINR   float64          `json:"amount_inr"`
	AmountBasis string           `json:"amount_basis"`
	Allocation  []allocationLine `json:"allocation"`
	Note        string           `json:"note"`
}

func (d *Dispatcher) portfolioSuggestions(ctx context.Context, scope Scope, args arguments) (any, error) {
	risk := entity.RiskProfile(strings.ToLower(args.String("risk_profile")))
	if risk != "" {
		if _, ok := modelAllocations[risk]; !ok {
			return nil, invalidArgs("unknown risk_profile %q", risk)
		}
	}
	amount, hasAmount := args.Float("amount")
	if hasAmount && amount < 0 {
		return nil, invalidArgs("amount must be positive")
	}
	basis := "requested_amount"

	// 有用户画像时用画像补全缺省值，画像不存在则按通用模型配置
	if (risk == "" || !hasAmount) && strings.TrimSpace(scope.OwnerID) != "" && d.facts != nil {
		profile, err := d.facts.GetProfile(ctx, scope.OwnerID)
		if err != nil {
			return nil, unavailable(err)
		}
		if profile == nil {
			profile = &entity.UserProfile{}
		} else if risk == "" {
			risk = profile.RiskProfile
		}
		if !hasAmount && profile.MonthlyIncome > 0 {
			surplus, err := d.monthlySurplus(ctx, scope.OwnerID, profile)
			if err != nil {
				return nil, err
			}
			amount = surplus
			basis = "estimated_monthly_surplus"
		}
	}
	if _, ok := modelAllocations[risk]; !ok {
		risk = entity.RiskModerate
	}
	if !hasAmount && basis == "requested_amount" {
		basis = "per_100_inr"
		amount = 100
	}

	out := portfolioData{
		RiskProfile: string(risk),
		AmountINR:   service.Round2(amount),
		AmountBasis: basis,
		Note:        "Model allocation for education. Not a recommendation of specific securities.",
	}
	for _, a := range modelAllocations[risk] {
		out.Allocation = append(out.Allocation, allocationLine{
			AssetClass: a.AssetClass,
			Pct:        a.Pct,
			AmountINR:  service.Round2(amount * a.Pct / 100),
			Examples:   a.Examples,
		})
	}
	return out, nil
}

// monthlySurplus 月收入减近三个月平均支出，不低于 0
func (d *Dispatcher) monthlySurplus(ctx context.Context, owner string, profile *entity.UserProfile) (float64, error) {
	monthly, err := d.facts.MonthlyExpenses(ctx, owner, 3)
	if err != nil {
		return 0, unavailable(err)
	}
	var sum float64
	for _, m := range monthly {
		sum += m
	}
	avg := 0.0
	if len(monthly) > 0 {
		avg = sum / float64(len(monthly))
	}
	income := 0.0
	if profile != nil {
		income = profile.MonthlyIncome
	}
	return math.Max(0, income-avg), nil
}

type quoteLine struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	AsOf      string  `json:"as_of"`
}

type marketData struct {
	Quotes  []quoteLine `json:"quotes"`
	Missing []string    `json:"missing,omitempty"`
}

func (d *Dispatcher) marketSnapshot(ctx context.Context, args arguments) (any, error) {
	if d.refs == nil {
		return nil, unavailable(fmt.Errorf("reference repository not configured"))
	}
	requested := args.Strings("symbols")
	if len(requested) == 0 {
		requested = defaultWatchlist
	}
	if len(requested) > 10 {
		requested = requested[:10]
	}
	symbols := make([]string, 0, len(requested))
	for _, s := range requested {
		symbols = append(symbols, strings.ToUpper(s))
	}

	quotes, err := d.refs.ListMarketQuotes(ctx, symbols)
	if err != nil {
		return nil, unavailable(err)
	}
	out := marketData{Quotes: make([]quoteLine, 0, len(quotes))}
	found := make(map[string]bool, len(quotes))
	for _, q := range quotes {
		found[q.Symbol] = true
		out.Quotes = append(out.Quotes, quoteLine{
			Symbol:    q.Symbol,
			Name:      q.Name,
			Price:     service.Round2(q.Price),
			ChangePct: service.Round2(q.ChangePct),
			AsOf:      q.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}
	for _, s := range symbols {
		if !found[s] {
			out.Missing = append(out.Missing, s)
		}
	}
	return out, nil
}

type schemeLine struct {
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	InterestRatePct float64 `json:"interest_rate_pct"`
	LockInYears     int     `json:"lock_in_years"`
	Eligibility     string  `json:"eligibility"`
	Summary         string  `json:"summary"`
}

type schemesData struct {
	Query   string       `json:"query"`
	Count   int          `json:"count"`
	Schemes []schemeLine `json:"schemes"`
}

func (d *Dispatcher) searchSchemes(ctx context.Context, args arguments) (any, error) {
	if d.refs == nil {
		return nil, unavailable(fmt.Errorf("reference repository not configured"))
	}
	query := args.String("query")
	if query == "" {
		return nil, invalidArgs("query is required")
	}
	limit := args.Int("limit", 5, 1, 10)

	schemes, err := d.refs.SearchSchemes(ctx, query, args.String("category"), limit)
	if err != nil {
		return nil, unavailable(err)
	}
	out := schemesData{Query: query, Schemes: make([]schemeLine, 0, len(schemes))}
	for _, s := range schemes {
		out.Schemes = append(out.Schemes, schemeLine{
			Name:            s.Name,
			Category:        s.Category,
			InterestRatePct: service.Round2(s.InterestRate),
			LockInYears:     s.LockInYears,
			Eligibility:     retrieval.Excerpt(s.Eligibility, schemeExcerptRunes),
			Summary:         retrieval.Excerpt(s.Description, schemeExcerptRunes),
		})
	}
	out.Count = len(out.Schemes)
	return out, nil
}

type excerptLine struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

type documentsData struct {
	Query    string        `json:"query"`
	Count    int           `json:"count"`
	Excerpts []excerptLine `json:"excerpts"`
}

// searchDocuments assistant 检索用户文档，copilot 检索顾问自己的知识空间
func (d *Dispatcher) searchDocuments(ctx context.Context, scope Scope, args arguments) (any, error) {
	query := args.String("query")
	if query == "" {
		return nil, invalidArgs("query is required")
	}
	var req retrieval.QueryRequest
	switch scope.Surface {
	case entity.SurfaceCopilot:
		req = retrieval.QueryRequest{Space: entity.SpaceAdvisorPersona, OwnerID: scope.AdvisorID}
	default:
		req = retrieval.QueryRequest{Space: entity.SpaceUserDocs, OwnerID: scope.OwnerID}
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, &toolError{Tag: ErrTagNotPermitted, Err: fmt.Errorf("no knowledge owner in scope")}
	}
	if d.docs == nil {
		return nil, unavailable(fmt.Errorf("document search not configured"))
	}
	req.Text = query
	req.TopK = args.Int("top_k", 5, 1, 10)

	hits := d.docs.Query(ctx, req)
	out := documentsData{Query: query, Count: len(hits), Excerpts: make([]excerptLine, 0, len(hits))}
	for _, h := range hits {
		out.Excerpts = append(out.Excerpts, excerptLine{
			Source: h.SourceTag,
			Score:  service.Round2(h.Score),
			Text:   retrieval.Excerpt(h.Text, documentExcerptRunes),
		})
	}
	return out, nil
}

func (d *Dispatcher) cohortOverview(ctx context.Context, scope Scope) (any, error) {
	advisor := strings.TrimSpace(scope.AdvisorID)
	if advisor == "" {
		return nil, &toolError{Tag: ErrTagNotPermitted, Err: fmt.Errorf("no advisor in scope")}
	}
	if d.cohort == nil {
		return nil, unavailable(fmt.Errorf("cohort summarizer not configured"))
	}
	summary, err := d.cohort.Summarize(ctx, advisor)
	if err != nil {
		return nil, unavailable(err)
	}
	return summary, nil
}
